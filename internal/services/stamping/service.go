package stamping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-build-stamper/internal/domain/buildmeta"
	"github.com/launchbynttdata/launch-build-stamper/internal/header"
	"github.com/launchbynttdata/launch-build-stamper/internal/inistore"
	"github.com/launchbynttdata/launch-build-stamper/internal/layout"
	"github.com/launchbynttdata/launch-build-stamper/internal/revision"
)

// Error kinds of a stamping cycle. Every one of them is terminal for the build.
var (
	ErrBootstrapRequired   = errors.New("bootstrap required")
	ErrMetadataCorrupt     = errors.New("metadata corrupt")
	ErrReadFailed          = errors.New("read failed")
	ErrRevisionUnavailable = errors.New("revision unavailable")
	ErrWriteFailed         = errors.New("write failed")

	ErrNilRevisionSource = errors.New("stamping service: nil revision source")
)

// Clock returns the current moment. Production uses time.Now, which is local time.
type Clock func() time.Time

// Config captures the inputs of one stamping cycle.
type Config struct {
	Project layout.Project
	// DryRun stops after rendering: neither the record nor the header is written.
	DryRun bool
}

// Result describes a completed cycle.
type Result struct {
	Previous   buildmeta.Metadata
	Metadata   buildmeta.Metadata
	MetaPath   string
	HeaderPath string
	Header     []byte
	DryRun     bool
}

// Service runs stamping cycles.
type Service struct {
	revisions revision.Source
	now       Clock
	logger    *zap.Logger
}

// NewService constructs a Service. A nil clock defaults to time.Now and a nil
// logger discards output.
func NewService(revisions revision.Source, now Clock, logger *zap.Logger) Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Service{revisions: revisions, now: now, logger: logger}
}

// StampOnce loads the persisted record, increments the build counter, stamps
// date, time and revision, persists the record and regenerates the header.
// Nothing is written unless every step before persisting succeeded.
func (s Service) StampOnce(ctx context.Context, cfg Config) (Result, error) {
	if s.revisions == nil {
		return Result{}, ErrNilRevisionSource
	}

	project := cfg.Project
	metaPath := project.MetaPath()
	headerPath := project.HeaderPath()
	log := s.logger.With(zap.String("metaPath", metaPath))

	store, err := inistore.Open(metaPath)
	if err != nil {
		if errors.Is(err, inistore.ErrMalformed) {
			return Result{}, fmt.Errorf("%w: %w", ErrMetadataCorrupt, err)
		}
		return Result{}, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if !store.Exists() {
		return Result{}, s.bootstrap(project)
	}

	previous, err := buildmeta.Load(store)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrMetadataCorrupt, metaPath, err)
	}
	log.Debug("metadata loaded", zap.String("version", previous.Version().String()))

	hash, err := s.revisions.Query(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrRevisionUnavailable, err)
	}
	log.Debug("revision resolved", zap.String("gitHash", hash))

	next, err := previous.Stamp(s.now(), hash)
	if err != nil {
		return Result{}, fmt.Errorf("stamping %s: %w", metaPath, err)
	}

	content, err := header.Bytes(next)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Previous:   previous,
		Metadata:   next,
		MetaPath:   metaPath,
		HeaderPath: headerPath,
		Header:     content,
		DryRun:     cfg.DryRun,
	}
	if cfg.DryRun {
		log.Info("dry run, nothing written", zap.Uint32("buildNumber", next.BuildNumber), zap.String("headerPath", headerPath))
		return result, nil
	}

	next.Persist(store)
	if err := store.Save(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := header.Write(headerPath, next); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	log.Info(next.Summary(),
		zap.Uint32("buildNumber", next.BuildNumber),
		zap.String("buildDate", next.BuildDate),
		zap.String("buildTime", next.BuildTime),
		zap.String("gitHash", next.GitHash),
		zap.String("headerPath", headerPath),
	)
	return result, nil
}

func (s Service) bootstrap(project layout.Project) error {
	metaPath := project.MetaPath()
	sidecarPath := project.SidecarPath()

	sidecar := inistore.New(sidecarPath)
	buildmeta.Default().Persist(sidecar)
	if err := sidecar.Save(); err != nil {
		return fmt.Errorf("%w: bootstrapping %s: %w", ErrWriteFailed, metaPath, err)
	}

	s.logger.Warn("metadata file missing, default written for review",
		zap.String("metaPath", metaPath),
		zap.String("sidecarPath", sidecarPath),
	)
	return fmt.Errorf("%w: no metadata file at %s; review the default written to %s and rename it into place", ErrBootstrapRequired, metaPath, sidecarPath)
}
