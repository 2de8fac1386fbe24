package versioning

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/launchbynttdata/launch-build-stamper/internal/domain/buildmeta"
	"github.com/launchbynttdata/launch-build-stamper/internal/domain/bump"
	"github.com/launchbynttdata/launch-build-stamper/internal/inistore"
	"github.com/launchbynttdata/launch-build-stamper/internal/layout"
)

var (
	ErrNoMetadata     = errors.New("versioning: metadata file not found")
	ErrNoSidecar      = errors.New("versioning: bootstrap sidecar not found")
	ErrAlreadyPresent = errors.New("versioning: metadata file already exists")
)

// BumpResult captures the record before and after a version bump.
type BumpResult struct {
	Before buildmeta.Metadata
	After  buildmeta.Metadata
	Path   string
}

// Service provides operator-facing inspection and maintenance of the persisted record.
type Service struct {
	logger *zap.Logger
}

// NewService constructs a Service. A nil logger discards output.
func NewService(logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Service{logger: logger}
}

// Show loads the current record without modifying anything.
func (s Service) Show(project layout.Project) (buildmeta.Metadata, error) {
	_, m, err := s.load(project.MetaPath())
	return m, err
}

// Bump applies a semantic version bump and persists it. The build counter,
// date, time and revision are kept as they are.
func (s Service) Bump(project layout.Project, intent bump.Bump) (BumpResult, error) {
	path := project.MetaPath()
	store, before, err := s.load(path)
	if err != nil {
		return BumpResult{}, err
	}

	after, err := before.ApplyBump(intent)
	if err != nil {
		return BumpResult{}, fmt.Errorf("bumping %s: %w", path, err)
	}

	after.Persist(store)
	if err := store.Save(); err != nil {
		return BumpResult{}, err
	}

	s.logger.Info("version bumped",
		zap.String("metaPath", path),
		zap.String("bump", intent.String()),
		zap.String("from", before.Version().String()),
		zap.String("to", after.Version().String()),
	)
	return BumpResult{Before: before, After: after, Path: path}, nil
}

// Promote moves a reviewed bootstrap sidecar into place as the persisted
// record. An existing record is never overwritten.
func (s Service) Promote(project layout.Project) (string, error) {
	metaPath := project.MetaPath()
	sidecarPath := project.SidecarPath()

	if _, err := os.Stat(metaPath); err == nil {
		return "", fmt.Errorf("%w: %s", ErrAlreadyPresent, metaPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking %s: %w", metaPath, err)
	}

	if _, _, err := s.load(sidecarPath); err != nil {
		if errors.Is(err, ErrNoMetadata) {
			return "", fmt.Errorf("%w: %s", ErrNoSidecar, sidecarPath)
		}
		return "", err
	}

	if err := os.Rename(sidecarPath, metaPath); err != nil {
		return "", fmt.Errorf("promoting %s: %w", sidecarPath, err)
	}

	s.logger.Info("bootstrap record promoted", zap.String("from", sidecarPath), zap.String("to", metaPath))
	return metaPath, nil
}

func (s Service) load(path string) (*inistore.Store, buildmeta.Metadata, error) {
	store, err := inistore.Open(path)
	if err != nil {
		return nil, buildmeta.Metadata{}, err
	}
	if !store.Exists() {
		return nil, buildmeta.Metadata{}, fmt.Errorf("%w: %s", ErrNoMetadata, path)
	}
	m, err := buildmeta.Load(store)
	if err != nil {
		return nil, buildmeta.Metadata{}, fmt.Errorf("%s: %w", path, err)
	}
	return store, m, nil
}
