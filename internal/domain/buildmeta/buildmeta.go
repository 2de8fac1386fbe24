package buildmeta

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"

	"github.com/launchbynttdata/launch-build-stamper/internal/domain/bump"
)

// Section and key names of the persisted record.
const (
	SectionVersion = "Version"
	SectionBuild   = "Build"

	KeyMajor       = "Major"
	KeyMinor       = "Minor"
	KeyPatch       = "Patch"
	KeyBuildNumber = "BuildNumber"
	KeyBuildDate   = "BuildDate"
	KeyBuildTime   = "BuildTime"
	KeyGitHash     = "GitHash"
)

const (
	// DateLayout renders e.g. "Sunday, 18 October 2026".
	DateLayout = "Monday, 02 January 2006"
	// TimeLayout renders a 24-hour clock time.
	TimeLayout = "15:04:05"
)

var (
	// ErrCorrupt indicates a numeric field of the persisted record could not be parsed.
	ErrCorrupt = errors.New("buildmeta: corrupt record")
	// ErrCounterExhausted indicates the build number is already at its maximum.
	ErrCounterExhausted = errors.New("buildmeta: build number exhausted")
)

// FieldError names the field and raw value that failed to parse.
type FieldError struct {
	Field string
	Raw   string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("field %s is missing or empty", e.Field)
	}
	return fmt.Sprintf("field %s has invalid value %q", e.Field, e.Raw)
}

// Is matches ErrCorrupt so callers can test the kind without a type assertion.
func (e *FieldError) Is(target error) bool {
	return target == ErrCorrupt
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Reader is the read side of a sectioned key/value store.
type Reader interface {
	Read(section, key, def string) string
}

// Writer is the write side of a sectioned key/value store.
type Writer interface {
	Set(section, key, value string)
	ClearSection(section string)
}

// Metadata is the version and build record stamped into every build.
type Metadata struct {
	Major       uint32
	Minor       uint32
	Patch       uint32
	BuildNumber uint32
	BuildDate   string
	BuildTime   string
	GitHash     string
}

// Default returns the record written when bootstrapping a project: 0.1.0, build 0.
func Default() Metadata {
	return Metadata{Major: 0, Minor: 1, Patch: 0}
}

// Load reads all seven fields from r. Every numeric field must hold an
// unsigned decimal; a missing value is corrupt rather than zero so the build
// counter can never silently reset.
func Load(r Reader) (Metadata, error) {
	var m Metadata
	numeric := []struct {
		section string
		key     string
		dst     *uint32
	}{
		{SectionVersion, KeyMajor, &m.Major},
		{SectionVersion, KeyMinor, &m.Minor},
		{SectionVersion, KeyPatch, &m.Patch},
		{SectionBuild, KeyBuildNumber, &m.BuildNumber},
	}
	for _, f := range numeric {
		raw := r.Read(f.section, f.key, "")
		value, err := parseUint(raw)
		if err != nil {
			return Metadata{}, &FieldError{Field: f.key, Raw: raw, Err: err}
		}
		*f.dst = value
	}

	m.BuildDate = r.Read(SectionBuild, KeyBuildDate, "")
	m.BuildTime = r.Read(SectionBuild, KeyBuildTime, "")
	m.GitHash = r.Read(SectionBuild, KeyGitHash, "")
	return m, nil
}

// Persist rewrites both sections of w so that they hold exactly the seven
// fields in their fixed order. Unknown keys in those sections are dropped.
func (m Metadata) Persist(w Writer) {
	w.ClearSection(SectionVersion)
	w.ClearSection(SectionBuild)

	w.Set(SectionVersion, KeyMajor, formatUint(m.Major))
	w.Set(SectionVersion, KeyMinor, formatUint(m.Minor))
	w.Set(SectionVersion, KeyPatch, formatUint(m.Patch))

	w.Set(SectionBuild, KeyBuildNumber, formatUint(m.BuildNumber))
	w.Set(SectionBuild, KeyBuildDate, m.BuildDate)
	w.Set(SectionBuild, KeyBuildTime, m.BuildTime)
	w.Set(SectionBuild, KeyGitHash, m.GitHash)
}

// Stamp returns the record for the next build: counter incremented, date and
// time taken from now in its own location, revision set to hash.
func (m Metadata) Stamp(now time.Time, hash string) (Metadata, error) {
	if m.BuildNumber == math.MaxUint32 {
		return Metadata{}, fmt.Errorf("%w: %d cannot be incremented", ErrCounterExhausted, m.BuildNumber)
	}
	next := m
	next.BuildNumber++
	next.BuildDate = now.Format(DateLayout)
	next.BuildTime = now.Format(TimeLayout)
	next.GitHash = hash
	return next, nil
}

// Version returns the semantic version with the build number as build metadata.
func (m Metadata) Version() semver.Version {
	return semver.Version{
		Major: uint64(m.Major),
		Minor: uint64(m.Minor),
		Patch: uint64(m.Patch),
		Build: []string{formatUint(m.BuildNumber)},
	}
}

// ApplyBump increments Major, Minor or Patch. The build counter is left untouched.
func (m Metadata) ApplyBump(b bump.Bump) (Metadata, error) {
	next, err := b.Apply(m.Version())
	if err != nil {
		return Metadata{}, err
	}
	if next.Major > math.MaxUint32 || next.Minor > math.MaxUint32 || next.Patch > math.MaxUint32 {
		return Metadata{}, fmt.Errorf("version %s overflows", next)
	}
	out := m
	out.Major = uint32(next.Major)
	out.Minor = uint32(next.Minor)
	out.Patch = uint32(next.Patch)
	return out, nil
}

// Summary returns the human-readable confirmation line for a stamped build.
func (m Metadata) Summary() string {
	return fmt.Sprintf("New build number generated: %d @ %s - %s # %s", m.BuildNumber, m.BuildDate, m.BuildTime, m.GitHash)
}

func parseUint(raw string) (uint32, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func formatUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
