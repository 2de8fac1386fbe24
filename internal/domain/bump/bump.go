package bump

import (
	"fmt"
	"strings"

	semver "github.com/blang/semver/v4"
)

// Bump represents an operator-requested semantic version increment.
type Bump string

const (
	BumpMajor Bump = "major"
	BumpMinor Bump = "minor"
	BumpPatch Bump = "patch"
)

// Parse converts a string into a Bump value. Matching ignores case and
// surrounding whitespace.
func Parse(value string) (Bump, error) {
	switch b := Bump(strings.ToLower(strings.TrimSpace(value))); b {
	case BumpMajor, BumpMinor, BumpPatch:
		return b, nil
	default:
		return "", fmt.Errorf("invalid bump %q (want major, minor or patch)", value)
	}
}

// Apply increments base according to the bump, resetting lower components and
// dropping pre-release and build metadata.
func (b Bump) Apply(base semver.Version) (semver.Version, error) {
	next := base
	var err error
	switch b {
	case BumpMajor:
		err = next.IncrementMajor()
	case BumpMinor:
		err = next.IncrementMinor()
	case BumpPatch:
		err = next.IncrementPatch()
	default:
		return semver.Version{}, fmt.Errorf("invalid bump %q", string(b))
	}
	if err != nil {
		return semver.Version{}, err
	}
	next.Pre = nil
	next.Build = nil
	return next, nil
}

func (b Bump) String() string {
	return string(b)
}
