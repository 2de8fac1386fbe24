// Package version exposes build-time metadata stamped into the bst binary via ldflags.
package version

const (
	defaultVersion   = "dev"
	defaultCommit    = "none"
	defaultBuildDate = "unknown"
)

var (
	// Version is the semantic version associated with this build.
	Version = defaultVersion
	// Commit is the git revision the binary was built from.
	Commit = defaultCommit
	// BuildDate is the UTC timestamp when the binary was built.
	BuildDate = defaultBuildDate
)

// Summary returns a human-readable description of the build metadata.
func Summary() string {
	return Version + " (" + Commit + ", built " + BuildDate + ")"
}
