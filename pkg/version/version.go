package version

// These are set at build time via -ldflags.
var (
	// Version is the semver of this build, e.g. v1.2.3.
	Version = "unknown"
	// GitCommit is the commit hash of this build.
	GitCommit = "unknown"
)
