package version

import "fmt"

// productName identifies the client towards remote services.
const productName = "ocio-updater"

var (
	// Version is the semantic version of the build. It can be overridden via ldflags.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("%s version: %s, commit: %s, built at: %s", productName, Version, Commit, BuildTime)
}

// UserAgent returns the value of the User-Agent header, e.g. "ocio-updater/0.1.0".
func UserAgent() string {
	return productName + "/" + Version
}
