// Package version exposes build metadata for ocio-updater.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. UserAgent builds the identifying header sent with every
// outbound HTTP request.
package version
