// Package updater orchestrates an install: resolve the release, download the
// archive, install it, and report the outcome to the host.
//
// Work runs on one background goroutine per install. The foreground never
// waits on it directly: it calls Poll at a fixed interval, redrawing the
// status region on every tick and emitting exactly one notification once the
// worker has finished.
package updater
