// Package ocio contains the core domain types of the updater.
//
// It defines the configuration Source a release is pulled from, the
// ReleaseInfo describing a remote release, and the VersionRecord persisted
// next to an installed color-management configuration.
package ocio
