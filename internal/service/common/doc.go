// Package common holds helpers shared by several services.
//
// It provides the HTTP client every outbound request goes through (fixed
// identifying header and per-request timeout), a probe for a running host
// process, and a launcher for the system's default browser.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
