// Package resolver maps a repository URL to the provider's "latest release"
// endpoint and fetches the release metadata: tag, publication date, zip
// download URL and display name.
package resolver
