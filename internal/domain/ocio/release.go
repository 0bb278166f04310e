package ocio

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// ReleaseInfo describes a remote release. It is immutable once fetched.
type ReleaseInfo struct {
	// Tag is the release tag, or the branch name in branch mode.
	Tag string
	// PublishedAt is the publication timestamp as reported by the provider.
	PublishedAt string
	// DownloadURL points to the zip archive of the release.
	DownloadURL string
	// DisplayName is the human-readable release title.
	DisplayName string
}

// VersionRecord describes the release currently installed in a target directory.
type VersionRecord struct {
	// Tag is the installed release tag.
	Tag string `json:"tag"`
	// PublishedDate is the publication timestamp of the installed release.
	PublishedDate string `json:"published_date"`
	// InstalledDate is when the installation finished.
	InstalledDate time.Time `json:"installed_date"`
	// Source is the source selector the release came from.
	Source Source `json:"source"`
}

// NewVersionRecord builds a record for a release installed at the given time.
func NewVersionRecord(release *ReleaseInfo, source Source, installedAt time.Time) *VersionRecord {
	return &VersionRecord{
		Tag:           release.Tag,
		PublishedDate: release.PublishedAt,
		InstalledDate: installedAt.UTC(),
		Source:        source,
	}
}

// IsNewer reports whether latestTag is a newer release than installedTag.
// Tags that are not semantic versions (branch names, date tags) cannot be
// ordered; in that case any difference counts as newer and the returned error
// explains why the comparison was not semantic.
func IsNewer(installedTag, latestTag string) (bool, error) {
	if installedTag == "" {
		return true, nil
	}

	installed, err := semver.NewVersion(installedTag)
	if err != nil {
		return installedTag != latestTag, fmt.Errorf("parse installed tag %q: %w", installedTag, err)
	}

	latest, err := semver.NewVersion(latestTag)
	if err != nil {
		return installedTag != latestTag, fmt.Errorf("parse latest tag %q: %w", latestTag, err)
	}

	return latest.GreaterThan(installed), nil
}
