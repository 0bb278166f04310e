package ocio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseSource verifies known selectors are accepted case-insensitively.
func TestParseSource(t *testing.T) {
	t.Parallel()

	for _, s := range Sources() {
		got, err := ParseSource(" " + string(s) + " ")
		require.NoError(t, err)
		require.Equal(t, s, got)
	}

	got, err := ParseSource("AIO-OCIO")
	require.NoError(t, err)
	require.Equal(t, SourceAIOOCIO, got)

	_, err = ParseSource("gitlab")
	require.Error(t, err)
}

// TestNewVersionRecord checks the record copies release fields and normalizes time to UTC.
func TestNewVersionRecord(t *testing.T) {
	t.Parallel()

	installedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	release := &ReleaseInfo{
		Tag:         "v2.1.0",
		PublishedAt: "2026-02-27T10:00:00Z",
		DownloadURL: "https://example.com/v2.1.0.zip",
		DisplayName: "AIO-OCIO 2.1",
	}

	record := NewVersionRecord(release, SourceAIOOCIO, installedAt)
	require.Equal(t, "v2.1.0", record.Tag)
	require.Equal(t, "2026-02-27T10:00:00Z", record.PublishedDate)
	require.Equal(t, time.UTC, record.InstalledDate.Location())
	require.True(t, record.InstalledDate.Equal(installedAt))
	require.Equal(t, SourceAIOOCIO, record.Source)
}

// TestIsNewer covers semantic ordering and the fallback for non-semver tags.
func TestIsNewer(t *testing.T) {
	t.Parallel()

	newer, err := IsNewer("", "v1.0.0")
	require.NoError(t, err)
	require.True(t, newer)

	newer, err = IsNewer("v1.2.0", "v1.10.0")
	require.NoError(t, err)
	require.True(t, newer)

	newer, err = IsNewer("v1.10.0", "v1.2.0")
	require.NoError(t, err)
	require.False(t, newer)

	newer, err = IsNewer("v1.2.0", "1.2.0")
	require.NoError(t, err)
	require.False(t, newer)

	newer, err = IsNewer("master", "master")
	require.Error(t, err)
	require.False(t, newer)

	newer, err = IsNewer("master", "v1.0.0")
	require.Error(t, err)
	require.True(t, newer)
}
