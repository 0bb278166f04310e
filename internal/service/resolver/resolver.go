package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/oshokin/ocio-updater/internal/domain/ocio"
	"github.com/oshokin/ocio-updater/internal/logger"
	"github.com/oshokin/ocio-updater/internal/service/common"
)

const (
	// DefaultAPIBase is the GitHub REST API root.
	DefaultAPIBase = "https://api.github.com"

	// repositoryMarker precedes the owner/repo part of a repository URL.
	repositoryMarker = "github.com/"

	// latestReleaseTemplate is filled with the API root and "owner/repo".
	latestReleaseTemplate = "%s/repos/%s/releases/latest"

	// maxMetadataSize caps the release metadata body.
	maxMetadataSize = 4 << 20
)

var (
	// ErrResolution is returned when release metadata is unavailable.
	ErrResolution = errors.New("release metadata unavailable")

	errMalformedRepositoryURL = errors.New("malformed repository URL")
	errIncompleteRelease      = errors.New("release has no tag or zipball")
)

// githubRelease is the subset of the GitHub release payload the updater uses.
type githubRelease struct {
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	PublishedAt string `json:"published_at"`
	ZipballURL  string `json:"zipball_url"`
}

// Resolver fetches release metadata from GitHub.
type Resolver struct {
	client  *common.Client
	apiBase string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAPIBase points the resolver at another API root, e.g. a test server.
func WithAPIBase(apiBase string) Option {
	return func(r *Resolver) {
		if apiBase != "" {
			r.apiBase = strings.TrimRight(apiBase, "/")
		}
	}
}

// New creates a resolver that sends requests through client.
func New(client *common.Client, opts ...Option) *Resolver {
	r := &Resolver{
		client:  client,
		apiBase: DefaultAPIBase,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// EndpointFor converts a repository URL into its latest-release endpoint:
// "https://github.com/OWNER/REPO/" becomes
// "https://api.github.com/repos/OWNER/REPO/releases/latest".
func EndpointFor(repoURL string) (string, error) {
	return endpointFor(DefaultAPIBase, repoURL)
}

// Slug returns the "owner/repo" part of a repository URL.
func Slug(repoURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(repoURL), "/")

	index := strings.Index(trimmed, repositoryMarker)
	if index < 0 {
		return "", fmt.Errorf("%q: %w", repoURL, errMalformedRepositoryURL)
	}

	parts := strings.Split(trimmed[index+len(repositoryMarker):], "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%q: %w", repoURL, errMalformedRepositoryURL)
	}

	return parts[0] + "/" + strings.TrimSuffix(parts[1], ".git"), nil
}

func endpointFor(apiBase, repoURL string) (string, error) {
	slug, err := Slug(repoURL)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(latestReleaseTemplate, apiBase, slug), nil
}

// BranchRelease describes the head of a branch as a release whose download
// URL is the branch zip, for repositories that publish no releases.
func BranchRelease(repoURL, branch string) (*ocio.ReleaseInfo, error) {
	slug, err := Slug(repoURL)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(repoURL), "/"), ".git")

	return &ocio.ReleaseInfo{
		Tag:         branch,
		DownloadURL: base + "/archive/refs/heads/" + url.PathEscape(branch) + ".zip",
		DisplayName: slug + "@" + branch,
	}, nil
}

// Resolve returns the release to install: the branch head when branch is set,
// otherwise the latest published release.
func (r *Resolver) Resolve(ctx context.Context, repoURL, branch string) (*ocio.ReleaseInfo, error) {
	if branch != "" {
		release, err := BranchRelease(repoURL, branch)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrResolution, err)
		}

		return release, nil
	}

	return r.Latest(ctx, repoURL)
}

// Latest fetches the latest release of the repository in a single attempt.
func (r *Resolver) Latest(ctx context.Context, repoURL string) (*ocio.ReleaseInfo, error) {
	endpoint, err := endpointFor(r.apiBase, repoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}

	logger.DebugKV(ctx, "Fetching release metadata", "endpoint", endpoint)

	response, err := r.client.Get(ctx, endpoint, map[string]string{
		"Accept": "application/vnd.github+json",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	var payload githubRelease
	if err = json.NewDecoder(io.LimitReader(response.Body, maxMetadataSize)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrResolution, endpoint, err)
	}

	if payload.TagName == "" || payload.ZipballURL == "" {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolution, endpoint, errIncompleteRelease)
	}

	release := &ocio.ReleaseInfo{
		Tag:         payload.TagName,
		PublishedAt: payload.PublishedAt,
		DownloadURL: payload.ZipballURL,
		DisplayName: payload.Name,
	}

	if release.DisplayName == "" {
		release.DisplayName = release.Tag
	}

	logger.InfoKV(ctx, "Resolved latest release", "tag", release.Tag, "published_at", release.PublishedAt)

	return release, nil
}
