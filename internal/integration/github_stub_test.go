package integration

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// githubStub emulates the release API and archive downloads of one repository.
type githubStub struct {
	server *httptest.Server
	owner  string
	repo   string

	mu       sync.Mutex
	tag      string
	archive  []byte
	branches map[string][]byte
}

func newGitHubStub(t *testing.T, owner, repo string) *githubStub {
	t.Helper()

	stub := &githubStub{
		owner:    owner,
		repo:     repo,
		branches: make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/repos/%s/%s/releases/latest", owner, repo), stub.serveLatest)
	mux.HandleFunc("/release.zip", stub.serveRelease)
	mux.HandleFunc(fmt.Sprintf("/github.com/%s/%s/archive/refs/heads/", owner, repo), stub.serveBranch)

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)

	return stub
}

// RepositoryURL is the repository page as a user would paste it.
func (s *githubStub) RepositoryURL() string {
	return fmt.Sprintf("%s/github.com/%s/%s", s.server.URL, s.owner, s.repo)
}

// Publish makes tag the latest release with the given archive.
func (s *githubStub) Publish(tag string, archive []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tag = tag
	s.archive = archive
}

// PushBranch serves archive as the head of branch.
func (s *githubStub) PushBranch(branch string, archive []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.branches[branch] = archive
}

func (s *githubStub) serveLatest(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	tag := s.tag
	s.mu.Unlock()

	if tag == "" {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"tag_name":%q,"name":%q,"published_at":"2024-06-01T12:00:00Z","zipball_url":%q}`,
		tag, "Release "+tag, s.server.URL+"/release.zip")
}

func (s *githubStub) serveRelease(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	archive := s.archive
	s.mu.Unlock()

	_, _ = w.Write(archive)
}

func (s *githubStub) serveBranch(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	branch := strings.TrimSuffix(name, ".zip")

	s.mu.Lock()
	archive, ok := s.branches[branch]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	_, _ = w.Write(archive)
}

// releaseArchive builds a zip wrapped in one folder, like GitHub zipballs.
func releaseArchive(t *testing.T, folder string, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)

	for name, contents := range files {
		w, err := writer.Create(folder + "/" + name)
		require.NoError(t, err)

		_, err = w.Write([]byte(contents))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return buf.Bytes()
}
