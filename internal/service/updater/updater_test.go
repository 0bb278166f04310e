package updater

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/ocio-updater/internal/config"
	"github.com/oshokin/ocio-updater/internal/domain/ocio"
	"github.com/oshokin/ocio-updater/internal/repository/record"
	"github.com/oshokin/ocio-updater/internal/service/common"
	"github.com/oshokin/ocio-updater/internal/service/fetcher"
	"github.com/oshokin/ocio-updater/internal/service/resolver"
)

const testRepository = "https://github.com/owner/aio-ocio"

type notification struct {
	level   Level
	message string
}

type fakeHost struct {
	mu            sync.Mutex
	redraws       int
	notifications []notification
}

func (h *fakeHost) ReportStatus(level Level, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.notifications = append(h.notifications, notification{level: level, message: message})
}

func (h *fakeHost) RedrawStatusRegion() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.redraws++
}

// blockingResolver holds the worker until release is closed.
type blockingResolver struct {
	release chan struct{}
	err     error
}

func (r *blockingResolver) Resolve(ctx context.Context, repoURL, _ string) (*ocio.ReleaseInfo, error) {
	return r.Latest(ctx, repoURL)
}

func (r *blockingResolver) Latest(context.Context, string) (*ocio.ReleaseInfo, error) {
	<-r.release

	if r.err != nil {
		return nil, r.err
	}

	return &ocio.ReleaseInfo{Tag: "v2.0.0", DownloadURL: "http://unused.invalid/a.zip"}, nil
}

type staticResolver struct {
	release *ocio.ReleaseInfo
}

func (r staticResolver) Resolve(context.Context, string, string) (*ocio.ReleaseInfo, error) {
	return r.release, nil
}

func (r staticResolver) Latest(context.Context, string) (*ocio.ReleaseInfo, error) {
	return r.release, nil
}

type memoryRecords struct {
	record *ocio.VersionRecord
}

func (m *memoryRecords) Read(context.Context) *ocio.VersionRecord {
	return m.record
}

func (m *memoryRecords) Write(_ context.Context, release *ocio.ReleaseInfo, source ocio.Source) error {
	m.record = ocio.NewVersionRecord(release, source, time.Now())
	return nil
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	writer := zip.NewWriter(&buf)

	for name, contents := range entries {
		w, err := writer.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(contents))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return buf.Bytes()
}

// releaseServer serves the latest-release metadata and the archive.
// A zero archiveStatus serves archive with 200.
func releaseServer(t *testing.T, archive []byte, archiveStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	var server *httptest.Server

	mux.HandleFunc("/repos/owner/aio-ocio/releases/latest", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"tag_name":"v2.0.0","name":"AIO-OCIO 2.0","published_at":"2024-05-01T10:00:00Z","zipball_url":%q}`,
			server.URL+"/archive.zip")
	})

	mux.HandleFunc("/archive.zip", func(w http.ResponseWriter, _ *http.Request) {
		if archiveStatus != 0 {
			http.Error(w, "boom", archiveStatus)
			return
		}

		_, _ = w.Write(archive)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

type env struct {
	updater  *Updater
	target   string
	tempRoot string
}

func newEnv(t *testing.T, server *httptest.Server, configure ...func(root string, cfg *config.Config)) *env {
	t.Helper()

	root := t.TempDir()
	tempRoot := filepath.Join(root, "tmp")
	require.NoError(t, os.MkdirAll(tempRoot, 0o755))

	cfg := config.Default()
	cfg.Repositories.AIOOCIO = testRepository
	cfg.InstallDir = filepath.Join(root, "colormanagement")

	for _, fn := range configure {
		fn(root, cfg)
	}

	client := common.NewClient(5*time.Second, common.WithHTTPClient(server.Client()))

	u, err := New(&Options{
		Config:         cfg,
		Resolver:       resolver.New(client, resolver.WithAPIBase(server.URL)),
		Downloader:     fetcher.New(client),
		TempRoot:       tempRoot,
		ProcessRunning: func(string) (bool, error) { return false, nil },
	})
	require.NoError(t, err)

	return &env{
		updater:  u,
		target:   cfg.InstallDir,
		tempRoot: tempRoot,
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestInstall_EndToEnd installs a release served over HTTP.
func TestInstall_EndToEnd(t *testing.T) {
	t.Parallel()

	archive := zipBytes(t, map[string]string{
		"owner-aio-ocio-abc123/config_CG_Lin709.ocio": "ocio_profile_version: 2",
		"owner-aio-ocio-abc123/luts/a.cube":           "LUT",
	})

	e := newEnv(t, releaseServer(t, archive, 0))
	host := new(fakeHost)

	require.NoError(t, e.updater.Start(context.Background()))
	require.NoError(t, e.updater.Wait(waitCtx(t), host))

	got, err := os.ReadFile(filepath.Join(e.target, "config.ocio"))
	require.NoError(t, err)
	require.Equal(t, "ocio_profile_version: 2", string(got))

	got, err = os.ReadFile(filepath.Join(e.target, "luts", "a.cube"))
	require.NoError(t, err)
	require.Equal(t, "LUT", string(got))

	rec := e.updater.Record(context.Background())
	require.NotNil(t, rec)
	require.Equal(t, "v2.0.0", rec.Tag)
	require.Equal(t, ocio.SourceAIOOCIO, rec.Source)

	_, err = os.Stat(filepath.Join(e.target, record.Filename))
	require.NoError(t, err)

	require.Len(t, host.notifications, 1)
	require.Equal(t, LevelInfo, host.notifications[0].level)
	require.Equal(t, "AIO-OCIO installed successfully! Restart Blender to apply changes.", host.notifications[0].message)
	require.Positive(t, host.redraws)

	require.False(t, e.updater.State().Busy())
	requireEmptyDir(t, e.tempRoot)
}

// TestInstall_DownloadFailure leaves an existing install untouched.
func TestInstall_DownloadFailure(t *testing.T) {
	t.Parallel()

	e := newEnv(t, releaseServer(t, nil, http.StatusInternalServerError))
	host := new(fakeHost)

	require.NoError(t, os.MkdirAll(e.target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.target, "config.ocio"), []byte("old"), 0o600))

	require.NoError(t, e.updater.Start(context.Background()))

	err := e.updater.Wait(waitCtx(t), host)
	require.ErrorIs(t, err, ErrInstallFailed)
	require.Contains(t, err.Error(), "Download failed")

	require.Len(t, host.notifications, 1)
	require.Equal(t, LevelError, host.notifications[0].level)
	require.Contains(t, host.notifications[0].message, "Installation failed: Download failed: ")
	require.Contains(t, host.notifications[0].message, "500")

	got, err := os.ReadFile(filepath.Join(e.target, "config.ocio"))
	require.NoError(t, err)
	require.Equal(t, "old", string(got))

	_, err = os.Stat(e.updater.BackupPath())
	require.ErrorIs(t, err, os.ErrNotExist)

	requireEmptyDir(t, e.tempRoot)
}

// TestInstall_FailuresLeaveNoScratch runs several failing installs in a row.
func TestInstall_FailuresLeaveNoScratch(t *testing.T) {
	t.Parallel()

	corrupt := []byte("this is not a zip archive")
	e := newEnv(t, releaseServer(t, corrupt, 0))

	for range 3 {
		host := new(fakeHost)

		require.NoError(t, e.updater.Start(context.Background()))
		require.ErrorIs(t, e.updater.Wait(waitCtx(t), host), ErrInstallFailed)
		require.Len(t, host.notifications, 1)
		require.Contains(t, host.notifications[0].message, "Installation failed: archive error")

		requireEmptyDir(t, e.tempRoot)
	}

	_, err := os.Stat(e.target)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestInstall_FilesystemFailuresLeaveNoScratch installs under a regular file
// several times in a row.
func TestInstall_FilesystemFailuresLeaveNoScratch(t *testing.T) {
	t.Parallel()

	archive := zipBytes(t, map[string]string{
		"owner-aio-ocio-abc123/config_CG_Lin709.ocio": "ocio_profile_version: 2",
	})

	e := newEnv(t, releaseServer(t, archive, 0), func(root string, cfg *config.Config) {
		blocker := filepath.Join(root, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o600))

		cfg.InstallDir = filepath.Join(blocker, "colormanagement")
	})

	for range 3 {
		host := new(fakeHost)

		require.NoError(t, e.updater.Start(context.Background()))
		require.ErrorIs(t, e.updater.Wait(waitCtx(t), host), ErrInstallFailed)
		require.Len(t, host.notifications, 1)
		require.Equal(t, LevelError, host.notifications[0].level)
		require.Contains(t, host.notifications[0].message, "Installation failed: filesystem error")

		requireEmptyDir(t, e.tempRoot)
	}

	require.False(t, e.updater.State().Busy())
	require.Nil(t, e.updater.Record(context.Background()))
}

// TestStart_Busy rejects a second install and keeps the running one intact.
func TestStart_Busy(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.InstallDir = filepath.Join(t.TempDir(), "colormanagement")

	blocker := &blockingResolver{
		release: make(chan struct{}),
		err:     errors.New("resolver closed"),
	}

	u, err := New(&Options{
		Config:   cfg,
		Resolver: blocker,
		TempRoot: t.TempDir(),
	})
	require.NoError(t, err)

	require.NoError(t, u.Start(context.Background()))

	before := u.State().Snapshot()
	require.True(t, before.Busy)

	require.ErrorIs(t, u.Start(context.Background()), ErrBusy)
	require.Equal(t, before, u.State().Snapshot())

	close(blocker.release)

	host := new(fakeHost)
	require.ErrorIs(t, u.Wait(waitCtx(t), host), ErrInstallFailed)
	require.Len(t, host.notifications, 1)
	require.Equal(t, "Installation failed: resolver closed", host.notifications[0].message)

	// Once released a new install may start.
	require.NoError(t, u.Start(context.Background()))
	require.ErrorIs(t, u.Wait(waitCtx(t), host), ErrInstallFailed)
}

// TestStart_NoRepository fails before anything is spawned.
func TestStart_NoRepository(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Source = ocio.SourceCustom
	cfg.InstallDir = t.TempDir()

	u, err := New(&Options{Config: cfg})
	require.NoError(t, err)

	err = u.Start(context.Background())
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorIs(t, err, config.ErrNoRepository)
	require.False(t, u.State().Busy())
	require.Empty(t, u.State().Status())
}

// TestPoll_ReportsOnce delivers the outcome on exactly one tick.
func TestPoll_ReportsOnce(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.InstallDir = t.TempDir()

	u, err := New(&Options{Config: cfg})
	require.NoError(t, err)

	host := new(fakeHost)

	require.False(t, u.Poll(context.Background(), host))
	require.Equal(t, 1, host.redraws)

	require.True(t, u.State().TryBegin("working"))
	require.False(t, u.Poll(context.Background(), host))

	u.State().Finish(false, "boom")

	require.True(t, u.Poll(context.Background(), host))
	require.False(t, u.Poll(context.Background(), host))
	require.False(t, u.Poll(context.Background(), host))

	require.Equal(t, 5, host.redraws)
	require.Equal(t, []notification{{level: LevelError, message: "Installation failed: boom"}}, host.notifications)
	require.False(t, u.State().Busy())
}

// TestWait_ContextCanceled returns the context error.
func TestWait_ContextCanceled(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.InstallDir = t.TempDir()

	u, err := New(&Options{Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*PollInterval)
	defer cancel()

	require.ErrorIs(t, u.Wait(ctx, new(fakeHost)), context.DeadlineExceeded)
}

// TestSuccessMessage covers the running-host hint and product names.
func TestSuccessMessage(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.InstallDir = t.TempDir()

	u, err := New(&Options{
		Config:         cfg,
		ProcessRunning: func(name string) (bool, error) { return name == "blender", nil },
	})
	require.NoError(t, err)

	u.lastSource = ocio.SourcePixelManager
	require.Equal(t,
		"PixelManager installed successfully! Restart Blender to apply changes. Blender is running now.",
		u.successMessage(context.Background()))

	u.lastSource = ocio.SourceCustom
	u.processRunning = func(string) (bool, error) { return false, errors.New("no procfs") }
	require.Equal(t,
		"OCIO config installed successfully! Restart Blender to apply changes.",
		u.successMessage(context.Background()))
}

// TestCheck compares the installed record with the newest release.
func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		installed *ocio.VersionRecord
		latest    string
		want      bool
	}{
		{name: "nothing installed", installed: nil, latest: "v1.0.0", want: true},
		{name: "newer release", installed: &ocio.VersionRecord{Tag: "v1.1.0"}, latest: "v1.2.0", want: true},
		{name: "same release", installed: &ocio.VersionRecord{Tag: "v1.2.0"}, latest: "v1.2.0", want: false},
		{name: "older release", installed: &ocio.VersionRecord{Tag: "v1.3.0"}, latest: "v1.2.0", want: false},
		{name: "branch tags", installed: &ocio.VersionRecord{Tag: "main"}, latest: "dev", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			cfg.InstallDir = t.TempDir()

			u, err := New(&Options{
				Config:   cfg,
				Resolver: staticResolver{release: &ocio.ReleaseInfo{Tag: tt.latest}},
				Records:  &memoryRecords{record: tt.installed},
			})
			require.NoError(t, err)

			result, err := u.Check(context.Background())
			require.NoError(t, err)
			require.Equal(t, tt.want, result.UpdateAvailable)
			require.Equal(t, tt.latest, result.Latest.Tag)
		})
	}
}

// TestDescribe unwraps download failures.
func TestDescribe(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("step: %w", &fetcher.Error{Cause: cause})

	require.Equal(t, "Download failed: connection refused", Describe(wrapped))
	require.Equal(t, "plain", Describe(errors.New("plain")))
}

// TestLevelString names every level.
func TestLevelString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "info", LevelInfo.String())
	require.Equal(t, "warning", LevelWarning.String())
	require.Equal(t, "error", LevelError.String())
	require.Equal(t, "unknown", Level(42).String())
}

// TestInstallState distinguishes a shipped config from a custom one.
func TestInstallState(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.InstallDir = filepath.Join(t.TempDir(), "colormanagement")

	u, err := New(&Options{Config: cfg})
	require.NoError(t, err)

	require.Equal(t, StateNoConfig, u.InstallState())
	require.Equal(t, "Install", u.InstallState().ActionLabel())

	require.NoError(t, os.MkdirAll(cfg.InstallDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InstallDir, "config.ocio"), []byte("custom"), 0o600))
	require.Equal(t, StateCustomConfig, u.InstallState())
	require.Equal(t, "Custom OCIO detected", u.InstallState().String())

	require.NoError(t, os.WriteFile(filepath.Join(cfg.InstallDir, "config_CG_Lin709.ocio"), []byte("aio"), 0o600))
	require.Equal(t, StateInstalled, u.InstallState())
	require.Equal(t, "Update", u.InstallState().ActionLabel())
}
