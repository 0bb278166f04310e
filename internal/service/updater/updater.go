package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oshokin/ocio-updater/internal/config"
	"github.com/oshokin/ocio-updater/internal/domain/ocio"
	"github.com/oshokin/ocio-updater/internal/logger"
	"github.com/oshokin/ocio-updater/internal/repository/record"
	"github.com/oshokin/ocio-updater/internal/service/common"
	"github.com/oshokin/ocio-updater/internal/service/fetcher"
	"github.com/oshokin/ocio-updater/internal/service/installer"
	"github.com/oshokin/ocio-updater/internal/service/progress"
	"github.com/oshokin/ocio-updater/internal/service/resolver"
)

const (
	// TempDirPattern names the per-install scratch directory.
	TempDirPattern = "aio_ocio_"

	// ArchiveName is the file the release archive is downloaded to.
	ArchiveName = "aio_ocio.zip"

	// BusyMessage is reported when an install is requested while one runs.
	BusyMessage = "Download already in progress"
)

var (
	// ErrBusy is returned by Start while an install is running.
	ErrBusy = errors.New("install already in progress")

	// ErrConfig is returned by Start when the selected source cannot be used.
	ErrConfig = errors.New("configuration error")

	// ErrInstallFailed is returned by Wait when the install did not succeed.
	ErrInstallFailed = errors.New("installation failed")

	errConfigIsNotSet = errors.New("configuration is not set")
)

// ReleaseResolver finds the release to install.
type ReleaseResolver interface {
	Resolve(ctx context.Context, repoURL, branch string) (*ocio.ReleaseInfo, error)
	Latest(ctx context.Context, repoURL string) (*ocio.ReleaseInfo, error)
}

// ArchiveDownloader fetches a release archive to a local file.
type ArchiveDownloader interface {
	Download(ctx context.Context, rawURL, dest string, report progress.Func) (int64, error)
}

// ReleaseInstaller places a downloaded archive into the InstallTarget.
type ReleaseInstaller interface {
	Install(
		ctx context.Context,
		archivePath string,
		scratchDir string,
		release *ocio.ReleaseInfo,
		source ocio.Source,
		report progress.Func,
	) error
	Target() string
	BackupPath() string
}

// Options are inputs accepted by New. Only Config is required.
type Options struct {
	// Config is the loaded settings.
	Config *config.Config
	// Resolver overrides the GitHub release resolver.
	Resolver ReleaseResolver
	// Downloader overrides the archive fetcher.
	Downloader ArchiveDownloader
	// Records overrides the version record store inside the InstallTarget.
	Records record.Repository
	// Installer overrides the installer built for the InstallTarget.
	Installer ReleaseInstaller
	// TempRoot is where scratch directories are created; empty means os.TempDir.
	TempRoot string
	// ProcessRunning detects the host process for the restart hint.
	ProcessRunning func(name string) (bool, error)
}

// job is the snapshot of settings a single install runs with.
type job struct {
	repoURL string
	branch  string
	source  ocio.Source
}

// Updater owns the progress state and runs installs on a worker goroutine.
type Updater struct {
	cfg            *config.Config
	state          *progress.State
	resolver       ReleaseResolver
	downloader     ArchiveDownloader
	installer      ReleaseInstaller
	records        record.Repository
	tempRoot       string
	processRunning func(name string) (bool, error)

	// lastSource is written by Start and read by Poll, both on the foreground.
	lastSource ocio.Source
}

// New wires the updater for the InstallTarget derived from opts.Config.
func New(opts *Options) (*Updater, error) {
	if opts == nil || opts.Config == nil {
		return nil, errConfigIsNotSet
	}

	u := &Updater{
		cfg:            opts.Config,
		state:          new(progress.State),
		resolver:       opts.Resolver,
		downloader:     opts.Downloader,
		installer:      opts.Installer,
		records:        opts.Records,
		tempRoot:       opts.TempRoot,
		processRunning: opts.ProcessRunning,
	}

	if u.resolver == nil || u.downloader == nil {
		client := common.NewClient(opts.Config.Timeout)

		if u.resolver == nil {
			u.resolver = resolver.New(client)
		}

		if u.downloader == nil {
			u.downloader = fetcher.New(client)
		}
	}

	if u.installer == nil || u.records == nil {
		target, err := opts.Config.InstallTarget()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}

		if u.records == nil {
			u.records = record.NewFileRepository(target)
		}

		if u.installer == nil {
			u.installer = installer.New(target, u.records)
		}
	}

	if u.processRunning == nil {
		u.processRunning = common.IsProcessRunning
	}

	return u, nil
}

// State exposes the progress state for rendering.
func (u *Updater) State() *progress.State {
	return u.state
}

// Target returns the InstallTarget.
func (u *Updater) Target() string {
	return u.installer.Target()
}

// BackupPath returns the retained backup path.
func (u *Updater) BackupPath() string {
	return u.installer.BackupPath()
}

// Record returns the installed version record, or nil when nothing is installed.
func (u *Updater) Record(ctx context.Context) *ocio.VersionRecord {
	return u.records.Read(ctx)
}

// Start launches an install of the currently selected source.
// It returns ErrConfig when no repository URL is configured and ErrBusy when
// an install is already running; in both cases nothing is spawned and the
// progress state is left as it was.
func (u *Updater) Start(ctx context.Context) error {
	repoURL, err := u.cfg.RepositoryURL()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if !u.state.TryBegin("Resolving latest release...") {
		return ErrBusy
	}

	j := job{
		repoURL: repoURL,
		branch:  strings.TrimSpace(u.cfg.Branch),
		source:  u.cfg.Source,
	}

	u.lastSource = j.source

	// The install outlives whoever asked for it.
	workerCtx := logger.WithName(context.WithoutCancel(ctx), "worker")

	go u.work(workerCtx, j)

	return nil
}

// work runs one install and records its outcome. Scratch files are gone by
// the time the outcome becomes visible.
func (u *Updater) work(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Install worker panicked", "panic", r)
			u.state.Finish(false, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	started := time.Now()

	err := u.install(ctx, j)
	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err, "elapsed", time.Since(started))
		u.state.Finish(false, Describe(err))

		return
	}

	logger.InfoKV(ctx, "Install finished", "elapsed", time.Since(started))
	u.state.Finish(true, "")
}

func (u *Updater) install(ctx context.Context, j job) error {
	ctx = logger.WithKV(ctx, "repository", j.repoURL, "source", string(j.source))

	release, err := u.resolver.Resolve(ctx, j.repoURL, j.branch)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Resolved release", "tag", release.Tag, "url", release.DownloadURL)

	scratchDir, err := os.MkdirTemp(u.tempRoot, TempDirPattern)
	if err != nil {
		return fmt.Errorf("%w: create temporary directory: %w", installer.ErrFilesystem, err)
	}

	defer func() {
		if removeErr := os.RemoveAll(scratchDir); removeErr != nil {
			logger.WarnKV(ctx, "Could not remove temporary directory", "path", scratchDir, "error", removeErr)
		}
	}()

	u.state.Update(0, "Starting download...")

	archivePath := filepath.Join(scratchDir, ArchiveName)

	size, err := u.downloader.Download(ctx, release.DownloadURL, archivePath, u.state.Update)
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Downloaded archive", "bytes", size)

	return u.installer.Install(ctx, archivePath, scratchDir, release, j.source, u.state.Update)
}

// Poll redraws the host's status region and, once the worker has finished,
// releases the busy flag and reports the outcome. It returns true on the
// single call that delivered the outcome.
func (u *Updater) Poll(ctx context.Context, host Host) bool {
	host.RedrawStatusRegion()

	if !u.state.Busy() || !u.state.Finished() {
		return false
	}

	succeeded := u.state.Succeeded()
	errorMsg := u.state.ErrorMessage()

	u.state.Release()

	if succeeded {
		host.ReportStatus(LevelInfo, u.successMessage(ctx))
	} else {
		host.ReportStatus(LevelError, "Installation failed: "+errorMsg)
	}

	return true
}

// Wait polls every PollInterval until the running install is reported.
// It returns ErrInstallFailed when the install did not succeed, and the
// context error when ctx ends first; the worker itself keeps running.
func (u *Updater) Wait(ctx context.Context, host Host) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !u.Poll(ctx, host) {
				continue
			}

			if u.state.Succeeded() {
				return nil
			}

			return fmt.Errorf("%w: %s", ErrInstallFailed, u.state.ErrorMessage())
		}
	}
}

// Check resolves the newest release of the selected source without
// installing it.
func (u *Updater) Check(ctx context.Context) (*CheckResult, error) {
	repoURL, err := u.cfg.RepositoryURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return u.CheckRepository(ctx, repoURL, strings.TrimSpace(u.cfg.Branch))
}

// CheckRepository is Check for an explicit repository and branch. It does
// not read the settings, so it may run off the foreground.
func (u *Updater) CheckRepository(ctx context.Context, repoURL, branch string) (*CheckResult, error) {
	latest, err := u.resolver.Resolve(ctx, repoURL, branch)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		Installed: u.records.Read(ctx),
		Latest:    latest,
	}

	if result.Installed == nil {
		result.UpdateAvailable = true
		return result, nil
	}

	newer, err := ocio.IsNewer(result.Installed.Tag, latest.Tag)
	if err != nil {
		logger.DebugKV(ctx, "Falling back to tag comparison", "error", err)
	}

	result.UpdateAvailable = newer

	return result, nil
}

// CheckResult compares the installed record with the newest release.
type CheckResult struct {
	// Installed is nil when nothing has been installed.
	Installed *ocio.VersionRecord
	// Latest is the newest release of the selected source.
	Latest *ocio.ReleaseInfo
	// UpdateAvailable reports whether Latest is newer than Installed.
	UpdateAvailable bool
}

// Describe renders an install error as the text shown after
// "Installation failed: ".
func Describe(err error) string {
	var downloadErr *fetcher.Error
	if errors.As(err, &downloadErr) && downloadErr.Cause != nil {
		return "Download failed: " + downloadErr.Cause.Error()
	}

	return err.Error()
}

func (u *Updater) successMessage(ctx context.Context) string {
	host := HostTitle(u.cfg.HostProcess)

	message := fmt.Sprintf("%s installed successfully! Restart %s to apply changes.", productName(u.lastSource), host)

	running, err := u.processRunning(u.cfg.HostProcess)
	if err != nil {
		logger.DebugKV(ctx, "Could not list processes", "error", err)
		return message
	}

	if running {
		message += " " + host + " is running now."
	}

	return message
}

func productName(source ocio.Source) string {
	switch source {
	case ocio.SourceAIOOCIO, ocio.SourcePixelManager:
		return source.Title()
	default:
		return "OCIO config"
	}
}

// HostTitle returns the display name of the host executable, e.g. "Blender".
func HostTitle(process string) string {
	process = strings.TrimSpace(process)
	if process == "" {
		return "the host application"
	}

	first, size := utf8.DecodeRuneInString(process)

	return string(unicode.ToUpper(first)) + process[size:]
}
