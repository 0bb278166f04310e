package installer

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/ocio-updater/internal/config"
	"github.com/oshokin/ocio-updater/internal/domain/ocio"
	"github.com/oshokin/ocio-updater/internal/logger"
	"github.com/oshokin/ocio-updater/internal/repository/record"
	"github.com/oshokin/ocio-updater/internal/service/progress"
)

const (
	// SourceConfigName is the config file shipped by AIO-OCIO.
	SourceConfigName = "config_CG_Lin709.ocio"

	// HostConfigName is the file name the host's color management loads.
	HostConfigName = "config.ocio"

	// ExtractDirName is the scratch subdirectory receiving the extracted archive.
	ExtractDirName = "extracted"

	dirPermissions         os.FileMode = config.DefaultDirPermissions
	defaultFilePermissions os.FileMode = 0o644
)

var (
	// ErrArchive is returned for corrupt or empty archives.
	ErrArchive = errors.New("archive error")

	// ErrFilesystem is returned when backing up or copying the tree fails.
	ErrFilesystem = errors.New("filesystem error")
)

// Installer places extracted releases into the InstallTarget.
type Installer struct {
	target  string
	backup  string
	records record.Repository
}

// New creates an installer for installTarget that persists version records
// through records. A nil records skips persistence.
func New(installTarget string, records record.Repository) *Installer {
	installTarget = filepath.Clean(installTarget)

	return &Installer{
		target:  installTarget,
		backup:  config.BackupPath(installTarget),
		records: records,
	}
}

// Target returns the InstallTarget path.
func (i *Installer) Target() string {
	return i.target
}

// BackupPath returns the path of the retained backup generation.
func (i *Installer) BackupPath() string {
	return i.backup
}

// Install extracts archivePath inside scratchDir and installs the release.
// Any failure aborts the remaining steps. The caller owns scratchDir and
// must remove it afterwards.
func (i *Installer) Install(
	ctx context.Context,
	archivePath string,
	scratchDir string,
	release *ocio.ReleaseInfo,
	source ocio.Source,
	report progress.Func,
) error {
	if report == nil {
		report = func(float64, string) {}
	}

	ctx = logger.WithKV(ctx, "target", i.target)

	report(0.7, "Extracting files...")

	extractDir := filepath.Join(scratchDir, ExtractDirName)
	if err := Extract(archivePath, extractDir); err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}

	sourceDir, err := TopLevelFolder(extractDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}

	logger.DebugKV(ctx, "Located top-level folder", "folder", filepath.Base(sourceDir))

	if err = os.MkdirAll(filepath.Dir(i.target), dirPermissions); err != nil {
		return fmt.Errorf("%w: create parent directory: %w", ErrFilesystem, err)
	}

	report(0.8, "Backing up existing config...")

	if err = i.backupExisting(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrFilesystem, err)
	}

	report(0.9, "Installing new config...")

	if err = CopyTree(sourceDir, i.target); err != nil {
		return fmt.Errorf("%w: copy files: %w", ErrFilesystem, err)
	}

	normalized, err := NormalizeConfig(i.target)
	if err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrFilesystem, HostConfigName, err)
	}

	if normalized {
		logger.InfoKV(ctx, "Published host config", "from", SourceConfigName, "to", HostConfigName)
	}

	if i.records != nil && release != nil {
		if err = i.records.Write(ctx, release, source); err != nil {
			logger.WarnKV(ctx, "Could not persist version record", "error", err)
		}
	}

	report(1, "Installation complete!")

	return nil
}

// backupExisting moves the InstallTarget to the backup path, replacing the
// previous backup. Nothing happens when there is no installation yet.
func (i *Installer) backupExisting(ctx context.Context) error {
	if _, err := os.Lstat(i.target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("inspect install directory: %w", err)
	}

	if err := os.RemoveAll(i.backup); err != nil {
		return fmt.Errorf("remove previous backup: %w", err)
	}

	if err := os.Rename(i.target, i.backup); err != nil {
		return fmt.Errorf("move install directory to backup: %w", err)
	}

	logger.InfoKV(ctx, "Backed up existing installation", "backup", i.backup)

	return nil
}

// CopyTree copies the contents of src into dst recursively, keeping
// permission bits and modification times. Symbolic links are recreated.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, linkErr := os.Readlink(path)
			if linkErr != nil {
				return linkErr
			}

			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info)
		}
	})
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// NormalizeConfig publishes SourceConfigName as HostConfigName when the
// former exists directly under dir, overwriting any previous copy. The
// replacement is atomic and verified against the source checksum. It
// reports whether a copy was made; without a source nothing is touched.
func NormalizeConfig(dir string) (bool, error) {
	sourcePath := filepath.Join(dir, SourceConfigName)

	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	data, err := os.ReadFile(filepath.Clean(sourcePath))
	if err != nil {
		return false, err
	}

	hostPath := filepath.Join(dir, HostConfigName)

	// The atomic apply renames the old file away, so a target must exist.
	if _, err = os.Stat(hostPath); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.Create(filepath.Clean(hostPath))
		if createErr != nil {
			return false, createErr
		}

		if err = placeholder.Close(); err != nil {
			return false, err
		}
	}

	checksum := sha512.Sum512(data)

	options := goupdate.Options{
		TargetPath: hostPath,
		TargetMode: info.Mode().Perm(),
		Checksum:   checksum[:],
		Hash:       crypto.SHA512,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return false, err
	}

	if err = os.Chtimes(hostPath, info.ModTime(), info.ModTime()); err != nil {
		return false, err
	}

	return true, nil
}
