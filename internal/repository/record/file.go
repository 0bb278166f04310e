package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oshokin/ocio-updater/internal/config"
	"github.com/oshokin/ocio-updater/internal/domain/ocio"
	"github.com/oshokin/ocio-updater/internal/logger"
)

// Filename is the hidden record file inside the InstallTarget.
const Filename = ".aio-ocio-version.json"

// Repository defines persistence operations for the version record.
type Repository interface {
	Read(ctx context.Context) *ocio.VersionRecord
	Write(ctx context.Context, release *ocio.ReleaseInfo, source ocio.Source) error
}

// FileRepository persists the version record to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON record file.
	path string
	// now returns the install timestamp; replaced in tests.
	now func() time.Time
	// mu serializes access to the record file.
	mu sync.Mutex
}

// errReleaseIsNotSet is returned when Write is called without a release.
var errReleaseIsNotSet = errors.New("release is not set")

// NewFileRepository creates a repository for the record inside installTarget.
func NewFileRepository(installTarget string) *FileRepository {
	return &FileRepository{
		path: filepath.Join(filepath.Clean(installTarget), Filename),
		now:  time.Now,
	}
}

// Path returns the location of the record file.
func (r *FileRepository) Path() string {
	return r.path
}

// Read returns the stored record, or nil when it is missing or malformed.
func (r *FileRepository) Read(ctx context.Context) *ocio.VersionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.DebugKV(ctx, "Version record is unreadable", "path", r.path, "error", err)
		}

		return nil
	}

	var rec ocio.VersionRecord
	if err = json.Unmarshal(contents, &rec); err != nil {
		logger.DebugKV(ctx, "Version record is malformed", "path", r.path, "error", err)
		return nil
	}

	if rec.Tag == "" {
		return nil
	}

	return &rec
}

// Write replaces the record with one describing release.
// The file is written next to the target and renamed into place, so readers
// never observe a partially written record.
func (r *FileRepository) Write(_ context.Context, release *ocio.ReleaseInfo, source ocio.Source) error {
	if release == nil {
		return errReleaseIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := ocio.NewVersionRecord(release, source, r.now())

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode version record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), Filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create version record: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("write version record: %w", err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close version record: %w", err)
	}

	if err = os.Chmod(tmpPath, config.DefaultFilePermissions); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod version record: %w", err)
	}

	if err = os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace version record: %w", err)
	}

	return nil
}
