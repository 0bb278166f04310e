package installer

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	errZipSlip      = errors.New("archive entry escapes the destination")
	errEmptyArchive = errors.New("no files found in downloaded archive")
	errNoTopFolder  = errors.New("archive has no top-level folder")
)

// Extract unpacks the zip at archivePath into destDir. Every entry must stay
// inside destDir. Symbolic links become regular files holding the link target.
func Extract(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	if err = os.MkdirAll(destDir, dirPermissions); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}

	for _, file := range reader.File {
		if err = extractFile(file, destDir); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(file *zip.File, destDir string) error {
	target, err := sanitizePath(destDir, file.Name)
	if err != nil {
		return err
	}

	mode := file.Mode()

	if file.FileInfo().IsDir() {
		if err = os.MkdirAll(target, dirPermissions); err != nil {
			return fmt.Errorf("create %s: %w", file.Name, err)
		}

		return nil
	}

	if err = os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return fmt.Errorf("create parent of %s: %w", file.Name, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}

	defer func() {
		_ = src.Close()
	}()

	// An existing link at target is replaced, not followed.
	if err = os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", file.Name, err)
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions(mode))
	if err != nil {
		return fmt.Errorf("create %s: %w", file.Name, err)
	}

	//nolint:gosec // Archives come from the configured repository; size is bounded by the download.
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}

	if err = dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", file.Name, err)
	}

	if modified := file.Modified; !modified.IsZero() {
		_ = os.Chtimes(target, modified, modified)
	}

	return nil
}

// sanitizePath joins name onto destDir and rejects results outside destDir.
func sanitizePath(destDir, name string) (string, error) {
	cleanDest := filepath.Clean(destDir)
	target := filepath.Join(cleanDest, filepath.FromSlash(name))

	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("%q: %w", name, errZipSlip)
	}

	return target, nil
}

// TopLevelFolder returns the folder an archive was wrapped in.
// Releases from this class of source always wrap their contents in exactly
// one folder; when there are several entries the first in lexical order wins.
func TopLevelFolder(extractDir string) (string, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", fmt.Errorf("read extraction directory: %w", err)
	}

	if len(entries) == 0 {
		return "", errEmptyArchive
	}

	first := entries[0]
	if !first.IsDir() {
		return "", fmt.Errorf("%s: %w", first.Name(), errNoTopFolder)
	}

	return filepath.Join(extractDir, first.Name()), nil
}

// filePermissions keeps the archived permission bits but always lets the
// owner read and write the extracted copy.
func filePermissions(mode os.FileMode) os.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		return defaultFilePermissions
	}

	return perm | 0o600
}
