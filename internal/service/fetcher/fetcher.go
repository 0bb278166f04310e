package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/ocio-updater/internal/logger"
	"github.com/oshokin/ocio-updater/internal/service/common"
	"github.com/oshokin/ocio-updater/internal/service/progress"
)

const (
	// ChunkSize is the size of each read from the response body.
	ChunkSize = 8 << 10

	// UnknownFraction is reported when the server declares no content length.
	UnknownFraction = 0.5

	// downloadFilePermissions is applied to the downloaded archive.
	downloadFilePermissions = 0o600
)

var (
	// ErrDownload matches every *Error returned by Download.
	ErrDownload = errors.New("download failed")

	// ErrStalled is the cause when no data arrives within the client timeout.
	ErrStalled = errors.New("no data received")
)

// Error is returned on network failures, timeouts and bad statuses.
// Cause holds the underlying error whose text is shown to the user verbatim.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return ErrDownload.Error() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrDownload) hold for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrDownload //nolint:errorlint // Sentinel identity is intended.
}

// Fetcher downloads archives through a shared client.
type Fetcher struct {
	client *common.Client
}

// New creates a fetcher that sends requests through client.
func New(client *common.Client) *Fetcher {
	return &Fetcher{
		client: client,
	}
}

// Download streams rawURL into dest in ChunkSize pieces and reports progress
// after every chunk. With a declared length the fraction is bytes read over
// that length, otherwise it stays at UnknownFraction. A partially written
// dest is left in place; the caller owns its directory.
//
// The client timeout bounds the wait for each chunk, not the whole transfer.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string, report progress.Func) (int64, error) {
	if report == nil {
		report = func(float64, string) {}
	}

	idle := f.client.Timeout()
	stalled := fmt.Errorf("%w for %s", ErrStalled, idle)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	watchdog := time.AfterFunc(idle, func() {
		cancel(stalled)
	})
	defer watchdog.Stop()

	response, err := f.client.Stream(ctx, rawURL, nil)
	if err != nil {
		return 0, &Error{Cause: stallCause(ctx, err)}
	}

	defer func() {
		_ = response.Body.Close()
	}()

	output, err := os.OpenFile(filepath.Clean(dest), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, downloadFilePermissions)
	if err != nil {
		return 0, &Error{Cause: fmt.Errorf("create %s: %w", dest, err)}
	}

	total := response.ContentLength

	logger.DebugKV(ctx, "Downloading archive", "url", rawURL, "declared_length", total)

	downloaded, err := copyWithProgress(output, response.Body, total, func(value float64, status string) {
		watchdog.Reset(idle)
		report(value, status)
	})
	if closeErr := output.Close(); err == nil && closeErr != nil {
		err = closeErr
	}

	if err != nil {
		return downloaded, &Error{Cause: stallCause(ctx, err)}
	}

	logger.InfoKV(ctx, "Archive downloaded", "path", dest, "size", humanize.Bytes(uint64(downloaded)))

	return downloaded, nil
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, report progress.Func) (int64, error) {
	var (
		buffer     = make([]byte, ChunkSize)
		downloaded int64
	)

	for {
		n, readErr := src.Read(buffer)
		if n > 0 {
			if _, err := dst.Write(buffer[:n]); err != nil {
				return downloaded, err
			}

			downloaded += int64(n)
			report(fraction(downloaded, total), "Downloading... "+humanize.Bytes(uint64(downloaded)))
		}

		if errors.Is(readErr, io.EOF) {
			return downloaded, nil
		}

		if readErr != nil {
			return downloaded, readErr
		}
	}
}

// stallCause replaces the cancellation error caused by the watchdog.
func stallCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrStalled) {
		return cause
	}

	return err
}

func fraction(downloaded, total int64) float64 {
	if total <= 0 {
		return UnknownFraction
	}

	return min(float64(downloaded)/float64(total), 1)
}
