//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var (
	errUnsupportedOS = errors.New("os not supported")
	errNotWebURL     = errors.New("only http and https pages can be opened")
)

// BrowserCommand returns the command that opens rawURL in the default browser.
func BrowserCommand(ctx context.Context, rawURL string) (*exec.Cmd, error) {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%s: %w", rawURL, errNotWebURL)
	}

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.CommandContext(ctx, "xdg-open", rawURL), nil
	case "darwin":
		return exec.CommandContext(ctx, "open", rawURL), nil
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", rawURL), nil
	default:
		return nil, fmt.Errorf("%s OS is not supported: %w", runtime.GOOS, errUnsupportedOS)
	}
}

// OpenBrowser opens rawURL in the default browser without waiting for it.
func OpenBrowser(ctx context.Context, rawURL string) error {
	cmd, err := BrowserCommand(ctx, rawURL)
	if err != nil {
		return err
	}

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	// Reap the launcher in the background.
	go func() {
		_ = cmd.Wait()
	}()

	return nil
}
