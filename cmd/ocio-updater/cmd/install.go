package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/ocio-updater/internal/config"
	"github.com/oshokin/ocio-updater/internal/domain/ocio"
	"github.com/oshokin/ocio-updater/internal/service/progress"
	"github.com/oshokin/ocio-updater/internal/service/updater"
)

var (
	// installSource overrides the configured source for one install.
	installSource string
	// installURL overrides the custom repository URL for one install.
	installURL string
	// installBranch installs the head of a branch instead of the latest release.
	installBranch string

	installCmd = &cobra.Command{
		Use:   "install",
		Short: "Install or update without the panel.",
		Long: `Resolves the latest release of the selected source, downloads it and
installs it into the color management directory, keeping one backup.

Flags override the configuration file for this run only.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if err = applyInstallOverrides(cfg); err != nil {
				return err
			}

			u, err := updater.New(&updater.Options{Config: cfg})
			if err != nil {
				return err
			}

			host := newConsoleHost(cmd.OutOrStdout(), u.State())

			if err = u.Start(ctx); err != nil {
				return err
			}

			return u.Wait(ctx, host)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	installCmd.Flags().StringVarP(&installSource, "source", "s", "", "source: aio-ocio, pixel-manager or custom")
	installCmd.Flags().StringVarP(&installURL, "url", "u", "", "repository URL, implies --source custom")
	installCmd.Flags().StringVarP(&installBranch, "branch", "b", "", "install the head of this branch")
}

func applyInstallOverrides(cfg *config.Config) error {
	if installSource != "" {
		source, err := ocio.ParseSource(installSource)
		if err != nil {
			return err
		}

		cfg.Source = source
	}

	if installURL != "" {
		cfg.Source = ocio.SourceCustom
		cfg.CustomURL = installURL
	}

	if installBranch != "" {
		cfg.Branch = installBranch
	}

	return config.Validate(cfg)
}

// consoleHost prints progress lines and the final notification.
type consoleHost struct {
	out   io.Writer
	state *progress.State
	last  string
}

func newConsoleHost(out io.Writer, state *progress.State) *consoleHost {
	return &consoleHost{
		out:   out,
		state: state,
	}
}

// RedrawStatusRegion prints the progress line when it changed.
func (h *consoleHost) RedrawStatusRegion() {
	snapshot := h.state.Snapshot()
	if !snapshot.Busy {
		return
	}

	line := progress.RenderBar(snapshot.Fraction) + " " + snapshot.Status
	if line == h.last {
		return
	}

	h.last = line

	_, _ = fmt.Fprintln(h.out, line)
}

// ReportStatus prints the notification with its level.
func (h *consoleHost) ReportStatus(level updater.Level, message string) {
	out := h.out
	if level == updater.LevelError {
		out = os.Stderr
	}

	_, _ = fmt.Fprintf(out, "%s: %s\n", strings.ToUpper(level.String()), message)
}
