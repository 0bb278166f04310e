package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/oshokin/ocio-updater/internal/config"
	"github.com/oshokin/ocio-updater/internal/logger"
	"github.com/oshokin/ocio-updater/internal/service/updater"
	"github.com/oshokin/ocio-updater/internal/ui"
	"github.com/oshokin/ocio-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the level from the configuration file.
	logLevel string

	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd opens the updater panel.
	rootCmd = &cobra.Command{
		Use:   "ocio-updater",
		Short: "Install and update the AIO-OCIO color management config.",
		Long: `Opens a terminal panel that installs or updates an OCIO color management
configuration for Blender from a GitHub repository.

Pick a source, press i to install or update, and watch the progress bar.
The previous installation is kept as a single backup next to the target.
Log lines are written to the user cache directory while the panel is open.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runPanel(ctx)
		},
	}
)

// Execute runs the ocio-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(installCmd, statusCmd, checkCmd, openCmd)
}

// setupLogging sends log lines to stderr so command output stays clean and
// applies the level from the flag or the configuration file.
func setupLogging(_ *cobra.Command, _ []string) error {
	logger.SetLogger(logger.New(nil, os.Stderr))

	level := logLevel
	if level == "" {
		if cfg, err := config.Load(configPath); err == nil {
			level = cfg.LogLevel
		}
	}

	if level == "" {
		return nil
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}

	logger.SetLevel(parsed)

	return nil
}

// newUpdater loads the settings and wires the updater for them.
func newUpdater() (*updater.Updater, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	u, err := updater.New(&updater.Options{Config: cfg})
	if err != nil {
		return nil, nil, err
	}

	return u, cfg, nil
}

func runPanel(ctx context.Context) error {
	u, cfg, err := newUpdater()
	if err != nil {
		return err
	}

	logPath, closeLog, err := logger.OpenFileSink()
	if err != nil {
		return err
	}

	defer func() {
		_ = closeLog()
	}()

	ctx = logger.WithName(ctx, "ocio-updater")
	logger.InfoKV(ctx, "Panel started", "config", configPath, "target", u.Target(), "log", logPath)

	program := tea.NewProgram(ui.New(ctx, u, cfg, configPath), tea.WithContext(ctx))

	if _, err = program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.ErrorKV(ctx, "Panel failed", "error", err)
		return err
	}

	if u.State().Busy() {
		logger.Warn(ctx, "Exited while an install was running")
		return nil
	}

	logger.Info(ctx, "Panel closed")

	return nil
}
