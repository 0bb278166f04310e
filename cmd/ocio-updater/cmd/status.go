package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Show what is installed in the color management directory.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		u, cfg, err := newUpdater()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		_, _ = fmt.Fprintf(out, "Source:  %s\n", cfg.Source.Title())
		_, _ = fmt.Fprintf(out, "Target:  %s\n", u.Target())
		_, _ = fmt.Fprintf(out, "State:   %s\n", u.InstallState())

		if record := u.Record(cmd.Context()); record != nil {
			_, _ = fmt.Fprintf(out, "Version: %s (%s)\n", record.Tag, record.Source.Title())
			_, _ = fmt.Fprintf(out, "Published: %s\n", record.PublishedDate)
			_, _ = fmt.Fprintf(out, "Installed: %s\n", record.InstalledDate.Local().Format("2006-01-02 15:04:05"))
		} else {
			_, _ = fmt.Fprintln(out, "Version: unknown")
		}

		if _, err = os.Stat(u.BackupPath()); err == nil {
			_, _ = fmt.Fprintf(out, "Backup:  %s\n", u.BackupPath())
		}

		return nil
	},
}
