package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a newer release is available.",
	Long: `Resolves the latest release of the selected source and compares its tag
with the installed one. Semantic version tags are ordered; any other tags
count as an update when they differ.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		u, _, err := newUpdater()
		if err != nil {
			return err
		}

		result, err := u.Check(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		installed := "none"
		if result.Installed != nil {
			installed = result.Installed.Tag
		}

		_, _ = fmt.Fprintf(out, "Installed: %s\n", installed)
		_, _ = fmt.Fprintf(out, "Latest:    %s\n", result.Latest.Tag)

		if result.UpdateAvailable {
			_, _ = fmt.Fprintln(out, "An update is available, run `ocio-updater install`.")
		} else {
			_, _ = fmt.Fprintln(out, "Already up to date.")
		}

		return nil
	},
}
