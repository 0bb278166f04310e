package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/ocio-updater/internal/config"
	"github.com/oshokin/ocio-updater/internal/service/common"
)

var openCmd = &cobra.Command{
	Use:          "open",
	Short:        "Open the repository page of the selected source in the browser.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		repoURL, err := cfg.RepositoryURL()
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Opening", repoURL)

		return common.OpenBrowser(cmd.Context(), repoURL)
	},
}
