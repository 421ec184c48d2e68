package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/chathub/internal/app"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of chathub",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chathub %s\n", app.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
