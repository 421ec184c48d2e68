package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chathub",
	Short: "Real-time multi-room chat presence and broadcast hub",
	Long: `chathub serves a single broadcast stream of chat events over SSE and
WebSocket, tracks who is active in which room, and evicts silent users.

Available commands:
  serve      Run the HTTP server
  token      Mint a development access token
  version    Print the version

Use "chathub [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
