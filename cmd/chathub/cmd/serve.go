package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/nfrund/chathub/internal/app"
	"github.com/nfrund/chathub/internal/config"
	"github.com/nfrund/chathub/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Loads configuration from .env and the environment, then serves the chat
API until SIGINT or SIGTERM is received.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.New(cfg.LogFormat, cfg.LogLevel)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return app.New(cfg, clockwork.NewRealClock()).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
