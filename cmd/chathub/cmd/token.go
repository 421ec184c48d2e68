package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/nfrund/chathub/internal/auth"
	"github.com/nfrund/chathub/internal/domain"
)

var (
	tokenUserID   int64
	tokenFullName string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Mint a development access token",
	Long: `Signs an HS256 token for username with TOKEN_SECRET. Production tokens are
issued by the user service; this command is for local testing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		secret := os.Getenv("TOKEN_SECRET")
		if secret == "" {
			return errors.New("TOKEN_SECRET is required")
		}

		authn, err := auth.NewJWTAuthenticator(secret, clockwork.NewRealClock())
		if err != nil {
			return err
		}
		token, err := authn.Issue(domain.Identity{
			Name:     args[0],
			UserID:   tokenUserID,
			FullName: tokenFullName,
		}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 1, "user_id claim")
	tokenCmd.Flags().StringVar(&tokenFullName, "full-name", "", "full_name claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
