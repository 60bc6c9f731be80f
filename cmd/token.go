package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/workmate/internal/auth"
)

var (
	tokenUser string
	tokenName string
	tokenTTL  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens for server clients",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a bearer token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser == "" {
			return fmt.Errorf("--user is required")
		}
		ttl, err := parseTTL(tokenTTL)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		plaintext, tok, err := auth.NewTokenStore(database).Create(context.Background(), tokenUser, tokenName, ttl)
		if err != nil {
			return err
		}
		fmt.Println(plaintext)
		fmt.Fprintf(os.Stderr, "token %s for user %s", tok.ID, tok.UserID)
		if tok.ExpiresAt != nil {
			fmt.Fprintf(os.Stderr, " expires %s", tok.ExpiresAt.Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(os.Stderr, "\nStore it now; it cannot be shown again.")
		return nil
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke [token-id]",
	Short: "Revoke a bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := auth.NewTokenStore(database).Revoke(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("Token revoked.")
		return nil
	},
}

func init() {
	tokenCreateCmd.Flags().StringVar(&tokenUser, "user", "", "user id the token authenticates as")
	tokenCreateCmd.Flags().StringVar(&tokenName, "name", "cli", "label for the token")
	tokenCreateCmd.Flags().StringVar(&tokenTTL, "ttl", "", "lifetime such as 720h or 30d (default never expires)")
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
	rootCmd.AddCommand(tokenCmd)
}
