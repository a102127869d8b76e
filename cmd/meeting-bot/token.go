package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/qieqieplus/meeting-bot/pkg/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a Meeting SDK JWT",
	Long: `Print a JWT signed with the configured client secret, valid for 24 hours.
The expiry is written to stderr so stdout holds only the token.

With --verify the given token is checked against the client secret instead
and its claims are printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if raw, _ := cmd.Flags().GetString("verify"); raw != "" {
			claims, err := auth.ParseJWT(raw, cfg.SDK.ClientSecret, time.Now())
			if err != nil {
				return fmt.Errorf("invalid token: %w", err)
			}
			out, err := json.MarshalIndent(claims, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		tok, err := auth.GenerateJWT(cfg.SDK.ClientID, cfg.SDK.ClientSecret, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok.Raw)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("verify", "", "token to verify instead of generating one")
}
