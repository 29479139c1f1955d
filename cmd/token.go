package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/er587/wedding-gallery-application/internal/web/middleware"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a signed identity token",
	Long: `Mint an identity token for a user, signed with WEB_SESSION_SECRET.
Send it as "Authorization: Bearer <token>" or in the gallery_session cookie.

Examples:
  # Guest token valid for one day
  gallery-faces token guest-42

  # Moderator token valid for one week
  gallery-faces token bride --moderator --ttl 168h`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Bool("moderator", false, "Grant moderator rights")
	tokenCmd.Flags().Duration("ttl", middleware.DefaultTokenDuration, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := os.Getenv("WEB_SESSION_SECRET")
	if secret == "" {
		return errors.New("WEB_SESSION_SECRET environment variable is required")
	}

	sm := middleware.NewSessionManager(secret)
	token, err := sm.IssueToken(args[0], mustGetBool(cmd, "moderator"), mustGetDuration(cmd, "ttl"))
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	fmt.Println(token)
	return nil
}
