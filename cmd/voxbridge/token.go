package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxbridge/voxbridge/adapters/auth"
	"github.com/voxbridge/voxbridge/adapters/sqlite"
	"github.com/voxbridge/voxbridge/config"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id-or-email>",
	Short: "Mint a bearer token for a user",
	Long: `Mint a signed bearer token for an existing user account.

Useful for testing and for provisioning devices that cannot run the
login flow. Tokens carry the account's role, so tokens minted for
admin accounts grant access to the admin endpoints.

Examples:
  voxbridge token sam@example.com
  voxbridge token sam@example.com --ttl=168h`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default from config)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	user, err := getUserByIDOrEmail(store, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	ttl := cfg.Auth.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}

	role := "user"
	if user.IsAdmin {
		role = "admin"
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, ttl)
	signed, expiresAt, err := tokens.Issue(user.ID, user.Email, role)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Printf("%s Token for %s (%s, role %s)\n", checkMark, user.Email, user.ID, role)
	fmt.Printf("   Expires: %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println(signed)
	return nil
}
