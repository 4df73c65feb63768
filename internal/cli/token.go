package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docingest/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token [subject]",
	Short: "Issue a bearer token for the admin API",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

var (
	tokenRole string
	tokenTTL  time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleViewer, "Role claim (viewer or operator)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if jwtSecret == "" {
		return errors.New("AUTH_JWT_SECRET is not set")
	}
	if tokenRole != auth.RoleViewer && tokenRole != auth.RoleOperator {
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	now := time.Now()
	token, err := auth.Sign(jwtSecret, args[0], tokenRole, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	})
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
