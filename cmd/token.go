package main

import (
	"fmt"
	"time"

	"github.com/jekabolt/grbpwr-crm/config"
	"github.com/jekabolt/grbpwr-crm/internal/apisrv/auth"
	"github.com/jekabolt/grbpwr-crm/internal/auth/jwt"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token signed with the configured secret",
		RunE:  issueToken,
	}
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime, defaults to auth.jwt_ttl")
}

func issueToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("cannot load a config %v", err.Error())
	}
	// the master password is only needed for interactive logins
	cfg.Auth.MasterPassword = ""
	s, err := auth.New(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("can't create auth server: %w", err)
	}
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = s.TTL()
	}

	token, err := jwt.NewTokenWithSubject(s.JwtAuth, ttl, tokenSubject)
	if err != nil {
		return fmt.Errorf("can't issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
