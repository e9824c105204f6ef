package main

import (
	"fmt"
	"time"

	"github.com/jekabolt/grbpwr-analytics/config"
	"github.com/jekabolt/grbpwr-analytics/internal/auth/jwt"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the summary endpoint",
		RunE:  runToken,
	}
)

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "", "operator name (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime, defaults to auth.jwt_ttl")
	tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("cannot load a config %v", err.Error())
	}

	jwtAuth, err := jwt.New(&cfg.Auth)
	if err != nil {
		return err
	}

	ttl := tokenTTL
	if ttl == 0 {
		ttl = cfg.Auth.JWTTTL
	}

	tok, err := jwt.NewTokenWithSubject(jwtAuth, ttl, tokenSubject)
	if err != nil {
		return fmt.Errorf("can't mint token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
