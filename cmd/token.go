package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/auth/jwt"
)

var (
	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the report and sync endpoints",
		RunE:  runToken,
	}

	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "operator name recorded with report runs")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default jwt.ttl)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	ja, err := jwt.New(cfg.JWT)
	if err != nil {
		return err
	}
	ttl := tokenTTL
	if ttl == 0 {
		ttl = cfg.JWT.TTL
	}
	tok, err := jwt.NewToken(ja, ttl, tokenSubject)
	if err != nil {
		return fmt.Errorf("can't issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
