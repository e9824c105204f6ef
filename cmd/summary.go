package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/jekabolt/grbpwr-analytics/app"
	"github.com/jekabolt/grbpwr-analytics/config"
	"github.com/jekabolt/grbpwr-analytics/log"
	"github.com/spf13/cobra"
)

var (
	summaryTimeout time.Duration

	summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Fetch one analytics summary and print it as JSON",
		RunE:  runSummary,
	}
)

func init() {
	summaryCmd.Flags().DurationVar(&summaryTimeout, "timeout", time.Minute, "overall deadline for the summary")
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("cannot load a config %v", err.Error())
	}
	// logs go to stderr so stdout carries only the summary
	slog.SetDefault(log.New(cfg.Logger, os.Stderr))

	g, err := app.NewGateway(cfg)
	if err != nil {
		return err
	}

	propertyID, err := g.Loader.PropertyID()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	defer cancel()

	sum, err := g.Summary.BuildSummary(ctx, propertyID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
