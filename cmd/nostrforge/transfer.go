// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/nostrforge/nostrforge/cmd/nostrforge/cli"
	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/ownership"
	"github.com/nostrforge/nostrforge/relay"
)

func transferCommand() *cli.Command {
	var (
		configPath string
		eventFile  string
	)
	return &cli.Command{
		Name:    "transfer",
		Summary: "validate and publish a pre-signed ownership transfer",
		Usage:   "nostrforge transfer --event <file> [flags]",
		Description: "Reads a signed ownership-transfer event from a JSON file,\n" +
			"checks it against the repository's current ownership chain, and\n" +
			"publishes it to the platform relays plus the new owner's outbox.",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("transfer", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "path to nostrforge.yaml")
			fs.StringVar(&eventFile, "event", "", "file containing the signed transfer event (required)")
			return fs
		},
		Run: func(args []string) error {
			if eventFile == "" {
				return fmt.Errorf("--event is required")
			}
			data, err := os.ReadFile(eventFile)
			if err != nil {
				return err
			}
			var ev event.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("parsing %s: %w", eventFile, err)
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			pool, err := newPool(cfg)
			if err != nil {
				return err
			}
			resolver, err := ownership.NewResolver(ownership.ResolverConfig{Fetcher: pool})
			if err != nil {
				return err
			}
			transfers, err := ownership.NewTransfers(ownership.TransfersConfig{
				Resolver:      resolver,
				Fetcher:       pool,
				Publisher:     pool,
				DefaultRelays: cfg.Relays.Defaults,
				Retry:         relay.RetryConfig{Attempts: cfg.Sync.RetryAttempts},
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			result, err := transfers.Submit(ctx, ev)
			if err != nil {
				return err
			}
			fmt.Printf("transfer %s accepted by %d relay(s)\n", shorten(ev.ID), len(result.Accepted))
			for _, failure := range result.Failed {
				fmt.Printf("  %s: %s\n", failure.Relay, failure.Reason)
			}
			return nil
		},
	}
}
