// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/nostrforge/nostrforge/cmd/nostrforge/cli"
	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/lib/nip19"
	"github.com/nostrforge/nostrforge/ownership"
)

// parseAddress accepts either a bech32 naddr or a plain
// kind:pubkey:identifier address.
func parseAddress(s string) (event.RepoAddress, error) {
	if strings.HasPrefix(s, "naddr1") {
		addr, _, err := nip19.DecodeRepoAddress(s)
		return addr, err
	}
	return event.ParseRepoAddress(s)
}

func ownershipCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "ownership",
		Summary: "resolve a repository's current owner and transfer history",
		Usage:   "nostrforge ownership <naddr|kind:pubkey:identifier> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("ownership", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "path to nostrforge.yaml")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one repository address required")
			}
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
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

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			info, err := resolver.Resolve(ctx, addr.Owner, addr.Identifier)
			if err != nil {
				return err
			}

			npub, err := nip19.EncodePublicKey(info.Owner)
			if err != nil {
				return err
			}
			fmt.Printf("repository:  %s\n", addr)
			fmt.Printf("owner:       %s\n", npub)
			fmt.Printf("transferred: %v\n", info.Transferred)
			if len(info.History) > 0 {
				fmt.Println("history:")
				for _, record := range info.History {
					fmt.Printf("  %s  %s -> %s  (%s)\n",
						time.Unix(record.Timestamp, 0).UTC().Format(time.RFC3339),
						shorten(record.From), shorten(record.To), shorten(record.EventID))
				}
			}
			return nil
		},
	}
}

func shorten(hex string) string {
	if len(hex) <= 16 {
		return hex
	}
	return hex[:16] + "…"
}
