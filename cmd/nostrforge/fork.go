// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/nostrforge/nostrforge/cmd/nostrforge/cli"
	"github.com/nostrforge/nostrforge/forge"
	"github.com/nostrforge/nostrforge/lib/config"
	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/lib/nip19"
	"github.com/nostrforge/nostrforge/lib/sealed"
	"github.com/nostrforge/nostrforge/ownership"
	"github.com/nostrforge/nostrforge/relay"
)

// operatorProver grants provisioning to every caller. The CLI runs on
// the platform host under the operator's hands; access gating happens
// in the daemon for requests arriving over the network.
type operatorProver struct{}

func (operatorProver) HasUnlimited(context.Context, string) (bool, error) { return true, nil }

// unsealSigner loads the sealed signing key and builds a signer from
// it. The passphrase comes from NOSTRFORGE_KEY_PASSPHRASE.
func unsealSigner(cfg *config.Config) (*event.LocalSigner, error) {
	passphrase := os.Getenv("NOSTRFORGE_KEY_PASSPHRASE")
	if passphrase == "" {
		return nil, fmt.Errorf("NOSTRFORGE_KEY_PASSPHRASE environment variable not set")
	}
	key, err := sealed.UnsealKey(cfg.Paths.KeyFile, passphrase)
	if err != nil {
		return nil, err
	}
	defer key.Close()
	return event.NewLocalSigner(key.String())
}

func forkCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "fork",
		Summary: "fork a repository onto this platform",
		Usage:   "nostrforge fork <naddr|kind:pubkey:identifier> <name> [flags]",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("fork", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "path to nostrforge.yaml")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("source address and fork name required")
			}
			source, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			signer, err := unsealSigner(cfg)
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
			access, err := ownership.NewAccess(ownership.AccessConfig{Resolver: resolver, Fetcher: pool})
			if err != nil {
				return err
			}
			workflow, err := forge.NewWorkflow(forge.WorkflowConfig{
				Prover:        operatorProver{},
				Access:        access,
				Publisher:     pool,
				Limits:        forge.NewLimits(cfg.Paths.RepoRoot, cfg.Limits.MaxReposPerOwner),
				RepoRoot:      cfg.Paths.RepoRoot,
				CloneURLBase:  cfg.Paths.CloneURLBase,
				PublishRelays: cfg.Relays.Defaults,
				Retry:         relay.RetryConfig{Attempts: cfg.Sync.RetryAttempts},
				Papertrail:    forge.NewPapertrail(cfg.Paths.RepoRoot, forge.CompressionZstd),
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			result, err := workflow.Fork(ctx, forge.ForkRequest{
				Source:   source,
				ForkName: args[1],
				Signer:   signer,
			})
			if err != nil {
				return err
			}
			if result.AlreadyExists {
				fmt.Printf("fork %s already provisioned\n", result.Address)
				return nil
			}
			naddr, err := nip19.EncodeRepoAddress(result.Address, cfg.Relays.Defaults)
			if err != nil {
				return err
			}
			fmt.Printf("forked %s\n", naddr)
			fmt.Printf("  announcement %s (%d relays)\n", shorten(result.AnnouncementID), result.AnnouncementAccepted)
			fmt.Printf("  anchor       %s (%d relays)\n", shorten(result.AnchorID), result.AnchorAccepted)
			return nil
		},
	}
}
