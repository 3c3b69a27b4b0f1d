// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

// nostrforge is the operator CLI for the platform: resolving
// repository ownership, submitting ownership transfers, provisioning
// forks, and managing the sealed signing key.
package main

import (
	"fmt"
	"os"

	"github.com/nostrforge/nostrforge/cmd/nostrforge/cli"
	"github.com/nostrforge/nostrforge/lib/config"
	"github.com/nostrforge/nostrforge/lib/version"
	"github.com/nostrforge/nostrforge/relay"
)

func main() {
	root := &cli.Command{
		Name:    "nostrforge",
		Summary: "decentralized git hosting over signed relay events",
		Subcommands: []*cli.Command{
			ownershipCommand(),
			transferCommand(),
			forkCommand(),
			keyCommand(),
			versionCommand(),
		},
	}
	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func([]string) error {
			fmt.Println("nostrforge " + version.Full())
			return nil
		},
	}
}

// loadConfig loads the config file named by --config, falling back to
// the NOSTRFORGE_CONFIG environment variable.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newPool builds the relay pool from the configuration.
func newPool(cfg *config.Config) (*relay.Pool, error) {
	return relay.NewPool(relay.PoolConfig{
		Relays:  cfg.Relays.Defaults,
		Timeout: cfg.Relays.Timeout(),
	})
}
