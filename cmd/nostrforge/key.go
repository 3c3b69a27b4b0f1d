// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/nostrforge/nostrforge/cmd/nostrforge/cli"
	"github.com/nostrforge/nostrforge/lib/event"
	"github.com/nostrforge/nostrforge/lib/nip19"
	"github.com/nostrforge/nostrforge/lib/sealed"
	"github.com/nostrforge/nostrforge/lib/secret"
)

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:    "key",
		Summary: "manage the sealed platform signing key",
		Subcommands: []*cli.Command{
			keySealCommand(),
			keyShowCommand(),
		},
	}
}

func keySealCommand() *cli.Command {
	var (
		configPath string
		generate   bool
	)
	return &cli.Command{
		Name:    "seal",
		Summary: "seal a signing key to the configured key file",
		Usage:   "nostrforge key seal [--generate] [flags]",
		Description: "Seals the platform signing key with the passphrase from\n" +
			"NOSTRFORGE_KEY_PASSPHRASE. With --generate, a fresh key is created;\n" +
			"otherwise the key is read from stdin as hex or nsec.",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "path to nostrforge.yaml")
			fs.BoolVar(&generate, "generate", false, "generate a new key instead of reading stdin")
			return fs
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			passphrase := os.Getenv("NOSTRFORGE_KEY_PASSPHRASE")
			if passphrase == "" {
				return fmt.Errorf("NOSTRFORGE_KEY_PASSPHRASE environment variable not set")
			}

			var signer *event.LocalSigner
			if generate {
				signer, err = event.GenerateSigner()
				if err != nil {
					return err
				}
			} else {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading key from stdin: %w", err)
				}
				keyHex := strings.TrimSpace(line)
				if strings.HasPrefix(keyHex, "nsec1") {
					keyHex, err = nip19.DecodeSecretKey(keyHex)
					if err != nil {
						return err
					}
				}
				signer, err = event.NewLocalSigner(keyHex)
				if err != nil {
					return err
				}
			}

			key, err := secret.NewFromBytes([]byte(signer.SecretKey()))
			if err != nil {
				return err
			}
			defer key.Close()
			if err := sealed.SealKey(cfg.Paths.KeyFile, key, passphrase); err != nil {
				return err
			}

			npub, err := nip19.EncodePublicKey(signer.PublicKey())
			if err != nil {
				return err
			}
			fmt.Printf("sealed signing key to %s\n", cfg.Paths.KeyFile)
			fmt.Printf("public key: %s\n", npub)
			return nil
		},
	}
}

func keyShowCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "show",
		Summary: "print the public key of the sealed signing key",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "path to nostrforge.yaml")
			return fs
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			signer, err := unsealSigner(cfg)
			if err != nil {
				return err
			}
			npub, err := nip19.EncodePublicKey(signer.PublicKey())
			if err != nil {
				return err
			}
			fmt.Println(npub)
			return nil
		},
	}
}
