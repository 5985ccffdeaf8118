package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oxcryptfs/oxcryptfs/vault"
)

var infoCmd = &cobra.Command{
	Use:   "info <vault-dir>",
	Short: "Report a vault's format, cipher combo, and shortening threshold without unlocking it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		data, err := os.ReadFile(filepath.Join(root, "vault.cryptomator"))
		if err != nil {
			return fmt.Errorf("reading vault.cryptomator: %w", err)
		}

		cfg, err := vault.UnmarshalUnverified(data)
		if err != nil {
			return fmt.Errorf("parsing vault.cryptomator: %w", err)
		}

		fmt.Printf("path:                 %s\n", root)
		fmt.Printf("format:               %d\n", cfg.Format)
		fmt.Printf("cipher combo:         %s\n", cfg.CipherCombo)
		fmt.Printf("shortening threshold: %d\n", cfg.ShorteningThreshold)
		if cfg.Format != vault.SupportedFormat {
			fmt.Printf("warning: format %d is not supported by this build (supports %d)\n", cfg.Format, vault.SupportedFormat)
		}
		return nil
	},
}
