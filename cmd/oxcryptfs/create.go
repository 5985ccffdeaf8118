package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/oxcryptfs/oxcryptfs/vault"
)

var (
	createPasswordFile        string
	createShorteningThreshold int
)

var createCmd = &cobra.Command{
	Use:   "create <vault-dir>",
	Short: "Initialize a new encrypted vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		passphrase, err := readPassphrase(createPasswordFile, "New vault passphrase: ")
		if err != nil {
			return err
		}

		threshold := createShorteningThreshold
		if threshold == 0 {
			threshold = cfg.ShorteningThreshold
		}
		v, err := vault.Create(root, passphrase, vault.CreateOptions{
			ShorteningThreshold: threshold,
		})
		if err != nil {
			return fmt.Errorf("creating vault: %w", err)
		}
		defer v.Close()

		slog.Info("vault created", "path", root, "format", vault.SupportedFormat)
		fmt.Printf("vault created at %s\n", root)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createPasswordFile, "password-file", "", "read the passphrase from this file instead of prompting")
	createCmd.Flags().IntVar(&createShorteningThreshold, "shortening-threshold", 0, "override the default filename shortening threshold")
}
