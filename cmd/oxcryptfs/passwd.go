package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/oxcryptfs/oxcryptfs/vault"
)

var (
	passwdOldPasswordFile string
	passwdNewPasswordFile string
)

var passwdCmd = &cobra.Command{
	Use:   "passwd <vault-dir>",
	Short: "Rotate a vault's passphrase without touching any encrypted entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]

		oldPassphrase, err := readPassphrase(passwdOldPasswordFile, "Current passphrase: ")
		if err != nil {
			return err
		}
		v, err := vault.Open(root, oldPassphrase)
		if err != nil {
			return fmt.Errorf("unlocking vault: %w", err)
		}
		defer v.Close()

		newPassphrase, err := readPassphrase(passwdNewPasswordFile, "New passphrase: ")
		if err != nil {
			return err
		}
		if err := v.ChangePassphrase(newPassphrase, 0); err != nil {
			return fmt.Errorf("rewrapping master key: %w", err)
		}

		slog.Info("vault passphrase rotated", "path", root)
		fmt.Printf("passphrase changed for %s\n", root)
		return nil
	},
}

func init() {
	passwdCmd.Flags().StringVar(&passwdOldPasswordFile, "old-password-file", "", "read the current passphrase from this file instead of prompting")
	passwdCmd.Flags().StringVar(&passwdNewPasswordFile, "new-password-file", "", "read the new passphrase from this file instead of prompting")
}
