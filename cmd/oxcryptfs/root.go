// Package main implements oxcryptfs, the vault lifecycle admin CLI
// (SPEC_FULL.md §6.1): create, info, passwd, diagnostics. It never links
// in the FUSE bridge — that is a separate, out-of-scope binary.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"

	"github.com/oxcryptfs/oxcryptfs/config"
)

var (
	logLevel slog.LevelVar
	debug    bool

	// cfg is the merged flag/env/config-file tunables (§6), loaded once in
	// OnInitialize. create consults it for the default shortening
	// threshold; the mount-time lane/cache tunables it also carries are
	// unused by this lifecycle-only CLI but loaded the same way the
	// FUSE bridge would.
	cfg        config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "oxcryptfs",
	Short: "Admin CLI for oxcryptfs encrypted vaults",
	Long: `oxcryptfs manages the lifecycle of a Cryptomator-compatible encrypted
vault: creating one, inspecting its header, and rotating its passphrase.
Mounting a vault is handled by a separate FUSE bridge binary, out of
scope for this CLI.`,
}

// Execute runs the root command. Called once by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: $HOME/.oxcryptfs.yaml)")

	cobra.OnInitialize(func() {
		v := config.New()
		_ = v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
		if configFile != "" {
			v.SetConfigFile(configFile)
		} else {
			v.SetConfigName(".oxcryptfs")
			v.SetConfigType("yaml")
			v.AddConfigPath("$HOME")
		}
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				fmt.Fprintf(os.Stderr, "warning: could not read config file: %v\n", err)
			}
		}

		loaded, err := config.Load(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not decode config: %v\n", err)
		} else {
			cfg = loaded
		}

		debug = v.GetBool("debug")
		if debug {
			logLevel.Set(slog.LevelDebug)
		}
	})

	rootCmd.AddCommand(createCmd, infoCmd, passwdCmd, diagnosticsCmd)
}
