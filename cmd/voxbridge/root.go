package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voxbridge",
	Short: "Rate limiting and usage metering gateway for assisted-speech providers",
	Long: `Voxbridge sits between an assisted-speech app and its paid
providers (speech synthesis, prediction, transcription, voice cloning)
and keeps per-user consumption inside configured quotas.

Quick start:
  voxbridge serve     # Start the gateway
  voxbridge validate  # Validate configuration

Management:
  voxbridge users     # Manage user accounts
  voxbridge token     # Mint a bearer token for a user`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "voxbridge.yaml", "config file path")
}
