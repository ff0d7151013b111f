/* SPDX-License-Identifier: MPL-2.0 */

// Package commands implements the dialer CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	dialer "github.com/securedash/dialer-go-sdk"
	"github.com/securedash/dialer-go-sdk/dialersdk"
	"github.com/securedash/dialer-go-sdk/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "dialer",
	Short: "Place and manage phone calls from the terminal",
	Long: `dialer places outbound phone calls through the dialer backend,
manages contacts, and shows call history.`,
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// newClient builds an authenticated API client from the stored token.
func newClient(cfg config.Config) (*dialer.Client, error) {
	sdkConfig := dialersdk.DefaultConfig()
	sdkConfig.BaseURL = cfg.API.BaseURL

	return dialer.NewClient(config.LoadToken(cfg), sdkConfig)
}

// requireClient builds a client and fails when no login token exists.
func requireClient(cfg config.Config) (*dialer.Client, error) {
	if config.LoadToken(cfg) == "" {
		return nil, fmt.Errorf("not logged in, run 'dialer login' first")
	}
	return newClient(cfg)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dialer %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
