/* SPDX-License-Identifier: MPL-2.0 */

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securedash/dialer-go-sdk/auth"
	"github.com/securedash/dialer-go-sdk/internal/config"
)

var loginUser string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with the local passkey",
	Long: `login runs the passkey ceremony against the backend and stores the
bearer token. The first run with --user generates a new credential.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		created := false
		cred, err := auth.LoadCredential(cfg.Credential.Path)
		if err != nil {
			if !os.IsNotExist(err) {
				return err
			}
			if loginUser == "" {
				return fmt.Errorf("no credential at %s, run 'dialer login --user <name>' to create one", cfg.Credential.Path)
			}
			cred, err = auth.NewCredential(loginUser)
			if err != nil {
				return err
			}
			if err := cred.Save(cfg.Credential.Path); err != nil {
				return err
			}
			created = true
			fmt.Printf("Created new credential for %s\n", loginUser)
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}

		if created {
			if err := client.Auth().Register(context.Background(), cred); err != nil {
				return err
			}
			fmt.Println("Credential registered with the backend")
		}

		if err := client.Auth().Login(context.Background(), cred); err != nil {
			return err
		}
		if err := config.SaveToken(cfg, client.Auth().Token()); err != nil {
			return err
		}

		if name := client.Auth().UserName(); name != "" {
			fmt.Printf("Logged in as %s\n", name)
		} else {
			fmt.Println("Logged in")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginUser, "user", "", "account name when creating a new credential")
}
