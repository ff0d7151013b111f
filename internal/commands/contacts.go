/* SPDX-License-Identifier: MPL-2.0 */

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/securedash/dialer-go-sdk/contacts"
	"github.com/securedash/dialer-go-sdk/internal/config"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage the phone book",
}

var contactsSearch string

var contactsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := requireClient(cfg)
		if err != nil {
			return err
		}

		items, err := client.Contacts().List(context.Background(), &contacts.ListOptions{Search: contactsSearch})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No contacts found.")
			return nil
		}

		fmt.Printf("%-24s %-16s %s\n", "NAME", "NUMBER", "EMAIL")
		fmt.Println(strings.Repeat("-", 60))
		for _, contact := range items {
			fmt.Printf("%-24s %-16s %s\n", contact.Name, contact.PhoneNumber, contact.Email)
		}
		return nil
	},
}

var addEmail, addNotes string

var contactsAddCmd = &cobra.Command{
	Use:   "add <name> <number>",
	Short: "Add a contact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := requireClient(cfg)
		if err != nil {
			return err
		}

		created, err := client.Contacts().Create(context.Background(), &contacts.Contact{
			Name:        args[0],
			PhoneNumber: args[1],
			Email:       addEmail,
			Notes:       addNotes,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%s)\n", created.Name, created.PhoneNumber)
		return nil
	},
}

var contactsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := requireClient(cfg)
		if err != nil {
			return err
		}

		if err := client.Contacts().Delete(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("Contact removed.")
		return nil
	},
}

func init() {
	contactsListCmd.Flags().StringVar(&contactsSearch, "search", "", "filter by name or number")
	contactsAddCmd.Flags().StringVar(&addEmail, "email", "", "contact email")
	contactsAddCmd.Flags().StringVar(&addNotes, "notes", "", "free-form notes")

	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsAddCmd)
	contactsCmd.AddCommand(contactsRmCmd)
}
