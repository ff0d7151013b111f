/* SPDX-License-Identifier: MPL-2.0 */

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/securedash/dialer-go-sdk/calling"
	"github.com/securedash/dialer-go-sdk/internal/calllog"
	"github.com/securedash/dialer-go-sdk/internal/config"
)

var (
	historyLimit int
	historyLocal bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show call history",
	Long: `history lists past calls from the backend. With --local it reads the
call log recorded on this machine instead, which works offline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if historyLocal {
			return showLocalHistory(cfg)
		}

		client, err := requireClient(cfg)
		if err != nil {
			return err
		}

		records, err := client.Calling().CallControl().History(context.Background(), &calling.HistoryOptions{
			Limit: historyLimit,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No calls yet.")
			return nil
		}

		fmt.Printf("%-16s %-20s %-12s %-10s %s\n", "WHEN", "NUMBER", "STATUS", "DURATION", "CONTACT")
		fmt.Println(strings.Repeat("-", 72))
		for _, record := range records {
			fmt.Printf("%-16s %-20s %-12s %-10s %s\n",
				record.StartedAt.Local().Format("Jan 02 15:04"),
				record.PhoneNumber,
				record.Status,
				calling.FormatDuration(record.DurationSeconds),
				record.ContactName,
			)
		}
		return nil
	},
}

func showLocalHistory(cfg config.Config) error {
	store, err := calllog.Open(cfg.CallLog.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No calls recorded on this machine.")
		return nil
	}

	fmt.Printf("%-16s %-20s %-12s %-10s %s\n", "WHEN", "NUMBER", "OUTCOME", "DURATION", "CONTACT")
	fmt.Println(strings.Repeat("-", 72))
	for _, entry := range entries {
		fmt.Printf("%-16s %-20s %-12s %-10s %s\n",
			entry.StartedAt.Local().Format("Jan 02 15:04"),
			entry.PhoneNumber,
			entry.CloseReason,
			calling.FormatDuration(entry.DurationSeconds),
			entry.ContactName,
		)
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
	historyCmd.Flags().BoolVar(&historyLocal, "local", false, "read the local call log instead of the backend")
}
