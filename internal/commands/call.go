/* SPDX-License-Identifier: MPL-2.0 */

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/securedash/dialer-go-sdk/calling"
	"github.com/securedash/dialer-go-sdk/internal/calllog"
	"github.com/securedash/dialer-go-sdk/internal/config"
)

var callCmd = &cobra.Command{
	Use:   "call <number>",
	Short: "Place an outbound call",
	Long: `call dials the given number and follows the call on screen until it
ends. Press Ctrl+C to hang up.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client, err := requireClient(cfg)
		if err != nil {
			return err
		}

		callingConfig := calling.DefaultConfig()
		callingConfig.Device.GatewayURL = cfg.Gateway.URL
		if cfg.Call.PollInterval > 0 {
			callingConfig.Session.PollInterval = cfg.Call.PollInterval
		}
		if cfg.Call.DisplayDelay > 0 {
			callingConfig.Session.DisplayDelay = cfg.Call.DisplayDelay
		}
		session := client.CallingWith(callingConfig).Session()

		contactName := ""
		if contact, err := client.Contacts().FindByNumber(context.Background(), target); err == nil && contact != nil {
			contactName = contact.Name
			fmt.Printf("Calling %s (%s)\n", contact.Name, target)
		} else {
			fmt.Printf("Calling %s\n", target)
		}

		startedAt := time.Now()
		done := make(chan calling.CallSession, 1)

		session.Emitter.On(string(calling.SessionEventPhaseChange), func(data interface{}) {
			snap, ok := data.(calling.CallSession)
			if !ok {
				return
			}
			fmt.Println(snap.StatusText())
		})
		session.Emitter.On(string(calling.SessionEventClosed), func(data interface{}) {
			if snap, ok := data.(calling.CallSession); ok {
				done <- snap
			}
		})

		if err := session.PlaceCall(target); err != nil {
			return err
		}

		interrupted := make(chan os.Signal, 1)
		signal.Notify(interrupted, os.Interrupt)
		defer signal.Stop(interrupted)

		var final calling.CallSession
		select {
		case final = <-done:
		case <-interrupted:
			session.Hangup()
			final = <-done
		}

		if final.ElapsedSeconds > 0 {
			fmt.Printf("Call duration %s\n", calling.FormatDuration(final.ElapsedSeconds))
		}

		if store, err := calllog.Open(cfg.CallLog.Path); err == nil {
			defer store.Close()
			if err := store.Record(final, startedAt, contactName); err != nil {
				fmt.Printf("Warning: %v\n", err)
			}
		}
		return nil
	},
}
