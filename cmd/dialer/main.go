/* SPDX-License-Identifier: MPL-2.0 */

package main

import (
	"fmt"
	"os"

	"github.com/securedash/dialer-go-sdk/internal/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
