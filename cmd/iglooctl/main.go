// iglooctl is Igloo's operator CLI: get/set/watch talk the same
// ClientMessage/ServerMessage protocol a UI dashboard speaks over the hub's
// WebSocket endpoint, and status prints a one-shot snapshot summary.
// Grounded in cl-reg/main.go's cobra root-command wiring (a persistent flag
// set, one subcommand per verb, RunE returning a wrapped error for cobra to
// print) in place of that tool's Postgres registry calls.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var addr string
var username string
var password string

func main() {
	rootCmd := &cobra.Command{
		Use:   "iglooctl",
		Short: "Operator CLI for an Igloo hub",
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&addr, "addr", "a", "localhost:6543", "hub HTTP/WS listen address")
	pf.StringVarP(&username, "username", "u", "admin", "login username")
	pf.StringVarP(&password, "password", "p", "admin", "login password")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(setCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
