package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"igloo/client"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print a one-shot summary of the hub's device tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dialHub(addr, username, password)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.send(client.ClientMessage{Kind: client.ClientInit}); err != nil {
				return err
			}
			msg, err := conn.recv()
			if err != nil {
				return err
			}
			if msg.Kind != client.ServerSnapshot || msg.Snapshot == nil {
				return fmt.Errorf("iglooctl: expected a Snapshot reply, got %v", msg.Kind)
			}

			entityCount := 0
			for _, d := range msg.Snapshot.Devices {
				entityCount += len(d.Entities)
			}
			fmt.Printf("hub %s\n", addr)
			fmt.Printf("  root hash:  %s\n", msg.Snapshot.RootHash)
			fmt.Printf("  devices:    %d\n", len(msg.Snapshot.Devices))
			fmt.Printf("  entities:   %d\n", entityCount)
			for _, d := range msg.Snapshot.Devices {
				connected := "disconnected"
				if d.Connected {
					connected = "connected"
				}
				fmt.Printf("  - %s (owner %d, %s, %d entities)\n", d.Name, d.Owner, connected, len(d.Entities))
			}
			return nil
		},
	}
}
