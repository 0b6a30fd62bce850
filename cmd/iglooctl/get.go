package main

import (
	"encoding/json"
	"fmt"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"igloo/client"
)

func getCmd() *cobra.Command {
	var ownerIdx int
	var entityPattern string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "print devices/entities matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := glob.Compile(entityPattern)
			if err != nil {
				return fmt.Errorf("iglooctl: bad entity glob %q: %w", entityPattern, err)
			}

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

			for _, d := range msg.Snapshot.Devices {
				if ownerIdx >= 0 && d.Owner.Index != uint32(ownerIdx) {
					continue
				}
				for _, e := range d.Entities {
					if !g.Match(e.Name) {
						continue
					}
					out, err := json.Marshal(e)
					if err != nil {
						return err
					}
					fmt.Printf("%s/%s: %s\n", d.Name, e.Name, out)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ownerIdx, "owner", -1, "extension index to filter on (-1 for any)")
	cmd.Flags().StringVar(&entityPattern, "entity-glob", "*", "entity-id glob pattern")
	return cmd
}
