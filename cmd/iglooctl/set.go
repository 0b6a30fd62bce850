package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"igloo/client"
	"igloo/component"
)

func setCmd() *cobra.Command {
	var entityPattern string
	var typeID uint16
	var dataHex string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "push a component value to every entity matching a glob",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(dataHex)
			if err != nil {
				return fmt.Errorf("iglooctl: bad --data hex string: %w", err)
			}

			conn, err := dialHub(addr, username, password)
			if err != nil {
				return err
			}
			defer conn.Close()

			sq := client.SetQueryWire{
				DeviceFilter: client.DeviceFilterWire{
					Entity: &client.FilterWire{Kind: "glob", Pattern: entityPattern},
				},
				Components: []client.ComponentWire{{Type: typeID, Data: data}},
			}
			if err := conn.send(client.ClientMessage{Kind: client.ClientExecSetQuery, SetQuery: &sq}); err != nil {
				return err
			}

			msg, err := conn.recv()
			if err != nil {
				return err
			}
			if msg.Kind != client.ServerQueryResult || msg.Query == nil {
				return fmt.Errorf("iglooctl: expected a QueryResult reply, got %v", msg.Kind)
			}
			if msg.Query.Err != "" {
				return fmt.Errorf("iglooctl: %s", msg.Query.Err)
			}
			fmt.Printf("matched %d entities\n", msg.Query.Matched)
			return nil
		},
	}
	cmd.Flags().StringVar(&entityPattern, "entity-glob", "*", "entity-id glob pattern")
	cmd.Flags().Uint16Var(&typeID, "component-type", uint16(component.TypeSwitch), "component type id")
	cmd.Flags().StringVar(&dataHex, "data", "", "hex-encoded component value body")
	return cmd
}
