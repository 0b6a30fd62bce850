package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"igloo/client"
	"igloo/component"
)

func watchCmd() *cobra.Command {
	var kind string
	var entityPattern string
	var typeID uint16
	var op string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "stream live updates matching a filter until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dialHub(addr, username, password)
			if err != nil {
				return err
			}
			defer conn.Close()

			wq := client.WatchQueryWire{
				Kind:   kind,
				TypeID: component.TypeID(typeID),
				Op:     op,
			}
			if kind != "metadata" {
				wq.Filter = client.DeviceFilterWire{
					Entity: &client.FilterWire{Kind: "glob", Pattern: entityPattern},
				}
			}
			if err := conn.send(client.ClientMessage{Kind: client.ClientRegisterWatch, Watch: &wq}); err != nil {
				return err
			}

			for {
				msg, err := conn.recv()
				if err != nil {
					return err
				}
				if msg.Kind == client.ServerError {
					return fmt.Errorf("iglooctl: %s", msg.Error)
				}
				if msg.Kind != client.ServerWatchUpdate || msg.Watch == nil {
					continue
				}
				out, err := json.Marshal(msg.Watch)
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			}
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "metadata", "watch kind: metadata|value|aggregate")
	cmd.Flags().StringVar(&entityPattern, "entity-glob", "*", "entity-id glob pattern (value/aggregate watches)")
	cmd.Flags().Uint16Var(&typeID, "component-type", uint16(component.TypeSwitch), "component type id (value/aggregate watches)")
	cmd.Flags().StringVar(&op, "op", "any", "aggregate op: sum|mean|max|min|any|all")
	return cmd
}
