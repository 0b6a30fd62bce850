package wire

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// CommandSpec describes one entry of protocol.toml: an opcode, its name,
// direction, and the ordered field names it carries on the wire. Igloo
// doesn't generate marshal code from this table (the closed command set is
// hand-written against spec.md §4.1); LoadProtocolSchema validates such a
// table the way daemon_ref/ap.configd/validate_syntax.go validates its own
// config file shape. The hub does not load the file at startup, and protocol
// errors do not consult it.
type CommandSpec struct {
	Name      string   `toml:"name"`
	Opcode    uint8    `toml:"opcode"`
	Direction string   `toml:"direction"`
	Fields    []string `toml:"fields"`
}

// ProtocolSchema is the parsed form of protocol.toml.
type ProtocolSchema struct {
	Commands []CommandSpec `toml:"command"`
}

// LoadProtocolSchema parses and validates a protocol.toml file. It enforces
// that every opcode fits the reserved 0-31 range (spec.md §6) and that no two
// commands share an opcode.
func LoadProtocolSchema(path string) (*ProtocolSchema, error) {
	var schema ProtocolSchema
	if _, err := toml.DecodeFile(path, &schema); err != nil {
		return nil, fmt.Errorf("loading protocol schema: %w", err)
	}
	if err := schema.validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

func (s *ProtocolSchema) validate() error {
	seen := make(map[uint8]string, len(s.Commands))
	for _, c := range s.Commands {
		if c.Opcode > MaxOpcode {
			return fmt.Errorf("protocol schema: opcode %d (%s) exceeds max %d",
				c.Opcode, c.Name, MaxOpcode)
		}
		if other, ok := seen[c.Opcode]; ok {
			return fmt.Errorf("protocol schema: opcode %d used by both %s and %s",
				c.Opcode, other, c.Name)
		}
		seen[c.Opcode] = c.Name
		if c.Direction != "MOSI" && c.Direction != "MISO" {
			return fmt.Errorf("protocol schema: command %s has invalid direction %q",
				c.Name, c.Direction)
		}
	}
	return nil
}
