package component

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TypeID is the stable 16-bit identifier of a Component variant. Values
// define both wire order and the position a component occupies in an
// entity's direct-indexed back-table (tree.Entity), so they must never be
// renumbered once shipped.
type TypeID uint16

// Built-in component type ids, matching the catalogue components.toml ships
// by default. Scalars first, then temporal, then domain types, then
// composites -- the same grouping spec.md §3 lists them in.
const (
	TypeInt TypeID = iota
	TypeFloat
	TypeLong
	TypeBool
	TypeTrigger
	TypeUuid
	TypeBinary
	TypeText
	TypeDate
	TypeTime
	TypeDateTime
	TypeDuration
	TypeLight
	TypeSwitch
	TypeDimmer
	TypeColor
	TypeCover
	TypeLock
	TypeClimate
	TypeAlarm
	TypeSensor
	TypeList
	TypeMixedList
	TypeObject
)

// MaxSupportedComponent is the highest type id this build of igloo
// understands. Encoder/decoder reject anything above it with
// ErrUnknownComponent.
const MaxSupportedComponent TypeID = TypeObject

// Kind classifies how a component's schema entry is shaped.
type Kind string

// Kinds recognized by components.toml.
const (
	KindSingle Kind = "Single" // one scalar value, no sub-structure
	KindStruct Kind = "Struct" // fixed set of named sub-fields
	KindEnum   Kind = "Enum"   // a closed (optionally extensible) set of named variants
	KindMarker Kind = "Marker" // carries no value; its occurrence is the signal
)

// EnumVariant names one value of an Enum-kind component, e.g. a lock's
// "locked"/"unlocked"/"jammed" states.
type EnumVariant struct {
	Name string `toml:"name"`
	ID   uint8  `toml:"id"`
}

// TypeSpec is one components.toml entry.
type TypeSpec struct {
	Name        string        `toml:"name"`
	ID          TypeID        `toml:"id"`
	Kind        Kind          `toml:"kind"`
	AllowCustom bool          `toml:"allow_custom"`
	Fields      []string      `toml:"fields"`
	Variants    []EnumVariant `toml:"variant"`
}

// Schema is the parsed, validated form of components.toml.
type Schema struct {
	Types []TypeSpec `toml:"type"`

	byID   map[TypeID]TypeSpec
	byName map[string]TypeSpec
}

// LoadSchema parses and validates a components.toml file against the rules
// in spec.md §6: ids are unique and contiguous from 0, and enum variant ids
// are unique within their own enum.
func LoadSchema(path string) (*Schema, error) {
	var s Schema
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("loading component schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) validate() error {
	s.byID = make(map[TypeID]TypeSpec, len(s.Types))
	s.byName = make(map[string]TypeSpec, len(s.Types))

	maxID := TypeID(0)
	for _, t := range s.Types {
		if _, dup := s.byID[t.ID]; dup {
			return fmt.Errorf("component schema: id %d used more than once (%s)", t.ID, t.Name)
		}
		if _, dup := s.byName[t.Name]; dup {
			return fmt.Errorf("component schema: name %q used more than once", t.Name)
		}
		s.byID[t.ID] = t
		s.byName[t.Name] = t
		if t.ID > maxID {
			maxID = t.ID
		}

		if t.Kind == KindEnum {
			seen := make(map[uint8]bool, len(t.Variants))
			for _, v := range t.Variants {
				if seen[v.ID] {
					return fmt.Errorf("component schema: enum %q has duplicate variant id %d", t.Name, v.ID)
				}
				seen[v.ID] = true
			}
		}
	}

	for id := TypeID(0); id <= maxID; id++ {
		if _, ok := s.byID[id]; !ok {
			return fmt.Errorf("component schema: gap at id %d (ids must be contiguous from 0)", id)
		}
	}
	return nil
}

// Lookup returns the schema entry for a type id.
func (s *Schema) Lookup(id TypeID) (TypeSpec, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// LookupName returns the schema entry for a type name.
func (s *Schema) LookupName(name string) (TypeSpec, bool) {
	t, ok := s.byName[name]
	return t, ok
}
