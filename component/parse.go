package component

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/satori/uuid"
)

// ParseComponent builds a Component of the given type from a human-facing
// text form such as "on" for a Switch. The WebSocket set-query path
// (client.SetQueryWire) carries components in their canonical binary form
// and does not go through this parser. Only the scalar, temporal, Switch,
// Dimmer and Lock types have a text form here; every other type id,
// including Binary and the composites (List, MixedList, Object), is
// rejected.
func ParseComponent(typeID TypeID, text string) (Component, error) {
	switch typeID {
	case TypeInt:
		v, err := strconv.ParseInt(text, 10, 64)
		return Int(v), wrapParse(typeID, text, err)
	case TypeFloat:
		v, err := strconv.ParseFloat(text, 64)
		return Float(v), wrapParse(typeID, text, err)
	case TypeLong:
		v, err := strconv.ParseInt(text, 10, 64)
		return Long(v), wrapParse(typeID, text, err)
	case TypeBool:
		return parseBool(text)
	case TypeTrigger:
		return Trigger{}, nil
	case TypeUuid:
		u, err := uuid.FromString(text)
		return Uuid(u), wrapParse(typeID, text, err)
	case TypeText:
		return Text(text), nil
	case TypeDate:
		t, err := time.Parse("2006-01-02", text)
		return Date{t}, wrapParse(typeID, text, err)
	case TypeTime:
		d, err := time.ParseDuration(text)
		return Time{d}, wrapParse(typeID, text, err)
	case TypeDateTime:
		t, err := time.Parse(time.RFC3339, text)
		return DateTime{t}, wrapParse(typeID, text, err)
	case TypeDuration:
		d, err := time.ParseDuration(text)
		return Duration{d}, wrapParse(typeID, text, err)
	case TypeSwitch:
		b, err := parseBool(text)
		if err != nil {
			return nil, err
		}
		return Switch{On: bool(b.(Bool))}, nil
	case TypeDimmer:
		v, err := strconv.ParseUint(text, 10, 8)
		return Dimmer(v), wrapParse(typeID, text, err)
	case TypeLock:
		switch strings.ToLower(text) {
		case "locked":
			return Lock{State: LockLocked}, nil
		case "unlocked":
			return Lock{State: LockUnlocked}, nil
		case "jammed":
			return Lock{State: LockJammed}, nil
		}
		return nil, fmt.Errorf("component: invalid Lock value %q", text)
	default:
		return nil, fmt.Errorf("component: type id %d has no text form", typeID)
	}
}

func parseBool(text string) (Component, error) {
	switch strings.ToLower(text) {
	case "1", "true", "on", "yes":
		return Bool(true), nil
	case "0", "false", "off", "no":
		return Bool(false), nil
	}
	return nil, fmt.Errorf("component: invalid Bool value %q", text)
}

func wrapParse(typeID TypeID, text string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("component: parsing %q as type %d: %w", text, typeID, err)
}
