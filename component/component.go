// Package component defines Igloo's closed set of typed component values:
// the data that lives on a tree entity (a light's brightness, a sensor's
// reading, a lock's state). Every variant has a stable TypeID fixed by
// components.toml and implements the Component interface; the set is closed
// so tree, query and watch code can switch over TypeID exhaustively instead
// of doing type assertions everywhere.
package component

import (
	"fmt"
	"time"

	"github.com/satori/uuid"
)

// Component is the closed tagged union of all value kinds a tree entity may
// carry. Concrete variants are the Type* structs below.
type Component interface {
	// TypeID returns the variant's stable wire/storage id.
	TypeID() TypeID
	// ToType erases the value, keeping only enough structure (e.g. a
	// List's element type and length) to validate and match filters
	// against without touching the payload.
	ToType() Type
}

// Type is an erased Component: its shape without its value. Two components
// of the same Type are wire-compatible with each other.
type Type struct {
	ID     TypeID
	Inner  *Type           // element type, set only when ID == TypeList
	Len    int             // element count, set only when ID == TypeList
	Fields map[string]Type // member types, set only when ID == TypeObject
}

// Numeric is implemented by components with a meaningful floating-point
// projection, used by the query engine's Sum/Mean/Max/Min aggregations.
type Numeric interface {
	Component
	Float64() float64
}

// Boolean is implemented by components with a meaningful truthy projection,
// used by the query engine's Any/All aggregations.
type Boolean interface {
	Component
	Bool() bool
}

// --- scalars ---------------------------------------------------------------

type Int int64

func (Int) TypeID() TypeID   { return TypeInt }
func (Int) ToType() Type     { return Type{ID: TypeInt} }
func (v Int) Float64() float64 { return float64(v) }

type Float float64

func (Float) TypeID() TypeID     { return TypeFloat }
func (Float) ToType() Type       { return Type{ID: TypeFloat} }
func (v Float) Float64() float64 { return float64(v) }

type Long int64

func (Long) TypeID() TypeID     { return TypeLong }
func (Long) ToType() Type       { return Type{ID: TypeLong} }
func (v Long) Float64() float64 { return float64(v) }

type Bool bool

func (Bool) TypeID() TypeID { return TypeBool }
func (Bool) ToType() Type   { return Type{ID: TypeBool} }
func (v Bool) Bool() bool   { return bool(v) }

// Trigger is a Marker-kind component: its presence in a WriteComponents
// batch is the signal (a button press, a doorbell ring). It carries no
// persisted value.
type Trigger struct{}

func (Trigger) TypeID() TypeID { return TypeTrigger }
func (Trigger) ToType() Type   { return Type{ID: TypeTrigger} }

type Uuid uuid.UUID

func (Uuid) TypeID() TypeID { return TypeUuid }
func (Uuid) ToType() Type   { return Type{ID: TypeUuid} }

type Binary []byte

func (Binary) TypeID() TypeID { return TypeBinary }
func (Binary) ToType() Type   { return Type{ID: TypeBinary} }

type Text string

func (Text) TypeID() TypeID { return TypeText }
func (Text) ToType() Type   { return Type{ID: TypeText} }

// --- temporal ----------------------------------------------------------------

type Date struct{ time.Time }

func (Date) TypeID() TypeID { return TypeDate }
func (Date) ToType() Type   { return Type{ID: TypeDate} }

type Time struct{ time.Duration } // offset since midnight, local civil time

func (Time) TypeID() TypeID { return TypeTime }
func (Time) ToType() Type   { return Type{ID: TypeTime} }

type DateTime struct{ time.Time }

func (DateTime) TypeID() TypeID { return TypeDateTime }
func (DateTime) ToType() Type   { return Type{ID: TypeDateTime} }

type Duration struct{ time.Duration }

func (Duration) TypeID() TypeID       { return TypeDuration }
func (Duration) ToType() Type         { return Type{ID: TypeDuration} }
func (v Duration) Float64() float64   { return v.Seconds() }

// --- domain (Struct/Enum kind components) -----------------------------------

// Light mirrors a typical on/off/brightness/color-temp light entity.
type Light struct {
	On         bool
	Brightness uint8 // 0-255
	ColorTempK uint16
}

func (Light) TypeID() TypeID { return TypeLight }
func (Light) ToType() Type   { return Type{ID: TypeLight} }
func (l Light) Bool() bool   { return l.On }

type Switch struct{ On bool }

func (Switch) TypeID() TypeID { return TypeSwitch }
func (Switch) ToType() Type   { return Type{ID: TypeSwitch} }
func (s Switch) Bool() bool   { return s.On }

// Dimmer is a bare 0-255 level, used by entities that aren't full Light
// fixtures (fan speed, blind tilt, etc).
type Dimmer uint8

func (Dimmer) TypeID() TypeID       { return TypeDimmer }
func (Dimmer) ToType() Type         { return Type{ID: TypeDimmer} }
func (v Dimmer) Float64() float64   { return float64(v) }

type Color struct{ R, G, B uint8 }

func (Color) TypeID() TypeID { return TypeColor }
func (Color) ToType() Type   { return Type{ID: TypeColor} }

// CoverState enumerates a Cover component's Enum-kind state field.
type CoverState uint8

const (
	CoverOpen CoverState = iota
	CoverClosed
	CoverOpening
	CoverClosing
)

type Cover struct {
	State    CoverState
	Position uint8 // 0 (closed) - 100 (open)
}

func (Cover) TypeID() TypeID       { return TypeCover }
func (Cover) ToType() Type         { return Type{ID: TypeCover} }
func (c Cover) Float64() float64   { return float64(c.Position) }

// LockState enumerates a Lock component's Enum-kind state field.
type LockState uint8

const (
	LockLocked LockState = iota
	LockUnlocked
	LockJammed
)

type Lock struct{ State LockState }

func (Lock) TypeID() TypeID { return TypeLock }
func (Lock) ToType() Type   { return Type{ID: TypeLock} }
func (l Lock) Bool() bool   { return l.State == LockLocked }

// ClimateMode enumerates a Climate component's mode field.
type ClimateMode uint8

const (
	ClimateOff ClimateMode = iota
	ClimateHeat
	ClimateCool
	ClimateAuto
)

type Climate struct {
	Mode        ClimateMode
	TargetC     float32
	CurrentC    float32
}

func (Climate) TypeID() TypeID     { return TypeClimate }
func (Climate) ToType() Type       { return Type{ID: TypeClimate} }
func (c Climate) Float64() float64 { return float64(c.CurrentC) }

// AlarmState enumerates an Alarm component's state field.
type AlarmState uint8

const (
	AlarmDisarmed AlarmState = iota
	AlarmArmedHome
	AlarmArmedAway
	AlarmTriggered
)

type Alarm struct{ State AlarmState }

func (Alarm) TypeID() TypeID { return TypeAlarm }
func (Alarm) ToType() Type   { return Type{ID: TypeAlarm} }
func (a Alarm) Bool() bool   { return a.State == AlarmTriggered }

// SensorClass enumerates the Sensor family's device-class field (spec.md
// §3's "Sensor family"): one physical quantity per class, one float value.
type SensorClass uint8

const (
	SensorTemperature SensorClass = iota
	SensorHumidity
	SensorIlluminance
	SensorPower
	SensorBattery
	SensorPressure
	SensorCustom
)

type Sensor struct {
	Class SensorClass
	Value float64
	Unit  string
}

func (Sensor) TypeID() TypeID     { return TypeSensor }
func (Sensor) ToType() Type       { return Type{ID: TypeSensor} }
func (s Sensor) Float64() float64 { return s.Value }

// --- composites --------------------------------------------------------------

// List is a homogeneous ordered sequence of components sharing one Type.
type List struct {
	Elem  Type
	Items []Component
}

func (List) TypeID() TypeID { return TypeList }
func (l List) ToType() Type { return Type{ID: TypeList, Inner: &l.Elem, Len: len(l.Items)} }

// MixedList is a heterogeneous ordered sequence: each item carries its own
// type tag on the wire.
type MixedList struct{ Items []Component }

func (MixedList) TypeID() TypeID { return TypeMixedList }
func (m MixedList) ToType() Type { return Type{ID: TypeMixedList, Len: len(m.Items)} }

// Object is a named bag of sub-components (e.g. an extension-defined
// composite sensor payload).
type Object map[string]Component

func (Object) TypeID() TypeID { return TypeObject }
func (o Object) ToType() Type {
	fields := make(map[string]Type, len(o))
	for k, v := range o {
		fields[k] = v.ToType()
	}
	return Type{ID: TypeObject, Fields: fields}
}

// ErrUnknownComponent is returned when decoding a type id above
// MaxSupportedComponent.
type ErrUnknownComponent struct{ ID TypeID }

func (e *ErrUnknownComponent) Error() string {
	return fmt.Sprintf("component: unknown type id %d", e.ID)
}
