package protocol

import (
	"reflect"
	"testing"

	"igloo/component"
	"igloo/tree"
	"igloo/wire"
)

func roundTrip(t *testing.T, cmd wire.Command, msg interface{}) interface{} {
	t.Helper()
	payload, err := Encode(cmd, msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(cmd, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestWhatsUpIglooRoundTrip(t *testing.T) {
	got := roundTrip(t, wire.CmdWhatsUpIgloo, WhatsUpIgloo{MaxSupportedComponent: 23})
	if got.(WhatsUpIgloo).MaxSupportedComponent != 23 {
		t.Fatalf("got %+v", got)
	}
}

func TestCreateDeviceRoundTrip(t *testing.T) {
	got := roundTrip(t, wire.CmdCreateDevice, CreateDevice{Name: "bulb"})
	if got.(CreateDevice).Name != "bulb" {
		t.Fatalf("got %+v", got)
	}
}

func TestDeviceCreatedRoundTrip(t *testing.T) {
	want := DeviceCreated{RequestName: "bulb", Device: tree.DeviceID{Index: 3, Generation: 1}}
	got := roundTrip(t, wire.CmdDeviceCreated, want)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRegisterEntityRoundTrip(t *testing.T) {
	want := RegisterEntity{
		Device:    tree.DeviceID{Index: 1, Generation: 0},
		Name:      "main",
		IndexHint: 0,
	}
	got := roundTrip(t, wire.CmdRegisterEntity, want)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestWriteComponentsRoundTrip(t *testing.T) {
	want := WriteComponents{
		Device: tree.DeviceID{Index: 1, Generation: 0},
		Entity: 0,
		Components: []component.Component{
			component.Switch{On: true},
			component.Dimmer(255),
		},
	}
	got := roundTrip(t, wire.CmdWriteComponents, want).(WriteComponents)
	if got.Device != want.Device || got.Entity != want.Entity {
		t.Fatalf("got %+v", got)
	}
	if !reflect.DeepEqual(got.Components, want.Components) {
		t.Fatalf("components mismatch: got %+v, want %+v", got.Components, want.Components)
	}
}

func TestSetComponentsRoundTrip(t *testing.T) {
	want := SetComponents{
		Device:     tree.DeviceID{Index: 2, Generation: 4},
		Entity:     1,
		Components: []component.Component{component.Int(42)},
	}
	got := roundTrip(t, wire.CmdSetComponents, want).(SetComponents)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCustomRoundTrip(t *testing.T) {
	want := Custom{Name: "ping", Payload: []byte{1, 2, 3}}
	got := roundTrip(t, wire.CmdCustom, want).(Custom)
	if got.Name != want.Name || !reflect.DeepEqual(got.Payload, want.Payload) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDecodeUnknownCommand(t *testing.T) {
	_, err := Decode(wire.Command(99), nil)
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if _, ok := err.(*wire.UnknownCommandError); !ok {
		t.Fatalf("got %T, want *wire.UnknownCommandError", err)
	}
}
