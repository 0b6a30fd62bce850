// Package protocol encodes and decodes the payload shapes carried inside
// wire.Frame for the extension<->hub socket (spec.md §4.6/§6). wire itself
// only knows about opcode+bytes framing; protocol is the layer that gives
// each opcode a typed Go struct, built on top of component and tree the same
// way daemon_ref/ap_common/mcp's request/response structs sit above its raw
// protobuf framing.
package protocol

import (
	"bytes"
	"fmt"
	"io"

	"igloo/component"
	"igloo/tree"
	"igloo/wire"
)

// WhatsUpIgloo is the extension's greeting: the highest component TypeID it
// understands. A greeting naming an id above component.MaxSupportedComponent
// is still accepted -- the hub simply never sends that type -- but a missing
// or malformed greeting within the deadline is a protocol error.
type WhatsUpIgloo struct {
	MaxSupportedComponent uint16
}

// DeviceCreated acknowledges a CreateDevice, carrying the assigned DeviceID.
type DeviceCreated struct {
	RequestName string
	Device      tree.DeviceID
}

// CreateDevice asks the hub to allocate a device under the session's
// extension.
type CreateDevice struct {
	Name string
}

// RegisterEntity declares (or re-declares) an entity under a device. A
// reconnecting extension supplies the same IndexHint it used before the
// disconnect, letting the hub detect a stable vs. renumbered entity set.
type RegisterEntity struct {
	Device    tree.DeviceID
	Name      string
	IndexHint uint32
}

// WriteComponents sets some of an entity's components in one atomic batch.
type WriteComponents struct {
	Device     tree.DeviceID
	Entity     tree.EntityIndex
	Components []component.Component
}

// DeviceRemoved tells the hub a device no longer exists on the extension
// side.
type DeviceRemoved struct {
	Device tree.DeviceID
}

// Log carries a free-text diagnostic line from the extension, surfaced
// through internal/log rather than the tree.
type Log struct {
	Level   string
	Message string
}

// CustomError reports an extension-defined error condition that doesn't map
// to a tree mutation.
type CustomError struct {
	Code    string
	Message string
}

// Init is sent hub->extension immediately after a successful greet, handing
// back the extension's persisted ExtensionID so it can resume prior device
// ownership across reconnects.
type Init struct {
	ExtensionID string
}

// ReqComponentUpdates asks the extension to push current values for a device
// it owns. floeclient dispatches it to Handler.ReqComponentUpdates; the hub
// itself does not send it.
type ReqComponentUpdates struct {
	Device tree.DeviceID
}

// Custom is an extension-defined, best-effort hub->extension command. It is
// the one command class the supervisor's outbound mailbox is allowed to drop
// under backpressure (spec.md §4.6).
type Custom struct {
	Name    string
	Payload []byte
}

// SetComponents is the hub->extension command a SetQuery translates into:
// apply these component values on this entity. Never dropped under
// backpressure.
type SetComponents struct {
	Device     tree.DeviceID
	Entity     tree.EntityIndex
	Components []component.Component
}

func putDeviceID(buf *bytes.Buffer, d tree.DeviceID) {
	buf.Write(wire.PutUvarint32(nil, d.Index))
	buf.Write(wire.PutUvarint32(nil, d.Generation))
}

func getDeviceID(r *bytes.Reader) (tree.DeviceID, error) {
	idx, err := wire.ReadUvarint32(r)
	if err != nil {
		return tree.DeviceID{}, err
	}
	gen, err := wire.ReadUvarint32(r)
	if err != nil {
		return tree.DeviceID{}, err
	}
	return tree.DeviceID{Index: idx, Generation: gen}, nil
}

func putString(buf *bytes.Buffer, s string) {
	buf.Write(wire.PutUvarint32(nil, uint32(len(s))))
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	n, err := wire.ReadUvarint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func putBytes(buf *bytes.Buffer, b []byte) {
	buf.Write(wire.PutUvarint32(nil, uint32(len(b))))
	buf.Write(b)
}

func getBytes(r *bytes.Reader) ([]byte, error) {
	n, err := wire.ReadUvarint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func putComponents(buf *bytes.Buffer, comps []component.Component) error {
	buf.Write(wire.PutUvarint32(nil, uint32(len(comps))))
	for _, c := range comps {
		if err := component.Encode(buf, c); err != nil {
			return err
		}
	}
	return nil
}

func getComponents(r *bytes.Reader) ([]component.Component, error) {
	n, err := wire.ReadUvarint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]component.Component, 0, n)
	for i := uint32(0); i < n; i++ {
		c, err := component.Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Encode renders msg as the payload for cmd, ready to hand to
// wire.FrameWriter.WriteFrame.
func Encode(cmd wire.Command, msg interface{}) ([]byte, error) {
	var buf bytes.Buffer
	switch m := msg.(type) {
	case WhatsUpIgloo:
		buf.Write(wire.PutUvarint16(nil, m.MaxSupportedComponent))
	case DeviceCreated:
		putString(&buf, m.RequestName)
		putDeviceID(&buf, m.Device)
	case CreateDevice:
		putString(&buf, m.Name)
	case RegisterEntity:
		putDeviceID(&buf, m.Device)
		putString(&buf, m.Name)
		buf.Write(wire.PutUvarint32(nil, m.IndexHint))
	case WriteComponents:
		putDeviceID(&buf, m.Device)
		buf.Write(wire.PutUvarint32(nil, uint32(m.Entity)))
		if err := putComponents(&buf, m.Components); err != nil {
			return nil, err
		}
	case DeviceRemoved:
		putDeviceID(&buf, m.Device)
	case Log:
		putString(&buf, m.Level)
		putString(&buf, m.Message)
	case CustomError:
		putString(&buf, m.Code)
		putString(&buf, m.Message)
	case Init:
		putString(&buf, m.ExtensionID)
	case ReqComponentUpdates:
		putDeviceID(&buf, m.Device)
	case Custom:
		putString(&buf, m.Name)
		putBytes(&buf, m.Payload)
	case SetComponents:
		putDeviceID(&buf, m.Device)
		buf.Write(wire.PutUvarint32(nil, uint32(m.Entity)))
		if err := putComponents(&buf, m.Components); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("protocol: unsupported message type %T for %v", msg, cmd)
	}
	return buf.Bytes(), nil
}

// Decode parses payload as the message shape associated with cmd.
func Decode(cmd wire.Command, payload []byte) (interface{}, error) {
	r := bytes.NewReader(payload)
	switch cmd {
	case wire.CmdWhatsUpIgloo:
		v, err := wire.ReadUvarint16(r)
		return WhatsUpIgloo{MaxSupportedComponent: v}, err
	case wire.CmdDeviceCreated:
		name, err := getString(r)
		if err != nil {
			return nil, err
		}
		dev, err := getDeviceID(r)
		return DeviceCreated{RequestName: name, Device: dev}, err
	case wire.CmdCreateDevice:
		name, err := getString(r)
		return CreateDevice{Name: name}, err
	case wire.CmdRegisterEntity:
		dev, err := getDeviceID(r)
		if err != nil {
			return nil, err
		}
		name, err := getString(r)
		if err != nil {
			return nil, err
		}
		hint, err := wire.ReadUvarint32(r)
		return RegisterEntity{Device: dev, Name: name, IndexHint: hint}, err
	case wire.CmdWriteComponents:
		dev, err := getDeviceID(r)
		if err != nil {
			return nil, err
		}
		ent, err := wire.ReadUvarint32(r)
		if err != nil {
			return nil, err
		}
		comps, err := getComponents(r)
		return WriteComponents{Device: dev, Entity: tree.EntityIndex(ent), Components: comps}, err
	case wire.CmdDeviceRemoved:
		dev, err := getDeviceID(r)
		return DeviceRemoved{Device: dev}, err
	case wire.CmdLog:
		level, err := getString(r)
		if err != nil {
			return nil, err
		}
		msg, err := getString(r)
		return Log{Level: level, Message: msg}, err
	case wire.CmdCustomError:
		code, err := getString(r)
		if err != nil {
			return nil, err
		}
		msg, err := getString(r)
		return CustomError{Code: code, Message: msg}, err
	case wire.CmdInit:
		id, err := getString(r)
		return Init{ExtensionID: id}, err
	case wire.CmdReqComponentUpdates:
		dev, err := getDeviceID(r)
		return ReqComponentUpdates{Device: dev}, err
	case wire.CmdCustom:
		name, err := getString(r)
		if err != nil {
			return nil, err
		}
		payload, err := getBytes(r)
		return Custom{Name: name, Payload: payload}, err
	case wire.CmdSetComponents:
		dev, err := getDeviceID(r)
		if err != nil {
			return nil, err
		}
		ent, err := wire.ReadUvarint32(r)
		if err != nil {
			return nil, err
		}
		comps, err := getComponents(r)
		return SetComponents{Device: dev, Entity: tree.EntityIndex(ent), Components: comps}, err
	default:
		return nil, &wire.UnknownCommandError{ID: uint16(cmd)}
	}
}
