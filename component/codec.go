package component

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/satori/uuid"

	"igloo/wire"
)

// Encode renders c in Igloo's canonical binary form: a varu16 type tag
// followed by the variant's own fields in the fixed order declared below.
// Every variant round-trips byte-for-byte through Encode/Decode, per
// spec.md §4.1.
func Encode(buf *bytes.Buffer, c Component) error {
	buf.Write(wire.PutUvarint16(nil, uint16(c.TypeID())))
	return encodeBody(buf, c)
}

func encodeBody(buf *bytes.Buffer, c Component) error {
	switch v := c.(type) {
	case Int:
		return binary.Write(buf, binary.LittleEndian, int64(v))
	case Float:
		return binary.Write(buf, binary.LittleEndian, float64(v))
	case Long:
		return binary.Write(buf, binary.LittleEndian, int64(v))
	case Bool:
		b := byte(0)
		if v {
			b = 1
		}
		return buf.WriteByte(b)
	case Trigger:
		return nil
	case Uuid:
		_, err := buf.Write(v[:])
		return err
	case Binary:
		writeBytes(buf, v)
		return nil
	case Text:
		writeString(buf, string(v))
		return nil
	case Date:
		return binary.Write(buf, binary.LittleEndian, v.Unix())
	case Time:
		return binary.Write(buf, binary.LittleEndian, int64(v.Duration))
	case DateTime:
		return binary.Write(buf, binary.LittleEndian, v.UnixNano())
	case Duration:
		return binary.Write(buf, binary.LittleEndian, int64(v.Duration))
	case Light:
		b := byte(0)
		if v.On {
			b = 1
		}
		buf.WriteByte(b)
		buf.WriteByte(v.Brightness)
		return binary.Write(buf, binary.LittleEndian, v.ColorTempK)
	case Switch:
		b := byte(0)
		if v.On {
			b = 1
		}
		return buf.WriteByte(b)
	case Dimmer:
		return buf.WriteByte(byte(v))
	case Color:
		buf.WriteByte(v.R)
		buf.WriteByte(v.G)
		return buf.WriteByte(v.B)
	case Cover:
		buf.WriteByte(byte(v.State))
		return buf.WriteByte(v.Position)
	case Lock:
		return buf.WriteByte(byte(v.State))
	case Climate:
		buf.WriteByte(byte(v.Mode))
		binary.Write(buf, binary.LittleEndian, v.TargetC)
		return binary.Write(buf, binary.LittleEndian, v.CurrentC)
	case Alarm:
		return buf.WriteByte(byte(v.State))
	case Sensor:
		buf.WriteByte(byte(v.Class))
		binary.Write(buf, binary.LittleEndian, v.Value)
		writeString(buf, v.Unit)
		return nil
	case List:
		buf.Write(wire.PutUvarint32(nil, uint32(len(v.Items))))
		if len(v.Items) == 0 {
			buf.Write(wire.PutUvarint16(nil, uint16(v.Elem.ID)))
			return nil
		}
		buf.Write(wire.PutUvarint16(nil, uint16(v.Items[0].TypeID())))
		for _, item := range v.Items {
			if err := encodeBody(buf, item); err != nil {
				return err
			}
		}
		return nil
	case MixedList:
		buf.Write(wire.PutUvarint32(nil, uint32(len(v.Items))))
		for _, item := range v.Items {
			if err := Encode(buf, item); err != nil {
				return err
			}
		}
		return nil
	case Object:
		buf.Write(wire.PutUvarint32(nil, uint32(len(v))))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeString(buf, k)
			if err := Encode(buf, v[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("component: encode: unhandled variant %T", c)
	}
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	buf.Write(wire.PutUvarint32(nil, uint32(len(b))))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

// Decode reads one canonically-encoded component from r. Decoding an
// unknown type id returns *ErrUnknownComponent without consuming the rest
// of the stream's framing (the caller drops the session; the tree is never
// touched).
func Decode(r *bytes.Reader) (Component, error) {
	id, err := wire.ReadUvarint16(r)
	if err != nil {
		return nil, fmt.Errorf("component: reading type id: %w", err)
	}
	typeID := TypeID(id)
	if typeID > MaxSupportedComponent {
		return nil, &ErrUnknownComponent{ID: typeID}
	}
	return decodeBody(r, typeID)
}

func readUint8(r *bytes.Reader) (uint8, error) {
	return r.ReadByte()
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := wire.ReadUvarint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func decodeBody(r *bytes.Reader, typeID TypeID) (Component, error) {
	switch typeID {
	case TypeInt:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return Int(v), err
	case TypeFloat:
		var v float64
		err := binary.Read(r, binary.LittleEndian, &v)
		return Float(v), err
	case TypeLong:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return Long(v), err
	case TypeBool:
		b, err := r.ReadByte()
		return Bool(b != 0), err
	case TypeTrigger:
		return Trigger{}, nil
	case TypeUuid:
		var u uuid.UUID
		if _, err := io.ReadFull(r, u[:]); err != nil {
			return nil, err
		}
		return Uuid(u), nil
	case TypeBinary:
		b, err := readBytes(r)
		return Binary(b), err
	case TypeText:
		s, err := readString(r)
		return Text(s), err
	case TypeDate:
		var sec int64
		err := binary.Read(r, binary.LittleEndian, &sec)
		return Date{time.Unix(sec, 0).UTC()}, err
	case TypeTime:
		var ns int64
		err := binary.Read(r, binary.LittleEndian, &ns)
		return Time{time.Duration(ns)}, err
	case TypeDateTime:
		var ns int64
		err := binary.Read(r, binary.LittleEndian, &ns)
		return DateTime{time.Unix(0, ns).UTC()}, err
	case TypeDuration:
		var ns int64
		err := binary.Read(r, binary.LittleEndian, &ns)
		return Duration{time.Duration(ns)}, err
	case TypeLight:
		on, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		br, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		var ct uint16
		if err := binary.Read(r, binary.LittleEndian, &ct); err != nil {
			return nil, err
		}
		return Light{On: on != 0, Brightness: br, ColorTempK: ct}, nil
	case TypeSwitch:
		on, err := r.ReadByte()
		return Switch{On: on != 0}, err
	case TypeDimmer:
		b, err := r.ReadByte()
		return Dimmer(b), err
	case TypeColor:
		var c Color
		var err error
		if c.R, err = readUint8(r); err != nil {
			return nil, err
		}
		if c.G, err = readUint8(r); err != nil {
			return nil, err
		}
		if c.B, err = readUint8(r); err != nil {
			return nil, err
		}
		return c, nil
	case TypeCover:
		st, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		pos, err := r.ReadByte()
		return Cover{State: CoverState(st), Position: pos}, err
	case TypeLock:
		st, err := r.ReadByte()
		return Lock{State: LockState(st)}, err
	case TypeClimate:
		mode, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		var target, current float32
		if err := binary.Read(r, binary.LittleEndian, &target); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &current); err != nil {
			return nil, err
		}
		return Climate{Mode: ClimateMode(mode), TargetC: target, CurrentC: current}, nil
	case TypeAlarm:
		st, err := r.ReadByte()
		return Alarm{State: AlarmState(st)}, err
	case TypeSensor:
		class, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		var value float64
		if err := binary.Read(r, binary.LittleEndian, &value); err != nil {
			return nil, err
		}
		unit, err := readString(r)
		if err != nil {
			return nil, err
		}
		return Sensor{Class: SensorClass(class), Value: value, Unit: unit}, nil
	case TypeList:
		n, err := wire.ReadUvarint32(r)
		if err != nil {
			return nil, err
		}
		elemID, err := wire.ReadUvarint16(r)
		if err != nil {
			return nil, err
		}
		elem := Type{ID: TypeID(elemID)}
		items := make([]Component, 0, n)
		for i := uint32(0); i < n; i++ {
			c, err := decodeBody(r, elem.ID)
			if err != nil {
				return nil, err
			}
			items = append(items, c)
		}
		return List{Elem: elem, Items: items}, nil
	case TypeMixedList:
		n, err := wire.ReadUvarint32(r)
		if err != nil {
			return nil, err
		}
		items := make([]Component, 0, n)
		for i := uint32(0); i < n; i++ {
			c, err := Decode(r)
			if err != nil {
				return nil, err
			}
			items = append(items, c)
		}
		return MixedList{Items: items}, nil
	case TypeObject:
		n, err := wire.ReadUvarint32(r)
		if err != nil {
			return nil, err
		}
		obj := make(Object, n)
		for i := uint32(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return nil, err
			}
			v, err := Decode(r)
			if err != nil {
				return nil, err
			}
			obj[k] = v
		}
		return obj, nil
	default:
		return nil, &ErrUnknownComponent{ID: typeID}
	}
}
