package component

import (
	"bytes"
	"testing"
	"time"

	"github.com/satori/uuid"
)

func roundTrip(t *testing.T, c Component) Component {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		t.Fatalf("Encode(%v): %v", c, err)
	}
	got, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode(%v): %v", c, err)
	}
	return got
}

func TestScalarRoundTrip(t *testing.T) {
	cases := []Component{
		Int(42),
		Float(3.14159),
		Long(-9000000000),
		Bool(true),
		Bool(false),
		Trigger{},
		Binary([]byte{1, 2, 3, 4}),
		Text("hello, igloo"),
		Duration{5 * time.Second},
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if b, ok := c.(Binary); ok {
			if gb, ok := got.(Binary); !ok || !bytes.Equal(gb, b) {
				t.Fatalf("round trip %#v => %#v", c, got)
			}
			continue
		}
		if got != c {
			t.Fatalf("round trip %#v => %#v", c, got)
		}
	}
}

func TestUuidRoundTrip(t *testing.T) {
	u := Uuid(uuid.NewV4())
	got := roundTrip(t, u)
	if got.(Uuid) != u {
		t.Fatalf("round trip %v => %v", u, got)
	}
}

func TestDomainStructRoundTrip(t *testing.T) {
	l := Light{On: true, Brightness: 200, ColorTempK: 2700}
	got := roundTrip(t, l).(Light)
	if got != l {
		t.Fatalf("round trip %+v => %+v", l, got)
	}

	cv := Cover{State: CoverOpening, Position: 55}
	gotCv := roundTrip(t, cv).(Cover)
	if gotCv != cv {
		t.Fatalf("round trip %+v => %+v", cv, gotCv)
	}
}

func TestListRoundTrip(t *testing.T) {
	list := List{Elem: Type{ID: TypeInt}, Items: []Component{Int(1), Int(2), Int(3)}}
	got := roundTrip(t, list).(List)
	if len(got.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(got.Items))
	}
	for i, item := range got.Items {
		if item.(Int) != list.Items[i].(Int) {
			t.Fatalf("item %d = %v, want %v", i, item, list.Items[i])
		}
	}
}

func TestMixedListRoundTrip(t *testing.T) {
	ml := MixedList{Items: []Component{Int(7), Text("abc"), Bool(true)}}
	got := roundTrip(t, ml).(MixedList)
	if len(got.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(got.Items))
	}
	if got.Items[0].(Int) != 7 || got.Items[1].(Text) != "abc" || got.Items[2].(Bool) != true {
		t.Fatalf("got %+v", got.Items)
	}
}

func TestObjectRoundTrip(t *testing.T) {
	obj := Object{"level": Int(5), "label": Text("kitchen")}
	got := roundTrip(t, obj).(Object)
	if got["level"].(Int) != 5 || got["label"].(Text) != "kitchen" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeUnknownComponent(t *testing.T) {
	var buf bytes.Buffer
	// A type id one past MaxSupportedComponent.
	buf.Write([]byte{byte(MaxSupportedComponent) + 1, 0})
	_, err := Decode(bytes.NewReader(buf.Bytes()))
	uerr, ok := err.(*ErrUnknownComponent)
	if !ok {
		t.Fatalf("got %v (%T), want *ErrUnknownComponent", err, err)
	}
	if uerr.ID != MaxSupportedComponent+1 {
		t.Fatalf("got id %d, want %d", uerr.ID, MaxSupportedComponent+1)
	}
}
