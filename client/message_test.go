package client

import (
	"encoding/json"
	"testing"

	"igloo/component"
)

func TestComponentWireRoundTrip(t *testing.T) {
	cases := []component.Component{
		component.Switch{On: true},
		component.Dimmer(255),
		component.Int(-42),
		component.Text("hello"),
	}
	for _, c := range cases {
		w, err := componentToWire(c)
		if err != nil {
			t.Fatalf("componentToWire(%v): %v", c, err)
		}
		got, err := componentFromWire(w)
		if err != nil {
			t.Fatalf("componentFromWire(%v): %v", w, err)
		}
		if got != c {
			t.Fatalf("got %+v, want %+v", got, c)
		}
	}
}

func TestFilterWireBuild(t *testing.T) {
	w := FilterWire{
		Kind: "and",
		Subs: []FilterWire{
			{Kind: "with", TypeID: component.TypeSwitch},
			{Kind: "glob", Pattern: "kitchen-*"},
		},
	}
	if _, err := w.build(); err != nil {
		t.Fatalf("build: %v", err)
	}
}

func TestFilterWireUnknownKind(t *testing.T) {
	if _, err := (FilterWire{Kind: "bogus"}).build(); err == nil {
		t.Fatal("expected error for unknown filter kind")
	}
}

func TestWatchQueryWireBuild(t *testing.T) {
	w := WatchQueryWire{Kind: "aggregate", TypeID: component.TypeSwitch, Op: "any"}
	if _, err := w.build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	bad := WatchQueryWire{Kind: "aggregate", TypeID: component.TypeSwitch, Op: "bogus"}
	if _, err := bad.build(); err == nil {
		t.Fatal("expected error for unknown op")
	}
}

func TestClientMessageJSONRoundTrip(t *testing.T) {
	msg := ClientMessage{
		Kind: ClientGetPageData,
		Page: &ClientPage{Name: "kitchen"},
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got ClientMessage
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != ClientGetPageData || got.Page == nil || got.Page.Name != "kitchen" {
		t.Fatalf("got %+v", got)
	}
}

func TestServerMessageJSONRoundTrip(t *testing.T) {
	msg := ServerMessage{Kind: ServerQueryResult, Query: &QueryResultWire{Matched: 3}}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got ServerMessage
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != ServerQueryResult || got.Query == nil || got.Query.Matched != 3 {
		t.Fatalf("got %+v", got)
	}
}
