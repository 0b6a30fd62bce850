// Package client implements Igloo's UI-facing side: a dense ClientID table,
// per-client bounded mailboxes, and the WebSocket transport that carries
// ClientMessage/ServerMessage traffic between a browser-side dashboard and
// the hub's core task (spec.md §4.7/§6).
package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"igloo/component"
	"igloo/query"
	"igloo/tree"
	"igloo/watch"
	"igloo/wire"
)

// ClientMessageKind discriminates ClientMessage's variants (spec.md §4.7 and
// §6 describe slightly different sets; this is their union, since §6's
// Init/ExecSetQuery/GetPageData and §4.7's RegisterWatch/CancelWatch are both
// load-bearing on the wire contract).
type ClientMessageKind string

// Kinds a UI connection may send.
const (
	ClientInit          ClientMessageKind = "Init"
	ClientGetPageData   ClientMessageKind = "GetPageData"
	ClientExecSetQuery  ClientMessageKind = "ExecSetQuery"
	ClientRegisterWatch ClientMessageKind = "RegisterWatch"
	ClientCancelWatch   ClientMessageKind = "CancelWatch"
)

// ClientMessage is one inbound UI->hub message, JSON-encoded inside a UI
// frame (wire.EncodeUIFrame). Exactly one payload field is meaningful,
// selected by Kind.
type ClientMessage struct {
	Kind ClientMessageKind `json:"kind"`

	Page      *ClientPage    `json:"page,omitempty"`       // GetPageData
	SetQuery  *SetQueryWire  `json:"set_query,omitempty"`  // ExecSetQuery
	Watch     *WatchQueryWire `json:"watch,omitempty"`     // RegisterWatch
	WatcherID watch.WatcherID `json:"watcher_id,omitempty"` // CancelWatch
}

// ClientPage names a dashboard page a UI is requesting data for. The page
// layout itself (which devices belong to it, how they're arranged) is owned
// by the node-graph editor, an external collaborator per spec.md's
// Non-goals; the hub resolves only the device ids listed in Devices to
// their entities, and echoes Name back unchanged.
type ClientPage struct {
	Name    string            `json:"name"`
	Devices []tree.DeviceID   `json:"devices,omitempty"`
}

// ServerMessageKind discriminates ServerMessage's variants.
type ServerMessageKind string

// Kinds the hub may send.
const (
	ServerDashboards    ServerMessageKind = "Dashboards"
	ServerDashboard     ServerMessageKind = "Dashboard"
	ServerSnapshot      ServerMessageKind = "Snapshot"
	ServerElementUpdate ServerMessageKind = "ElementUpdate"
	ServerQueryResult   ServerMessageKind = "QueryResult"
	ServerWatchUpdate   ServerMessageKind = "WatchUpdate"
	ServerError         ServerMessageKind = "Error"
)

// ServerMessage is one outbound hub->UI message.
type ServerMessage struct {
	Kind ServerMessageKind `json:"kind"`

	Dashboards []string        `json:"dashboards,omitempty"`
	Dashboard  *DashboardData  `json:"dashboard,omitempty"`
	Snapshot   *GlobalSnapshot `json:"snapshot,omitempty"`
	Element    *ElementUpdate  `json:"element,omitempty"`
	Query      *QueryResultWire `json:"query_result,omitempty"`
	Watch      *WatchUpdateWire `json:"watch_update,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// DashboardData is the response to GetPageData: the requested page's name
// plus a snapshot of the entities it names, scoped to the devices it
// requested. Layout/arrangement is left to the external renderer.
type DashboardData struct {
	Page     string           `json:"page"`
	Entities []EntitySnapshot `json:"entities"`
}

// GlobalSnapshot is sent once, right after Init: the full set of devices and
// entities currently in the tree, plus a content hash so a client holding a
// cached copy can tell it's stale without a full re-walk (spec.md §3).
type GlobalSnapshot struct {
	RootHash string           `json:"root_hash"`
	Devices  []DeviceSnapshot `json:"devices"`
}

// DeviceSnapshot is one device's topology, for the UI's device list.
type DeviceSnapshot struct {
	ID        tree.DeviceID    `json:"id"`
	Name      string           `json:"name"`
	Owner     tree.ExtensionIndex `json:"owner"`
	Connected bool             `json:"connected"`
	Entities  []EntitySnapshot `json:"entities"`
}

// EntitySnapshot is one entity's current component values, wire-shaped for
// JSON (spec.md scenario S2's "EntitySnapshot with components [...]").
type EntitySnapshot struct {
	Device     tree.DeviceID   `json:"device"`
	Entity     tree.EntityIndex `json:"entity"`
	Name       string          `json:"name"`
	Components []ComponentWire `json:"components"`
}

// ElementUpdate carries one entity's new component value. It is part of the
// wire contract (spec.md §4.7 names the variant), but the hub never sends
// it: GetPageData answers with a one-shot Dashboard snapshot and does not
// subscribe the page's elements to later changes.
type ElementUpdate struct {
	Device    tree.DeviceID  `json:"device"`
	Entity    tree.EntityIndex `json:"entity"`
	Component ComponentWire  `json:"component"`
}

// QueryResultWire is ExecSetQuery's ack: how many entities were targeted, or
// an error string if the query engine rejected it (spec.md §7's
// QueryError -> QueryResult::Err).
type QueryResultWire struct {
	Matched int    `json:"matched"`
	Err     string `json:"err,omitempty"`
}

// WatchUpdateWire is the JSON shape of one watch.WatchUpdate.
type WatchUpdateWire struct {
	Watcher watch.WatcherID `json:"watcher"`
	Kind    string          `json:"kind"`

	Metadata *MetadataUpdateWire `json:"metadata,omitempty"`

	Device    tree.DeviceID    `json:"device,omitempty"`
	Entity    tree.EntityIndex `json:"entity,omitempty"`
	Value     *ComponentWire   `json:"value,omitempty"`
	Aggregate *AggregateWire   `json:"aggregate,omitempty"`
}

// MetadataUpdateWire is the JSON shape of watch.MetadataUpdate.
type MetadataUpdateWire struct {
	Mutation  string              `json:"mutation"`
	Extension tree.ExtensionIndex `json:"extension,omitempty"`
	Device    tree.DeviceID       `json:"device,omitempty"`
	Group     tree.GroupID        `json:"group,omitempty"`
}

// AggregateWire is the JSON shape of query.AggregateResult.
type AggregateWire struct {
	Number float64 `json:"number"`
	Bool   bool    `json:"bool"`
}

// toWatchUpdateWire renders one engine-side watch.WatchUpdate for the wire.
func toWatchUpdateWire(u watch.WatchUpdate) WatchUpdateWire {
	out := WatchUpdateWire{Watcher: u.Watcher, Device: u.Device, Entity: u.Entity}
	switch u.Kind {
	case watch.UpdateMetadata:
		out.Kind = "Metadata"
		out.Metadata = &MetadataUpdateWire{
			Mutation:  u.Metadata.Mutation.String(),
			Extension: u.Metadata.Extension,
			Device:    u.Metadata.Device,
			Group:     u.Metadata.Group,
		}
	case watch.UpdateComponentValue:
		out.Kind = "ComponentValue"
		if u.Value != nil {
			if w, err := componentToWire(u.Value); err == nil {
				out.Value = &w
			}
		}
	case watch.UpdateComponentAggregate:
		out.Kind = "ComponentAggregate"
		out.Aggregate = &AggregateWire{Number: u.Aggregate.Number, Bool: u.Aggregate.Bool}
	}
	return out
}

// ComponentWire is a component.Component rendered for JSON transport: the
// type id plus the value's own canonical binary encoding (component.Encode),
// reused as-is rather than hand-writing a second per-variant JSON mapping.
type ComponentWire struct {
	Type uint16 `json:"type"`
	Data []byte `json:"data"`
}

func componentToWire(c component.Component) (ComponentWire, error) {
	var buf bytes.Buffer
	// Body only; the type id is carried in the wrapper's own field rather
	// than duplicated inside Data.
	if err := encodeBody(&buf, c); err != nil {
		return ComponentWire{}, err
	}
	return ComponentWire{Type: uint16(c.TypeID()), Data: buf.Bytes()}, nil
}

func componentFromWire(w ComponentWire) (component.Component, error) {
	var full bytes.Buffer
	full.Write(wire.PutUvarint16(nil, w.Type))
	full.Write(w.Data)
	r := bytes.NewReader(full.Bytes())
	return component.Decode(r)
}

// encodeBody writes c's body (no type tag) using component.Encode, then
// trims the leading tag bytes off -- component.Encode always writes the
// same wire.PutUvarint16 tag this package can independently reproduce, so
// round-tripping through the public Encode function (rather than reaching
// into component's unexported encodeBody) keeps this package honest about
// only depending on component's exported surface.
func encodeBody(buf *bytes.Buffer, c component.Component) error {
	var full bytes.Buffer
	if err := component.Encode(&full, c); err != nil {
		return err
	}
	tag := wire.PutUvarint16(nil, uint16(c.TypeID()))
	if !bytes.HasPrefix(full.Bytes(), tag) {
		return fmt.Errorf("client: unexpected component tag encoding")
	}
	buf.Write(full.Bytes()[len(tag):])
	return nil
}

// FilterWire is a JSON-friendly encoding of query.Filter's composable tree:
// exactly one field is set, selected by Kind.
type FilterWire struct {
	Kind string `json:"kind"` // "with" | "without" | "and" | "or" | "glob"

	TypeID  component.TypeID `json:"type_id,omitempty"`
	Subs    []FilterWire     `json:"subs,omitempty"`
	Pattern string           `json:"pattern,omitempty"`
}

// build reconstructs a query.Filter from its wire form via query's exported
// combinators (query.With, query.Without, query.And, query.Or, query.Glob);
// the concrete filter types are unexported, so this is the only path in.
func (f FilterWire) build() (query.Filter, error) {
	switch f.Kind {
	case "with":
		return query.With(f.TypeID), nil
	case "without":
		return query.Without(f.TypeID), nil
	case "glob":
		return query.Glob(f.Pattern), nil
	case "and", "or":
		subs := make([]query.Filter, 0, len(f.Subs))
		for _, s := range f.Subs {
			sub, err := s.build()
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		if f.Kind == "and" {
			return query.And(subs...), nil
		}
		return query.Or(subs...), nil
	default:
		return nil, fmt.Errorf("client: unknown filter kind %q", f.Kind)
	}
}

// IDFilterWire is a JSON-friendly encoding of query.IDFilter[T].
type IDFilterWire[T comparable] struct {
	Kind   string `json:"kind"` // "any" | "is" | "one_of"
	Value  T      `json:"value,omitempty"`
	Values []T    `json:"values,omitempty"`
}

func (f IDFilterWire[T]) build() query.IDFilter[T] {
	switch f.Kind {
	case "is":
		return query.Is(f.Value)
	case "one_of":
		return query.OneOf(f.Values...)
	default:
		return query.AnyID[T]()
	}
}

// DeviceFilterWire is a JSON-friendly encoding of query.DeviceFilter.
type DeviceFilterWire struct {
	Entity *FilterWire `json:"entity,omitempty"`

	Owner  IDFilterWire[tree.ExtensionIndex] `json:"owner"`
	Groups IDFilterWire[tree.GroupID]        `json:"groups"`

	MinEntities   int    `json:"min_entities,omitempty"`
	MaxEntities   int    `json:"max_entities,omitempty"`
	UpdatedAfter  *int64 `json:"updated_after,omitempty"`
	UpdatedBefore *int64 `json:"updated_before,omitempty"`
}

func (f DeviceFilterWire) build() (query.DeviceFilter, error) {
	out := query.DeviceFilter{
		Owner:         f.Owner.build(),
		Groups:        f.Groups.build(),
		MinEntities:   f.MinEntities,
		MaxEntities:   f.MaxEntities,
		UpdatedAfter:  f.UpdatedAfter,
		UpdatedBefore: f.UpdatedBefore,
	}
	if f.Entity != nil {
		sub, err := f.Entity.build()
		if err != nil {
			return query.DeviceFilter{}, err
		}
		out.Entity = sub
	}
	return out, nil
}

// SetQueryWire is a JSON-friendly encoding of query.SetQuery.
type SetQueryWire struct {
	DeviceFilter DeviceFilterWire `json:"device_filter"`
	EntityFilter *FilterWire      `json:"entity_filter,omitempty"`
	Components   []ComponentWire  `json:"components"`
}

func (q SetQueryWire) build() (query.SetQuery, error) {
	df, err := q.DeviceFilter.build()
	if err != nil {
		return query.SetQuery{}, err
	}
	out := query.SetQuery{DeviceFilter: df}
	if q.EntityFilter != nil {
		ef, err := q.EntityFilter.build()
		if err != nil {
			return query.SetQuery{}, err
		}
		out.EntityFilter = ef
	}
	for _, cw := range q.Components {
		c, err := componentFromWire(cw)
		if err != nil {
			return query.SetQuery{}, err
		}
		out.Components = append(out.Components, c)
	}
	return out, nil
}

// WatchQueryWire is a JSON-friendly encoding of watch.WatchQuery.
type WatchQueryWire struct {
	Kind   string           `json:"kind"` // "metadata" | "aggregate" | "value"
	Filter DeviceFilterWire `json:"filter"`
	TypeID component.TypeID `json:"type_id,omitempty"`
	Op     string           `json:"op,omitempty"` // "sum"|"mean"|"max"|"min"|"any"|"all"
}

func parseAggOp(s string) (query.AggregateOp, error) {
	switch s {
	case "sum":
		return query.AggSum, nil
	case "mean":
		return query.AggMean, nil
	case "max":
		return query.AggMax, nil
	case "min":
		return query.AggMin, nil
	case "any":
		return query.AggAny, nil
	case "all":
		return query.AggAll, nil
	default:
		return 0, fmt.Errorf("client: unknown aggregate op %q", s)
	}
}

func (q WatchQueryWire) build() (watch.WatchQuery, error) {
	switch q.Kind {
	case "metadata":
		return watch.Metadata(), nil
	case "aggregate":
		df, err := q.Filter.build()
		if err != nil {
			return watch.WatchQuery{}, err
		}
		op, err := parseAggOp(q.Op)
		if err != nil {
			return watch.WatchQuery{}, err
		}
		return watch.ComponentAggregateQuery(df, q.TypeID, op), nil
	case "value":
		df, err := q.Filter.build()
		if err != nil {
			return watch.WatchQuery{}, err
		}
		return watch.ComponentValueQuery(df, q.TypeID), nil
	default:
		return watch.WatchQuery{}, fmt.Errorf("client: unknown watch query kind %q", q.Kind)
	}
}

// encodeMessage renders msg (a ClientMessage or ServerMessage) as JSON.
func encodeMessage(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}
