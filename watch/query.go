// Package watch implements Igloo's long-lived subscription engine: clients
// register a WatchQuery, the engine re-evaluates it against every relevant
// TreeMutation, and emits WatchUpdates (spec.md §4.5).
package watch

import (
	"igloo/component"
	"igloo/query"
)

// WatcherID identifies one registered subscription. Ids are reused after
// Unregister; no generation check is needed because, per spec.md §4.5, a
// WatcherID never escapes the client session that created it.
type WatcherID uint32

// QueryKind discriminates WatchQuery's three variants.
type QueryKind int

// Kinds.
const (
	QueryMetadata QueryKind = iota
	QueryComponentAggregate
	QueryComponentValue
)

// WatchQuery is spec.md §4.5's closed set: Metadata (topology, unfiltered),
// ComponentAggregate(filter, type, op), or ComponentValue(filter, type).
type WatchQuery struct {
	Kind   QueryKind
	Filter query.DeviceFilter // unused for QueryMetadata

	TypeID component.TypeID       // unused for QueryMetadata
	Op     query.AggregateOp      // only for QueryComponentAggregate
}

// Metadata builds a topology watch query.
func Metadata() WatchQuery { return WatchQuery{Kind: QueryMetadata} }

// ComponentAggregateQuery builds an aggregate watch query over every entity
// matching f that carries a component of typeID.
func ComponentAggregateQuery(f query.DeviceFilter, typeID component.TypeID, op query.AggregateOp) WatchQuery {
	return WatchQuery{Kind: QueryComponentAggregate, Filter: f, TypeID: typeID, Op: op}
}

// ComponentValueQuery builds a per-entity value watch query.
func ComponentValueQuery(f query.DeviceFilter, typeID component.TypeID) WatchQuery {
	return WatchQuery{Kind: QueryComponentValue, Filter: f, TypeID: typeID}
}
