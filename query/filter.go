package query

import (
	"igloo/component"
	"igloo/tree"
)

// entityView is the minimal set of facts a Filter needs about one
// candidate entity: its name (for the glob combinator) and a presence
// check (for With/Without).
type entityView struct {
	name string
	has  func(component.TypeID) bool
}

// Filter is spec.md §4.4's composable boolean filter tree: {With(type),
// Without(type), And, Or, glob-over-entity-id}.
type Filter interface {
	matches(ctx *Context, e entityView) (bool, error)
}

// With matches entities carrying a component of the given type.
func With(id component.TypeID) Filter { return withFilter{id} }

// Without matches entities lacking a component of the given type.
func Without(id component.TypeID) Filter { return withoutFilter{id} }

// And matches entities satisfying every sub-filter.
func And(fs ...Filter) Filter { return andFilter{fs} }

// Or matches entities satisfying any sub-filter.
func Or(fs ...Filter) Filter { return orFilter{fs} }

// Glob matches entities whose name matches the given glob pattern
// (compiled through the Context's cache).
func Glob(pattern string) Filter { return globFilter{pattern} }

type withFilter struct{ id component.TypeID }

func (f withFilter) matches(_ *Context, e entityView) (bool, error) { return e.has(f.id), nil }

type withoutFilter struct{ id component.TypeID }

func (f withoutFilter) matches(_ *Context, e entityView) (bool, error) { return !e.has(f.id), nil }

type andFilter struct{ subs []Filter }

func (f andFilter) matches(ctx *Context, e entityView) (bool, error) {
	for _, s := range f.subs {
		ok, err := s.matches(ctx, e)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

type orFilter struct{ subs []Filter }

func (f orFilter) matches(ctx *Context, e entityView) (bool, error) {
	for _, s := range f.subs {
		ok, err := s.matches(ctx, e)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

type globFilter struct{ pattern string }

func (f globFilter) matches(ctx *Context, e entityView) (bool, error) {
	g, err := ctx.Compile(f.pattern)
	if err != nil {
		return false, err
	}
	return g.Match(e.name), nil
}

// MatchEntity evaluates f against one tree entity.
func MatchEntity(ctx *Context, f Filter, name string, ent *tree.Entity) (bool, error) {
	if f == nil {
		return true, nil
	}
	return f.matches(ctx, entityView{name: name, has: ent.Has})
}

// IDFilterKind discriminates IDFilter's variants.
type IDFilterKind int

// Kinds recognized by IDFilter.
const (
	IDFilterAny IDFilterKind = iota
	IDFilterIs
	IDFilterOneOf
)

// IDFilter restricts a scan to a specific id, one of a set of ids, or
// leaves it unrestricted (spec.md §4.4's IDFilter<T>{Is, OneOf, Any}).
type IDFilter[T comparable] struct {
	Kind   IDFilterKind
	Value  T
	Values map[T]bool
}

// Is restricts to exactly one id.
func Is[T comparable](v T) IDFilter[T] { return IDFilter[T]{Kind: IDFilterIs, Value: v} }

// OneOf restricts to any of the given ids.
func OneOf[T comparable](vs ...T) IDFilter[T] {
	set := make(map[T]bool, len(vs))
	for _, v := range vs {
		set[v] = true
	}
	return IDFilter[T]{Kind: IDFilterOneOf, Values: set}
}

// AnyID leaves the scan unrestricted.
func AnyID[T comparable]() IDFilter[T] { return IDFilter[T]{Kind: IDFilterAny} }

// Match reports whether v satisfies the IDFilter.
func (f IDFilter[T]) Match(v T) bool {
	switch f.Kind {
	case IDFilterIs:
		return v == f.Value
	case IDFilterOneOf:
		return f.Values[v]
	default:
		return true
	}
}

// DeviceFilter extends Filter with device-level bounds: owner, group
// membership, entity-count range, and last-update range (spec.md §4.4).
type DeviceFilter struct {
	Entity Filter // applied to at least one entity on the device, if set

	Owner  IDFilter[tree.ExtensionIndex]
	Groups IDFilter[tree.GroupID]

	MinEntities, MaxEntities int // MaxEntities == 0 means unbounded
	UpdatedAfter, UpdatedBefore *int64 // unix nanos; nil means unbounded
}

// Matches reports whether dev satisfies every bound in f.
func (f DeviceFilter) Matches(ctx *Context, dev *tree.Device) (bool, error) {
	if !f.Owner.Match(dev.OwnerIndex) {
		return false, nil
	}
	if f.Groups.Kind != IDFilterAny {
		matched := false
		for gid := range dev.Groups() {
			if f.Groups.Match(gid) {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}

	count := dev.EntityCount()
	if count < f.MinEntities {
		return false, nil
	}
	if f.MaxEntities > 0 && count > f.MaxEntities {
		return false, nil
	}

	if f.UpdatedAfter != nil && dev.LastUpdate.UnixNano() < *f.UpdatedAfter {
		return false, nil
	}
	if f.UpdatedBefore != nil && dev.LastUpdate.UnixNano() > *f.UpdatedBefore {
		return false, nil
	}

	if f.Entity != nil {
		any := false
		var matchErr error
		dev.Entities(func(_ tree.EntityIndex, e *tree.Entity) bool {
			ok, err := MatchEntity(ctx, f.Entity, e.Name, e)
			if err != nil {
				matchErr = err
				return false
			}
			if ok {
				any = true
				return false
			}
			return true
		})
		if matchErr != nil {
			return false, matchErr
		}
		if !any {
			return false, nil
		}
	}
	return true, nil
}
