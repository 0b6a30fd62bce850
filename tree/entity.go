package tree

import "igloo/component"

// absentIndex is the back-index sentinel meaning "this component type is
// not present on the entity" (spec.md §3's 0xFF sentinel).
const absentIndex = 0xFF

// Entity is a named, positioned member of a device: a dense component
// store plus a direct-indexed back-table from component type id to the
// component's position in that store. The back-index lets write_components
// and the query engine test "does entity E carry type T" in O(1) instead of
// scanning Components.
type Entity struct {
	Name string

	Components []component.Component
	indices    [component.MaxSupportedComponent + 1]uint8
}

func newEntity(name string) *Entity {
	e := &Entity{Name: name}
	for i := range e.indices {
		e.indices[i] = absentIndex
	}
	return e
}

// Get returns the component of the given type, if present.
func (e *Entity) Get(id component.TypeID) (component.Component, bool) {
	if int(id) >= len(e.indices) {
		return nil, false
	}
	pos := e.indices[id]
	if pos == absentIndex {
		return nil, false
	}
	return e.Components[pos], true
}

// Has reports whether the entity currently carries a component of the
// given type.
func (e *Entity) Has(id component.TypeID) bool {
	if int(id) >= len(e.indices) {
		return false
	}
	return e.indices[id] != absentIndex
}

// set writes c onto the entity, following spec.md §4.3's write_components
// rule: overwrite in place if the type is already present (reporting
// prevPresent=true), else append and record the new back-index entry
// (prevPresent=false).
func (e *Entity) set(c component.Component) (prevPresent bool) {
	id := c.TypeID()
	if e.Has(id) {
		e.Components[e.indices[id]] = c
		return true
	}
	e.Components = append(e.Components, c)
	e.indices[id] = uint8(len(e.Components) - 1)
	return false
}

// remove deletes the component of the given type, if present, compacting
// the dense store and fixing up every back-index entry whose position
// shifted.
func (e *Entity) remove(id component.TypeID) bool {
	if !e.Has(id) {
		return false
	}
	pos := e.indices[id]
	last := len(e.Components) - 1

	if int(pos) != last {
		moved := e.Components[last]
		e.Components[pos] = moved
		e.indices[moved.TypeID()] = pos
	}
	e.Components = e.Components[:last]
	e.indices[id] = absentIndex
	return true
}
