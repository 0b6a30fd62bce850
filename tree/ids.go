// Package tree implements Igloo's device tree: the single-writer, in-memory
// store of extensions, devices, entities and groups that the core task owns
// exclusively (spec.md §3). All mutation happens through Tree's methods;
// every successful mutation emits one TreeMutation consumed by the watch
// engine.
package tree

import "fmt"

// ExtensionID is the persistent, extension-supplied name of a Floe
// ("hue-bridge", "esphome"). It survives reconnects.
type ExtensionID string

// ExtensionIndex is the ephemeral (slot, generation) pair identifying a live
// extension session. Reusing a slot after disconnect bumps the generation,
// so a stale ExtensionIndex held by a dropped session fails cleanly instead
// of silently addressing a different extension.
type ExtensionIndex struct {
	Index      uint32
	Generation uint32
}

func (e ExtensionIndex) String() string {
	return fmt.Sprintf("ext(%d.%d)", e.Index, e.Generation)
}

// DeviceID is the persistent 64-bit identifier of a device: a (slot,
// generation) pair, same stale-reference protection as ExtensionIndex.
type DeviceID struct {
	Index      uint32
	Generation uint32
}

func (d DeviceID) String() string {
	return fmt.Sprintf("dev(%d.%d)", d.Index, d.Generation)
}

// EntityIndex is a device-local, 0-based position. It is stable for the
// lifetime of the entity (entities are never compacted out from under a
// live index; a removed entity's slot is simply marked empty).
type EntityIndex uint32

// GroupID is the persistent identifier of a user-authored device group.
type GroupID struct {
	Index      uint32
	Generation uint32
}

func (g GroupID) String() string {
	return fmt.Sprintf("grp(%d.%d)", g.Index, g.Generation)
}

// slot is the generic generational-id storage cell shared by the
// Extensions, Devices and Groups tables: a slot is either empty (Live
// false, ready for reuse at the next generation) or holds a live value.
type slot[T any] struct {
	generation uint32
	live       bool
	value      T
}

// slots is a dense, reusable, generation-checked vector -- the Go analogue
// of a `slotmap` crate, sized to spec.md §3's (index:u32, generation:u32)
// id scheme. Freed slots are recycled via freeList to keep the vector
// compact under churn (extensions repeatedly reconnecting/disconnecting).
type slots[T any] struct {
	items    []slot[T]
	freeList []uint32
}

func (s *slots[T]) insert(v T) (index, generation uint32) {
	if n := len(s.freeList); n > 0 {
		index = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		cell := &s.items[index]
		cell.live = true
		cell.value = v
		return index, cell.generation
	}
	index = uint32(len(s.items))
	s.items = append(s.items, slot[T]{generation: 0, live: true, value: v})
	return index, 0
}

func (s *slots[T]) get(index, generation uint32) (T, bool) {
	var zero T
	if int(index) >= len(s.items) {
		return zero, false
	}
	cell := &s.items[index]
	if !cell.live || cell.generation != generation {
		return zero, false
	}
	return cell.value, true
}

func (s *slots[T]) getMut(index, generation uint32) (*T, bool) {
	if int(index) >= len(s.items) {
		return nil, false
	}
	cell := &s.items[index]
	if !cell.live || cell.generation != generation {
		return nil, false
	}
	return &cell.value, true
}

func (s *slots[T]) remove(index, generation uint32) bool {
	if int(index) >= len(s.items) {
		return false
	}
	cell := &s.items[index]
	if !cell.live || cell.generation != generation {
		return false
	}
	var zero T
	cell.live = false
	cell.value = zero
	cell.generation++
	s.freeList = append(s.freeList, index)
	return true
}

// all iterates live slots in storage (insertion) order.
func (s *slots[T]) all(fn func(index, generation uint32, v *T) bool) {
	for i := range s.items {
		cell := &s.items[i]
		if !cell.live {
			continue
		}
		if !fn(uint32(i), cell.generation, &cell.value) {
			return
		}
	}
}
