package tree

import (
	"sync"
	"time"

	"igloo/component"
)

// extState is the live value stored in the Extensions slot table.
type extState struct {
	id        ExtensionID
	connected bool
	devices   map[uint32]bool // device slot indices owned by this extension
}

// Device is a named member of an extension: an owner, an ordered set of
// entities addressed by EntityIndex, its group memberships, and the
// per-device component type -> entity reverse index spec.md §3 requires.
type Device struct {
	Name       string
	Owner      ExtensionID
	OwnerIndex ExtensionIndex
	Connected  bool

	entities     []*Entity // nil entries are free/removed slots
	entityByName map[string]EntityIndex
	compToEntity map[component.TypeID][]EntityIndex
	groups       map[GroupID]bool

	// LastUpdate is the wall-clock time of the most recent entity or
	// component write, used by query.DeviceFilter's last-update bounds.
	LastUpdate time.Time
}

// EntityCount returns the number of live entities (used by the query
// engine's DeviceFilter entity-count bound).
func (d *Device) EntityCount() int {
	n := 0
	for _, e := range d.entities {
		if e != nil {
			n++
		}
	}
	return n
}

// Entity returns the entity at idx, if live.
func (d *Device) Entity(idx EntityIndex) (*Entity, bool) {
	if int(idx) >= len(d.entities) {
		return nil, false
	}
	e := d.entities[idx]
	return e, e != nil
}

// Entities calls fn for every live entity in index order.
func (d *Device) Entities(fn func(EntityIndex, *Entity) bool) {
	for i, e := range d.entities {
		if e == nil {
			continue
		}
		if !fn(EntityIndex(i), e) {
			return
		}
	}
}

// EntityByName looks up an entity by its registered name.
func (d *Device) EntityByName(name string) (EntityIndex, bool) {
	idx, ok := d.entityByName[name]
	return idx, ok
}

// ComponentIndex returns the entity indices currently carrying the given
// component type, per the device's comp_to_entity reverse index.
func (d *Device) ComponentIndex(id component.TypeID) []EntityIndex {
	return d.compToEntity[id]
}

// Groups returns the set of groups this device belongs to.
func (d *Device) Groups() map[GroupID]bool { return d.groups }

// Group is a persistent, user-authored named collection of devices.
type Group struct {
	Name    string
	Devices map[DeviceID]bool
}

// Tree is the single-writer device tree. Every method is called from the
// one core task that owns it; Tree itself only takes its mutex so that a
// concurrent read path (e.g. a diagnostics dump) can safely observe a
// consistent snapshot without serializing through the core task's mailbox.
type Tree struct {
	mu sync.Mutex

	extensions slots[extState]
	devices    slots[Device]
	groups     slots[Group]

	extensionByID map[ExtensionID]uint32 // slot index, for reconnect idempotency
}

// New returns an empty device tree.
func New() *Tree {
	return &Tree{extensionByID: make(map[ExtensionID]uint32)}
}

// RegisterExtension records a new or returning extension session. A second
// registration of the same ExtensionID reuses its existing slot (the
// persistent devices/entities it owns are untouched) but bumps the slot's
// generation, per spec.md:176 Scenario S4 ("reconnect with the same
// ExtensionID restores ExtensionIndex generation = previous+1") — a stale
// ExtensionIndex held by the crashed session must fail cleanly rather than
// silently keep addressing the reconnected extension. Every device the
// extension owns has its OwnerIndex refreshed to the bumped index so
// RemoveDevice's owner lookup and query.DeviceFilter.Owner matches keep
// working for devices created before the reconnect.
func (t *Tree) RegisterExtension(id ExtensionID) (ExtensionIndex, []TreeMutation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slotIdx, ok := t.extensionByID[id]; ok {
		cell := &t.extensions.items[slotIdx]
		cell.generation++
		cell.value.connected = true
		idx := ExtensionIndex{Index: slotIdx, Generation: cell.generation}

		for devIdx := range cell.value.devices {
			if dev, ok := t.devices.getMut(devIdx, t.devices.items[devIdx].generation); ok {
				dev.OwnerIndex = idx
			}
		}
		return idx, []TreeMutation{{Kind: MutationExtensionConnected, Extension: idx}}
	}

	index, gen := t.extensions.insert(extState{id: id, connected: true, devices: make(map[uint32]bool)})
	t.extensionByID[id] = index
	idx := ExtensionIndex{Index: index, Generation: gen}
	return idx, []TreeMutation{{Kind: MutationExtensionConnected, Extension: idx}}
}

// DisconnectExtension marks every device owned by the extension as
// disconnected without removing it from the tree (spec.md §4.3, §3
// lifecycle: "tree entries belonging to a crashed extension are marked
// unreachable but retain their persistent ids for reconnect").
func (t *Tree) DisconnectExtension(idx ExtensionIndex) ([]TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.extensions.getMut(idx.Index, idx.Generation)
	if !ok {
		return nil, ErrUnknownExtension
	}
	state.connected = false

	muts := []TreeMutation{{Kind: MutationExtensionDisconnected, Extension: idx}}
	for devIdx := range state.devices {
		gen := t.devices.items[devIdx].generation
		if dev, ok := t.devices.getMut(devIdx, gen); ok {
			dev.Connected = false
		}
	}
	return muts, nil
}

// CreateDevice allocates (or, on a name collision under the same extension,
// returns) a device slot owned by idx.
func (t *Tree) CreateDevice(idx ExtensionIndex, name string) (DeviceID, []TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.extensions.getMut(idx.Index, idx.Generation)
	if !ok {
		return DeviceID{}, nil, ErrUnknownExtension
	}

	for devIdx := range state.devices {
		dev, _ := t.devices.get(devIdx, t.devices.items[devIdx].generation)
		if dev.Name == name {
			gen := t.devices.items[devIdx].generation
			return DeviceID{Index: devIdx, Generation: gen}, nil, nil
		}
	}

	dev := Device{
		Name:         name,
		OwnerIndex:   idx,
		Connected:    true,
		entityByName: make(map[string]EntityIndex),
		compToEntity: make(map[component.TypeID][]EntityIndex),
		groups:       make(map[GroupID]bool),
		LastUpdate:   time.Now(),
	}
	if extByID, ok2 := t.extensionByIDReverse(idx.Index); ok2 {
		dev.Owner = extByID
	}

	index, gen := t.devices.insert(dev)
	state.devices[index] = true

	id := DeviceID{Index: index, Generation: gen}
	return id, []TreeMutation{{Kind: MutationDeviceAdded, Device: id, Extension: idx}}, nil
}

func (t *Tree) extensionByIDReverse(slotIdx uint32) (ExtensionID, bool) {
	state, ok := t.extensions.get(slotIdx, t.extensions.items[slotIdx].generation)
	if !ok {
		return "", false
	}
	return state.id, true
}

// RemoveDevice deletes a device and its entities entirely, dropping it from
// any groups it belonged to. Unlike disconnection, this is a permanent
// removal (used for an extension's explicit DeviceRemoved command).
func (t *Tree) RemoveDevice(id DeviceID) ([]TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dev, ok := t.devices.get(id.Index, id.Generation)
	if !ok {
		return nil, ErrUnknownDevice
	}

	for gid := range dev.groups {
		if g, ok := t.groups.getMut(gid.Index, gid.Generation); ok {
			delete(g.Devices, id)
		}
	}
	if state, ok := t.extensions.getMut(dev.OwnerIndex.Index, dev.OwnerIndex.Generation); ok {
		delete(state.devices, id.Index)
	}

	t.devices.remove(id.Index, id.Generation)
	return []TreeMutation{{Kind: MutationDeviceRemoved, Device: id}}, nil
}

// RegisterEntity adds a named entity to a device at indexHint. The hint
// must be unique per device (spec.md §4.3); re-registering the same index
// with the same name is accepted as a no-op-mutation reconnect.
func (t *Tree) RegisterEntity(id DeviceID, name string, indexHint EntityIndex) ([]TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dev, ok := t.devices.getMut(id.Index, id.Generation)
	if !ok {
		return nil, ErrUnknownDevice
	}

	if int(indexHint) < len(dev.entities) && dev.entities[indexHint] != nil {
		existing := dev.entities[indexHint]
		if existing.Name == name {
			return nil, nil
		}
		return nil, ErrDuplicateEntity
	}

	for int(indexHint) >= len(dev.entities) {
		dev.entities = append(dev.entities, nil)
	}
	dev.entities[indexHint] = newEntity(name)
	dev.entityByName[name] = indexHint
	dev.LastUpdate = time.Now()

	return []TreeMutation{{Kind: MutationEntityAdded, Device: id, Entity: indexHint}}, nil
}

// WriteComponents performs an atomic batch of component writes to one
// entity. Per spec.md §4.3, if any component in the batch is malformed
// (unknown type, entity missing) the whole call is a no-op: nothing is
// applied and no mutation is emitted.
func (t *Tree) WriteComponents(id DeviceID, entityIdx EntityIndex, comps []component.Component) ([]TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dev, ok := t.devices.getMut(id.Index, id.Generation)
	if !ok {
		return nil, ErrUnknownDevice
	}
	entity, ok := dev.Entity(entityIdx)
	if !ok {
		return nil, ErrUnknownEntity
	}
	for _, c := range comps {
		if c == nil {
			return nil, ErrMalformedWrite
		}
		if c.TypeID() > component.MaxSupportedComponent {
			return nil, ErrMalformedWrite
		}
	}

	muts := make([]TreeMutation, 0, len(comps))
	for _, c := range comps {
		prevPresent := entity.set(c)
		typeID := c.TypeID()
		if !prevPresent {
			dev.compToEntity[typeID] = appendUnique(dev.compToEntity[typeID], entityIdx)
		}
		muts = append(muts, TreeMutation{
			Kind:        MutationComponentSet,
			Device:      id,
			Entity:      entityIdx,
			TypeID:      typeID,
			PrevPresent: prevPresent,
		})
	}
	dev.LastUpdate = time.Now()
	return muts, nil
}

func appendUnique(s []EntityIndex, v EntityIndex) []EntityIndex {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

// RemoveComponent deletes a component type off an entity, fixing up the
// device's reverse index.
func (t *Tree) RemoveComponent(id DeviceID, entityIdx EntityIndex, typeID component.TypeID) ([]TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dev, ok := t.devices.getMut(id.Index, id.Generation)
	if !ok {
		return nil, ErrUnknownDevice
	}
	entity, ok := dev.Entity(entityIdx)
	if !ok {
		return nil, ErrUnknownEntity
	}
	if !entity.remove(typeID) {
		return nil, nil
	}
	dev.compToEntity[typeID] = removeEntity(dev.compToEntity[typeID], entityIdx)
	dev.LastUpdate = time.Now()

	return []TreeMutation{{Kind: MutationComponentRemoved, Device: id, Entity: entityIdx, TypeID: typeID}}, nil
}

func removeEntity(s []EntityIndex, v EntityIndex) []EntityIndex {
	out := s[:0]
	for _, existing := range s {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}

// CreateGroup allocates a new, empty, user-authored group.
func (t *Tree) CreateGroup(name string) (GroupID, []TreeMutation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	index, gen := t.groups.insert(Group{Name: name, Devices: make(map[DeviceID]bool)})
	id := GroupID{Index: index, Generation: gen}
	return id, []TreeMutation{{Kind: MutationGroupAdded, Group: id}}
}

// AddDeviceToGroup adds a device to a group, invariant-checked both ways
// (spec.md §3: "group's device set is a subset of existing devices").
func (t *Tree) AddDeviceToGroup(gid GroupID, did DeviceID) ([]TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups.getMut(gid.Index, gid.Generation)
	if !ok {
		return nil, ErrUnknownGroup
	}
	dev, ok := t.devices.getMut(did.Index, did.Generation)
	if !ok {
		return nil, ErrUnknownDevice
	}
	if g.Devices[did] {
		return nil, nil
	}
	g.Devices[did] = true
	dev.groups[gid] = true

	return []TreeMutation{{Kind: MutationGroupMembershipChanged, Group: gid, Device: did}}, nil
}

// RemoveDeviceFromGroup is AddDeviceToGroup's inverse.
func (t *Tree) RemoveDeviceFromGroup(gid GroupID, did DeviceID) ([]TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups.getMut(gid.Index, gid.Generation)
	if !ok {
		return nil, ErrUnknownGroup
	}
	if !g.Devices[did] {
		return nil, nil
	}
	delete(g.Devices, did)
	if dev, ok := t.devices.getMut(did.Index, did.Generation); ok {
		delete(dev.groups, gid)
	}

	return []TreeMutation{{Kind: MutationGroupMembershipChanged, Group: gid, Device: did}}, nil
}

// DeleteGroup removes a group entirely, clearing its membership back-links
// on every member device.
func (t *Tree) DeleteGroup(gid GroupID) ([]TreeMutation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups.get(gid.Index, gid.Generation)
	if !ok {
		return nil, ErrUnknownGroup
	}
	for did := range g.Devices {
		if dev, ok := t.devices.getMut(did.Index, did.Generation); ok {
			delete(dev.groups, gid)
		}
	}
	t.groups.remove(gid.Index, gid.Generation)

	return []TreeMutation{{Kind: MutationGroupRemoved, Group: gid}}, nil
}

// Device returns a read-only view of a device, valid only for the calling
// task's current tick (spec.md §4.3's read-accessor contract).
func (t *Tree) Device(id DeviceID) (*Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.devices.get(id.Index, id.Generation)
}

// GroupByID returns a read-only view of a group.
func (t *Tree) GroupByID(id GroupID) (*Group, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.groups.get(id.Index, id.Generation)
}

// DevicesByExtension calls fn for every device owned by idx, in slot order.
func (t *Tree) DevicesByExtension(idx ExtensionIndex, fn func(DeviceID, *Device) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.extensions.get(idx.Index, idx.Generation)
	if !ok {
		return
	}
	for devIdx := range state.devices {
		gen := t.devices.items[devIdx].generation
		dev, ok := t.devices.get(devIdx, gen)
		if !ok {
			continue
		}
		if !fn(DeviceID{Index: devIdx, Generation: gen}, dev) {
			return
		}
	}
}

// AllDevices calls fn for every live device in slot (insertion) order, the
// default scan order the query engine uses absent an id-listing filter.
func (t *Tree) AllDevices(fn func(DeviceID, *Device) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.devices.all(func(index, gen uint32, dev *Device) bool {
		return fn(DeviceID{Index: index, Generation: gen}, dev)
	})
}

// AllGroups calls fn for every live group in slot order.
func (t *Tree) AllGroups(fn func(GroupID, *Group) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.groups.all(func(index, gen uint32, g *Group) bool {
		return fn(GroupID{Index: index, Generation: gen}, g)
	})
}
