package client

import (
	"crypto/md5"
	"encoding/hex"
	"sort"

	"igloo/tree"
)

// entitySnapshot renders one live tree entity for the wire. Component
// encode failures are a bug elsewhere (every value stored in the tree
// already passed WriteComponents' type-id validation) and are simply
// skipped rather than failing the whole snapshot.
func entitySnapshot(devID tree.DeviceID, idx tree.EntityIndex, e *tree.Entity) EntitySnapshot {
	out := EntitySnapshot{Device: devID, Entity: idx, Name: e.Name}
	for _, c := range e.Components {
		if w, err := componentToWire(c); err == nil {
			out.Components = append(out.Components, w)
		}
	}
	return out
}

// deviceSnapshot renders one live device, including every live entity.
func deviceSnapshot(id tree.DeviceID, dev *tree.Device) DeviceSnapshot {
	out := DeviceSnapshot{
		ID:        id,
		Name:      dev.Name,
		Owner:     dev.OwnerIndex,
		Connected: dev.Connected,
	}
	dev.Entities(func(idx tree.EntityIndex, e *tree.Entity) bool {
		out.Entities = append(out.Entities, entitySnapshot(id, idx, e))
		return true
	})
	return out
}

// buildGlobalSnapshot walks the whole tree and computes a content hash over
// the result, so a UI holding a cached snapshot can tell whether it's stale
// without the hub maintaining an incremental ancestor hash per node. Must be
// called from the core task (it reads t directly via AllDevices).
func buildGlobalSnapshot(t *tree.Tree) GlobalSnapshot {
	var devices []DeviceSnapshot
	t.AllDevices(func(id tree.DeviceID, dev *tree.Device) bool {
		devices = append(devices, deviceSnapshot(id, dev))
		return true
	})

	// Hash over a deterministic ordering (tree insertion order is already
	// stable; entity order within a device likewise) so the same topology
	// always yields the same hash regardless of map iteration elsewhere.
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].ID.Index != devices[j].ID.Index {
			return devices[i].ID.Index < devices[j].ID.Index
		}
		return devices[i].ID.Generation < devices[j].ID.Generation
	})

	h := md5.New()
	for _, d := range devices {
		h.Write([]byte(d.Name))
		for _, e := range d.Entities {
			h.Write([]byte(e.Name))
			for _, c := range e.Components {
				h.Write([]byte{byte(c.Type), byte(c.Type >> 8)})
				h.Write(c.Data)
			}
		}
	}

	return GlobalSnapshot{RootHash: hex.EncodeToString(h.Sum(nil)), Devices: devices}
}
