package persist

import (
	"encoding/json"
	"path/filepath"
	"sort"

	"igloo/tree"
)

// StateVersion is the current state.json schema version this build writes
// and the target LoadState migrates old files up to.
const StateVersion uint32 = 1

const stateFilename = "state.json"

// stateMigrations is empty: StateVersion 1 is this schema's genesis, the
// same reason ap.configd's upgrade chain starts at upgrade_v2.go with no
// upgrade_v1.go -- there is nothing before version 1 to migrate from.
var stateMigrations = map[uint32]MigrationFunc{}

// StoredState is state.json's shape: the device tree's durable topology.
// Live entity and component data is never persisted here -- it is rebuilt
// each time an extension reconnects and re-registers its devices and
// entities (spec.md §4.3's reconnect contract), so only the facts that
// *can't* be reconstructed that way -- which extensions are known, and
// which devices a user has grouped together -- need to survive a restart.
type StoredState struct {
	Version uint32 `json:"version"`

	// Extensions lists, sorted, the IDs of the extensions that own at least
	// one device in the tree when the snapshot is taken. Restore does not
	// read it.
	Extensions []string `json:"extensions,omitempty"`

	Groups []StoredGroup `json:"groups,omitempty"`
}

// StoredGroup is one user-authored group. Membership is recorded by each
// device's persistent (extension, name) pair rather than its DeviceID,
// which is only stable for the lifetime of one hub process.
type StoredGroup struct {
	Name    string      `json:"name"`
	Devices []DeviceRef `json:"devices,omitempty"`
}

// DeviceRef names a device by the identity that survives a restart: the
// extension that owns it, plus the name that extension registered it
// under.
type DeviceRef struct {
	Extension string `json:"extension"`
	Device    string `json:"device"`
}

// Snapshot captures t's current topology. Must be called from the core
// task: Tree's own methods take its mutex, but spec.md §5 forbids any
// non-core goroutine from reading the tree at all, mutex or not.
func Snapshot(t *tree.Tree) *StoredState {
	refs := make(map[tree.DeviceID]DeviceRef)
	seenExt := make(map[string]bool)
	var extensions []string

	t.AllDevices(func(id tree.DeviceID, dev *tree.Device) bool {
		refs[id] = DeviceRef{Extension: string(dev.Owner), Device: dev.Name}
		if dev.Owner != "" && !seenExt[string(dev.Owner)] {
			seenExt[string(dev.Owner)] = true
			extensions = append(extensions, string(dev.Owner))
		}
		return true
	})
	sort.Strings(extensions)

	var groups []StoredGroup
	t.AllGroups(func(_ tree.GroupID, g *tree.Group) bool {
		sg := StoredGroup{Name: g.Name}
		for did := range g.Devices {
			if ref, ok := refs[did]; ok {
				sg.Devices = append(sg.Devices, ref)
			}
		}
		sort.Slice(sg.Devices, func(i, j int) bool {
			if sg.Devices[i].Extension != sg.Devices[j].Extension {
				return sg.Devices[i].Extension < sg.Devices[j].Extension
			}
			return sg.Devices[i].Device < sg.Devices[j].Device
		})
		groups = append(groups, sg)
		return true
	})
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	return &StoredState{Version: StateVersion, Extensions: extensions, Groups: groups}
}

// Pending is one stored group membership not yet reattached because its
// device hasn't reconnected (and been re-registered) since the hub
// restarted.
type Pending struct {
	Group  tree.GroupID
	Device DeviceRef
}

// Restore recreates every stored group (empty, since no devices exist in a
// freshly started tree yet) and returns the membership links still waiting
// on their device. The caller resolves each entry via ResolveDevice as
// extensions reconnect and re-register their devices.
func Restore(t *tree.Tree, s *StoredState) []Pending {
	if s == nil {
		return nil
	}
	var pending []Pending
	for _, sg := range s.Groups {
		gid, _ := t.CreateGroup(sg.Name)
		for _, ref := range sg.Devices {
			pending = append(pending, Pending{Group: gid, Device: ref})
		}
	}
	return pending
}

// ResolveDevice applies any pending membership waiting on (owner, name) now
// that did has been (re)created, returning the entries still unresolved.
func ResolveDevice(t *tree.Tree, pending []Pending, owner, name string, did tree.DeviceID) []Pending {
	out := pending[:0]
	for _, p := range pending {
		if p.Device.Extension == owner && p.Device.Device == name {
			t.AddDeviceToGroup(p.Group, did)
			continue
		}
		out = append(out, p)
	}
	return out
}

// LoadState reads state.json from dir, migrating it forward if needed.
// A missing file is not an error: it returns (nil, nil) so the caller can
// seed a blank tree.
func LoadState(dir string) (*StoredState, error) {
	path := filepath.Join(dir, stateFilename)
	if !FileExists(path) {
		return nil, nil
	}
	raw, err := LoadVersioned(path, StateVersion, stateMigrations)
	if err != nil {
		return nil, err
	}
	var s StoredState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveState writes s to state.json under dir, atomically.
func SaveState(dir string, s *StoredState) error {
	s.Version = StateVersion
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return SaveVersioned(filepath.Join(dir, stateFilename), payload)
}
