package tree

import (
	"testing"

	"igloo/component"
)

func TestRegisterExtensionReconnectBumpsGeneration(t *testing.T) {
	tr := New()
	idx1, muts := tr.RegisterExtension("hue-bridge")
	if len(muts) != 1 || muts[0].Kind != MutationExtensionConnected {
		t.Fatalf("got %+v", muts)
	}
	idx2, _ := tr.RegisterExtension("hue-bridge")
	if idx2.Index != idx1.Index {
		t.Fatalf("reconnect got a different slot: %v != %v", idx2.Index, idx1.Index)
	}
	if idx2.Generation != idx1.Generation+1 {
		t.Fatalf("reconnect did not bump generation: %v -> %v", idx1, idx2)
	}
}

func TestRegisterExtensionReconnectPreservesDeviceIDs(t *testing.T) {
	tr := New()
	ext1, _ := tr.RegisterExtension("hue-bridge")
	dev, _, err := tr.CreateDevice(ext1, "living-room-lamp")
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	if _, err := tr.DisconnectExtension(ext1); err != nil {
		t.Fatalf("DisconnectExtension: %v", err)
	}
	ext2, _ := tr.RegisterExtension("hue-bridge")
	if ext2.Generation != ext1.Generation+1 {
		t.Fatalf("reconnect did not bump generation: %v -> %v", ext1, ext2)
	}

	// The device created before the reconnect must still resolve under its
	// original DeviceID, and its owner must follow the bumped ExtensionIndex.
	got, ok := tr.Device(dev)
	if !ok {
		t.Fatalf("device %v not resolvable after reconnect", dev)
	}
	if got.OwnerIndex != ext2 {
		t.Fatalf("device owner not refreshed: got %v, want %v", got.OwnerIndex, ext2)
	}

	// A stale ExtensionIndex from before the reconnect must no longer
	// resolve the device's owning extension.
	var sawStaleDevice bool
	tr.DevicesByExtension(ext1, func(DeviceID, *Device) bool {
		sawStaleDevice = true
		return true
	})
	if sawStaleDevice {
		t.Fatalf("stale ExtensionIndex %v still addresses devices after reconnect", ext1)
	}

	// Re-registering the same device name after reconnect must return the
	// same persistent DeviceID, not allocate a new one.
	dev2, _, err := tr.CreateDevice(ext2, "living-room-lamp")
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if dev2 != dev {
		t.Fatalf("reconnect re-created device: %v != %v", dev2, dev)
	}
}

func TestCreateDeviceAndWriteComponents(t *testing.T) {
	tr := New()
	ext, _ := tr.RegisterExtension("hue-bridge")
	dev, muts, err := tr.CreateDevice(ext, "living-room-lamp")
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if len(muts) != 1 || muts[0].Kind != MutationDeviceAdded {
		t.Fatalf("got %+v", muts)
	}

	if _, err := tr.RegisterEntity(dev, "main", 0); err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}

	light := component.Light{On: true, Brightness: 128}
	muts, err = tr.WriteComponents(dev, 0, []component.Component{light})
	if err != nil {
		t.Fatalf("WriteComponents: %v", err)
	}
	if len(muts) != 1 || muts[0].Kind != MutationComponentSet || muts[0].PrevPresent {
		t.Fatalf("got %+v", muts)
	}

	// Overwriting the same type reports prevPresent=true.
	muts, err = tr.WriteComponents(dev, 0, []component.Component{component.Light{On: false}})
	if err != nil {
		t.Fatalf("WriteComponents (overwrite): %v", err)
	}
	if !muts[0].PrevPresent {
		t.Fatalf("expected prevPresent=true on overwrite, got %+v", muts[0])
	}

	d, ok := tr.Device(dev)
	if !ok {
		t.Fatal("device not found")
	}
	entity, ok := d.Entity(0)
	if !ok {
		t.Fatal("entity not found")
	}
	got, ok := entity.Get(component.TypeLight)
	if !ok {
		t.Fatal("component not found")
	}
	if got.(component.Light).On {
		t.Fatalf("expected On=false after overwrite, got %+v", got)
	}

	ids := d.ComponentIndex(component.TypeLight)
	if len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("comp-to-entity index = %v, want [0]", ids)
	}
}

func TestWriteComponentsRejectsUnknownDevice(t *testing.T) {
	tr := New()
	_, err := tr.WriteComponents(DeviceID{Index: 99}, 0, nil)
	if err != ErrUnknownDevice {
		t.Fatalf("got %v, want ErrUnknownDevice", err)
	}
}

func TestWriteComponentsAtomicRollback(t *testing.T) {
	tr := New()
	ext, _ := tr.RegisterExtension("hue-bridge")
	dev, _, _ := tr.CreateDevice(ext, "lamp")
	tr.RegisterEntity(dev, "main", 0)

	_, err := tr.WriteComponents(dev, 0, []component.Component{component.Int(1), nil})
	if err != ErrMalformedWrite {
		t.Fatalf("got %v, want ErrMalformedWrite", err)
	}

	d, _ := tr.Device(dev)
	entity, _ := d.Entity(0)
	if len(entity.Components) != 0 {
		t.Fatalf("batch should have been fully rolled back, got %+v", entity.Components)
	}
}

func TestRegisterEntityRejectsDuplicateIndex(t *testing.T) {
	tr := New()
	ext, _ := tr.RegisterExtension("ext")
	dev, _, _ := tr.CreateDevice(ext, "d")
	if _, err := tr.RegisterEntity(dev, "a", 0); err != nil {
		t.Fatalf("RegisterEntity a: %v", err)
	}
	if _, err := tr.RegisterEntity(dev, "b", 0); err != ErrDuplicateEntity {
		t.Fatalf("got %v, want ErrDuplicateEntity", err)
	}
}

func TestGroupMembership(t *testing.T) {
	tr := New()
	ext, _ := tr.RegisterExtension("ext")
	dev, _, _ := tr.CreateDevice(ext, "d")

	gid, _ := tr.CreateGroup("downstairs")
	if _, err := tr.AddDeviceToGroup(gid, dev); err != nil {
		t.Fatalf("AddDeviceToGroup: %v", err)
	}
	g, ok := tr.GroupByID(gid)
	if !ok || !g.Devices[dev] {
		t.Fatalf("device missing from group: %+v", g)
	}

	if _, err := tr.RemoveDeviceFromGroup(gid, dev); err != nil {
		t.Fatalf("RemoveDeviceFromGroup: %v", err)
	}
	g, _ = tr.GroupByID(gid)
	if g.Devices[dev] {
		t.Fatalf("device still in group after removal")
	}
}

func TestDisconnectExtensionMarksDevicesDisconnected(t *testing.T) {
	tr := New()
	ext, _ := tr.RegisterExtension("ext")
	dev, _, _ := tr.CreateDevice(ext, "d")

	if _, err := tr.DisconnectExtension(ext); err != nil {
		t.Fatalf("DisconnectExtension: %v", err)
	}
	d, _ := tr.Device(dev)
	if d.Connected {
		t.Fatal("device should be marked disconnected")
	}

	// Device and its entities remain addressable by id after disconnect.
	if _, ok := tr.Device(dev); !ok {
		t.Fatal("device should still exist after extension disconnect")
	}
}

func TestStaleReferenceFailsCleanly(t *testing.T) {
	tr := New()
	ext, _ := tr.RegisterExtension("ext")
	dev, _, _ := tr.CreateDevice(ext, "d")

	if _, err := tr.RemoveDevice(dev); err != nil {
		t.Fatalf("RemoveDevice: %v", err)
	}
	// Re-create a device; it should land in the same slot with a bumped
	// generation, and the old DeviceID must no longer resolve.
	dev2, _, _ := tr.CreateDevice(ext, "d2")
	if dev2.Index == dev.Index && dev2.Generation == dev.Generation {
		t.Fatalf("expected generation bump on slot reuse")
	}
	if _, ok := tr.Device(dev); ok {
		t.Fatal("stale DeviceID should not resolve")
	}
}
