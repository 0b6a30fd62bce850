package query

import (
	"testing"
	"time"

	"igloo/component"
	"igloo/tree"
)

func setupTree(t *testing.T) (*tree.Tree, tree.ExtensionIndex, tree.DeviceID) {
	t.Helper()
	tr := tree.New()
	ext, _ := tr.RegisterExtension("hue-bridge")
	dev, _, err := tr.CreateDevice(ext, "kitchen-lamp")
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if _, err := tr.RegisterEntity(dev, "main", 0); err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}
	if _, err := tr.WriteComponents(dev, 0, []component.Component{component.Light{On: true}}); err != nil {
		t.Fatalf("WriteComponents: %v", err)
	}
	return tr, ext, dev
}

func TestWithFilterMatchesPresence(t *testing.T) {
	tr, _, dev := setupTree(t)
	ctx := NewContext(time.Now())

	d, _ := tr.Device(dev)
	ent, _ := d.Entity(0)

	ok, err := MatchEntity(ctx, With(component.TypeLight), ent.Name, ent)
	if err != nil || !ok {
		t.Fatalf("expected With(Light) to match, got ok=%v err=%v", ok, err)
	}
	ok, err = MatchEntity(ctx, Without(component.TypeLight), ent.Name, ent)
	if err != nil || ok {
		t.Fatalf("expected Without(Light) to not match, got ok=%v err=%v", ok, err)
	}
}

func TestGlobFilterMatchesEntityName(t *testing.T) {
	tr, _, dev := setupTree(t)
	ctx := NewContext(time.Now())
	d, _ := tr.Device(dev)
	ent, _ := d.Entity(0)

	ok, err := MatchEntity(ctx, Glob("ma*"), ent.Name, ent)
	if err != nil || !ok {
		t.Fatalf("expected glob ma* to match %q", ent.Name)
	}
	ok, err = MatchEntity(ctx, Glob("zz*"), ent.Name, ent)
	if err != nil || ok {
		t.Fatalf("expected glob zz* to not match %q", ent.Name)
	}
}

func TestDeviceFilterEntityCountBounds(t *testing.T) {
	tr, _, dev := setupTree(t)
	ctx := NewContext(time.Now())
	d, _ := tr.Device(dev)

	f := DeviceFilter{MinEntities: 1, MaxEntities: 1}
	ok, err := f.Matches(ctx, d)
	if err != nil || !ok {
		t.Fatalf("expected device to satisfy entity count bounds, ok=%v err=%v", ok, err)
	}

	f2 := DeviceFilter{MinEntities: 2}
	ok, err = f2.Matches(ctx, d)
	if err != nil || ok {
		t.Fatalf("expected device to fail min-entities=2, ok=%v err=%v", ok, err)
	}
}

func TestDeviceFilterOwner(t *testing.T) {
	tr, ext, dev := setupTree(t)
	ctx := NewContext(time.Now())
	d, _ := tr.Device(dev)

	f := DeviceFilter{Owner: Is(ext)}
	ok, err := f.Matches(ctx, d)
	if err != nil || !ok {
		t.Fatalf("expected owner match, ok=%v err=%v", ok, err)
	}

	other := tree.ExtensionIndex{Index: 99}
	f2 := DeviceFilter{Owner: Is(other)}
	ok, err = f2.Matches(ctx, d)
	if err != nil || ok {
		t.Fatalf("expected owner mismatch, ok=%v err=%v", ok, err)
	}
}

func TestAndOrFilterCombinators(t *testing.T) {
	tr, _, dev := setupTree(t)
	ctx := NewContext(time.Now())
	d, _ := tr.Device(dev)
	ent, _ := d.Entity(0)

	and := And(With(component.TypeLight), Glob("ma*"))
	ok, err := MatchEntity(ctx, and, ent.Name, ent)
	if err != nil || !ok {
		t.Fatalf("expected And to match, ok=%v err=%v", ok, err)
	}

	or := Or(Without(component.TypeLight), Glob("ma*"))
	ok, err = MatchEntity(ctx, or, ent.Name, ent)
	if err != nil || !ok {
		t.Fatalf("expected Or to match via second clause, ok=%v err=%v", ok, err)
	}
}
