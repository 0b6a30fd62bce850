package query

import (
	"testing"
	"time"

	"igloo/component"
	"igloo/tree"
)

func TestRunDeviceQueryCountAndGet(t *testing.T) {
	tr := tree.New()
	ext, _ := tr.RegisterExtension("hue-bridge")
	for _, name := range []string{"kitchen-lamp", "bedroom-lamp", "kitchen-sensor"} {
		dev, _, err := tr.CreateDevice(ext, name)
		if err != nil {
			t.Fatalf("CreateDevice(%s): %v", name, err)
		}
		tr.RegisterEntity(dev, "main", 0)
	}
	ctx := NewContext(time.Now())

	res, err := RunDeviceQuery(ctx, tr, DeviceQuery{}, ActionCount)
	if err != nil {
		t.Fatalf("RunDeviceQuery: %v", err)
	}
	if len(res.IDs) != 3 {
		t.Fatalf("got %d devices, want 3", len(res.IDs))
	}

	res, err = RunDeviceQuery(ctx, tr, DeviceQuery{Filter: DeviceFilter{Entity: Glob("main")}}, ActionGet)
	if err != nil {
		t.Fatalf("RunDeviceQuery: %v", err)
	}
	if len(res.Devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(res.Devices))
	}
}

func TestRunDeviceQueryRespectsLimit(t *testing.T) {
	tr := tree.New()
	ext, _ := tr.RegisterExtension("ext")
	for i := 0; i < 5; i++ {
		tr.CreateDevice(ext, string(rune('a'+i)))
	}
	ctx := NewContext(time.Now())

	res, err := RunDeviceQuery(ctx, tr, DeviceQuery{Limit: 2}, ActionGetIds)
	if err != nil {
		t.Fatalf("RunDeviceQuery: %v", err)
	}
	if len(res.IDs) != 2 {
		t.Fatalf("got %d ids, want 2 (limit)", len(res.IDs))
	}
}

func TestRunEntityQuery(t *testing.T) {
	tr := tree.New()
	ext, _ := tr.RegisterExtension("ext")
	dev, _, _ := tr.CreateDevice(ext, "d")
	tr.RegisterEntity(dev, "main", 0)
	tr.RegisterEntity(dev, "aux", 1)
	tr.WriteComponents(dev, 0, []component.Component{component.Light{On: true}})

	ctx := NewContext(time.Now())
	matches, err := RunEntityQuery(ctx, tr, EntityQuery{EntityFilter: With(component.TypeLight)}, ActionGetIds)
	if err != nil {
		t.Fatalf("RunEntityQuery: %v", err)
	}
	if len(matches) != 1 || matches[0].Entity != 0 {
		t.Fatalf("got %+v, want one match at entity 0", matches)
	}
}

func TestForEachDeviceEarlyExit(t *testing.T) {
	tr := tree.New()
	ext, _ := tr.RegisterExtension("ext")
	for i := 0; i < 5; i++ {
		tr.CreateDevice(ext, string(rune('a'+i)))
	}
	ctx := NewContext(time.Now())

	seen := 0
	err := ForEachDevice(ctx, tr, DeviceFilter{}, func(tree.DeviceID, *tree.Device) bool {
		seen++
		return seen < 2
	})
	if err != nil {
		t.Fatalf("ForEachDevice: %v", err)
	}
	if seen != 2 {
		t.Fatalf("got %d, want 2 (stopped early)", seen)
	}
}

func TestTranslateSetQuery(t *testing.T) {
	tr := tree.New()
	ext, _ := tr.RegisterExtension("ext")
	dev, _, _ := tr.CreateDevice(ext, "d")
	tr.RegisterEntity(dev, "main", 0)

	ctx := NewContext(time.Now())
	cmds, err := Translate(ctx, tr, SetQuery{
		Components: []component.Component{component.Switch{On: true}},
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Device != dev || cmds[0].Owner != ext {
		t.Fatalf("got %+v", cmds)
	}
}
