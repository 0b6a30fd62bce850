package query

import (
	"igloo/tree"
)

// Scope names the five targets a one-shot query can run against (spec.md
// §4.4).
type Scope int

// Scopes.
const (
	ScopeExtension Scope = iota
	ScopeGroup
	ScopeDevice
	ScopeEntity
	ScopeComponent
)

// Action names the three things a one-shot query can do with its matches.
type Action int

// Actions.
const (
	ActionCount Action = iota
	ActionGetIds
	ActionGet
)

// DeviceQuery runs a Device-scope one-shot query: spec.md §4.4's
// {Extension, Group, Device, Entity, Component} × {Count, GetIds, Get}
// matrix, specialized to Device here and to Entity/Component below (the
// other two scopes -- Extension, Group -- are simple unfiltered id scans
// over tree.Tree's own iteration helpers and don't need a dedicated type).
//
// Limit, if > 0, stops the scan once that many matches have been found
// (spec.md's "ControlFlow to honor limit").
type DeviceQuery struct {
	Filter DeviceFilter
	Limit  int
}

// DeviceQueryResult is the Get-action payload: device ids plus (for
// ActionGet) the matched devices themselves.
type DeviceQueryResult struct {
	IDs     []tree.DeviceID
	Devices []*tree.Device
}

// RunDeviceQuery evaluates q against t and returns a result shaped by
// action. Iteration proceeds in tree-insertion order (spec.md §4.4's
// default ordering when no id-listing filter is present).
func RunDeviceQuery(ctx *Context, t *tree.Tree, q DeviceQuery, action Action) (DeviceQueryResult, error) {
	var result DeviceQueryResult
	count := 0
	var iterErr error

	t.AllDevices(func(id tree.DeviceID, dev *tree.Device) bool {
		ok, err := q.Filter.Matches(ctx, dev)
		if err != nil {
			iterErr = err
			return false
		}
		if !ok {
			return true
		}
		count++
		if action != ActionCount {
			result.IDs = append(result.IDs, id)
			if action == ActionGet {
				result.Devices = append(result.Devices, dev)
			}
		}
		if q.Limit > 0 && count >= q.Limit {
			return false
		}
		return true
	})
	if iterErr != nil {
		return DeviceQueryResult{}, iterErr
	}
	if action == ActionCount {
		result.IDs = make([]tree.DeviceID, count)
	}
	return result, nil
}

// EstimateDeviceCount is RunDeviceQuery with ActionCount, returning just
// the matched count (spec.md §4.4's estimate_count helper).
func EstimateDeviceCount(ctx *Context, t *tree.Tree, f DeviceFilter) (int, error) {
	res, err := RunDeviceQuery(ctx, t, DeviceQuery{Filter: f}, ActionCount)
	if err != nil {
		return 0, err
	}
	return len(res.IDs), nil
}

// EntityQuery runs an Entity-scope one-shot query against every entity of
// every device matching deviceFilter.
type EntityQuery struct {
	DeviceFilter DeviceFilter
	EntityFilter Filter
	Limit        int
}

// EntityMatch identifies one matched entity.
type EntityMatch struct {
	Device tree.DeviceID
	Entity tree.EntityIndex
	Value  *tree.Entity // set only for ActionGet
}

// RunEntityQuery evaluates q, scoped to entities rather than devices.
func RunEntityQuery(ctx *Context, t *tree.Tree, q EntityQuery, action Action) ([]EntityMatch, error) {
	var matches []EntityMatch
	var iterErr error
	count := 0

	t.AllDevices(func(devID tree.DeviceID, dev *tree.Device) bool {
		devOK, err := q.DeviceFilter.Matches(ctx, dev)
		if err != nil {
			iterErr = err
			return false
		}
		if !devOK {
			return true
		}
		cont := true
		dev.Entities(func(idx tree.EntityIndex, e *tree.Entity) bool {
			ok, err := MatchEntity(ctx, q.EntityFilter, e.Name, e)
			if err != nil {
				iterErr = err
				cont = false
				return false
			}
			if !ok {
				return true
			}
			count++
			m := EntityMatch{Device: devID, Entity: idx}
			if action == ActionGet {
				m.Value = e
			}
			matches = append(matches, m)
			if q.Limit > 0 && count >= q.Limit {
				cont = false
				return false
			}
			return true
		})
		return cont
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return matches, nil
}

// ForEachDevice is spec.md §4.4's for_each_device helper: fn returning
// false stops iteration early without allocating a result slice, the
// ControlFlow idiom for callers that just want to act on each match.
func ForEachDevice(ctx *Context, t *tree.Tree, f DeviceFilter, fn func(tree.DeviceID, *tree.Device) bool) error {
	var iterErr error
	t.AllDevices(func(id tree.DeviceID, dev *tree.Device) bool {
		ok, err := f.Matches(ctx, dev)
		if err != nil {
			iterErr = err
			return false
		}
		if !ok {
			return true
		}
		return fn(id, dev)
	})
	return iterErr
}
