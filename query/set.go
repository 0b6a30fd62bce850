package query

import (
	"igloo/component"
	"igloo/tree"
)

// SetCommand is one entity's worth of a translated set-query: a
// SetComponents command addressed to the extension that owns it. The
// query engine only builds these; dispatching them over the extension's
// wire connection is the supervisor package's job (spec.md §4.4: "the
// engine returns an ack count; the actual mutation arrives later").
type SetCommand struct {
	Owner      tree.ExtensionIndex
	Device     tree.DeviceID
	Entity     tree.EntityIndex
	Components []component.Component
}

// SetQuery is a Component-scope set-query: write comps to every entity
// matching deviceFilter+entityFilter.
type SetQuery struct {
	DeviceFilter DeviceFilter
	EntityFilter Filter
	Components   []component.Component
}

// Translate evaluates q against t and returns one SetCommand per matched
// entity, in tree iteration order, each tagged with its device's owning
// extension. It performs no tree writes itself; the length of the returned
// slice is the number of entities targeted (the "ack count" of spec.md §4.4).
func Translate(ctx *Context, t *tree.Tree, q SetQuery) ([]SetCommand, error) {
	var cmds []SetCommand
	var iterErr error

	t.AllDevices(func(devID tree.DeviceID, dev *tree.Device) bool {
		devOK, err := q.DeviceFilter.Matches(ctx, dev)
		if err != nil {
			iterErr = err
			return false
		}
		if !devOK {
			return true
		}
		dev.Entities(func(idx tree.EntityIndex, e *tree.Entity) bool {
			ok, err := MatchEntity(ctx, q.EntityFilter, e.Name, e)
			if err != nil {
				iterErr = err
				return false
			}
			if !ok {
				return true
			}
			cmds = append(cmds, SetCommand{
				Owner:      dev.OwnerIndex,
				Device:     devID,
				Entity:     idx,
				Components: q.Components,
			})
			return true
		})
		return iterErr == nil
	})
	if iterErr != nil {
		return nil, iterErr
	}
	return cmds, nil
}
