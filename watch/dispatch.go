package watch

import (
	"igloo/component"
	"igloo/query"
	"igloo/tree"
)

// UpdateKind discriminates WatchUpdate's three shapes.
type UpdateKind int

// Kinds.
const (
	UpdateMetadata UpdateKind = iota
	UpdateComponentValue
	UpdateComponentAggregate
)

// MetadataUpdate describes a topology change, for Metadata watchers.
type MetadataUpdate struct {
	Mutation  tree.MutationKind
	Extension tree.ExtensionIndex
	Device    tree.DeviceID
	Group     tree.GroupID
}

// WatchUpdate is what Dispatch emits for one matched watcher.
type WatchUpdate struct {
	Watcher WatcherID
	Kind    UpdateKind

	Metadata MetadataUpdate // set when Kind == UpdateMetadata

	Device    tree.DeviceID   // set for ComponentValue/ComponentAggregate
	Entity    tree.EntityIndex // set for ComponentValue
	Value     component.Component // set for ComponentValue
	Aggregate query.AggregateResult // set for ComponentAggregate
}

func isTopologyMutation(k tree.MutationKind) bool {
	switch k {
	case tree.MutationDeviceAdded, tree.MutationDeviceRemoved,
		tree.MutationEntityAdded, tree.MutationEntityRemoved,
		tree.MutationGroupAdded, tree.MutationGroupRemoved, tree.MutationGroupMembershipChanged,
		tree.MutationExtensionConnected, tree.MutationExtensionDisconnected:
		return true
	default:
		return false
	}
}

func (r *Registry) topologyWatchers() []*watcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*watcher, 0, len(r.topology))
	for id := range r.topology {
		if w := r.slots[id]; w != nil {
			out = append(out, w)
		}
	}
	return out
}

func (r *Registry) watchersForType(id component.TypeID) []*watcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byTypeID[id]
	out := make([]*watcher, 0, len(set))
	for wid := range set {
		if w := r.slots[wid]; w != nil {
			out = append(out, w)
		}
	}
	return out
}

// Dispatch re-evaluates every watcher whose coarse interest key could be
// affected by mutation, against t, and returns the resulting updates.
// Per spec.md §4.5, dispatch unions candidates from the coarse key table,
// then re-checks each one's exact Filter before emitting.
func Dispatch(r *Registry, ctx *query.Context, t *tree.Tree, mutation tree.TreeMutation) []WatchUpdate {
	if isTopologyMutation(mutation.Kind) {
		return dispatchTopology(r, mutation)
	}
	if mutation.Kind == tree.MutationComponentSet || mutation.Kind == tree.MutationComponentRemoved {
		return dispatchComponent(r, ctx, t, mutation)
	}
	return nil
}

func dispatchTopology(r *Registry, mutation tree.TreeMutation) []WatchUpdate {
	watchers := r.topologyWatchers()
	updates := make([]WatchUpdate, 0, len(watchers))
	for _, w := range watchers {
		updates = append(updates, WatchUpdate{
			Watcher: w.id,
			Kind:    UpdateMetadata,
			Metadata: MetadataUpdate{
				Mutation:  mutation.Kind,
				Extension: mutation.Extension,
				Device:    mutation.Device,
				Group:     mutation.Group,
			},
		})
	}
	return updates
}

func dispatchComponent(r *Registry, ctx *query.Context, t *tree.Tree, mutation tree.TreeMutation) []WatchUpdate {
	watchers := r.watchersForType(mutation.TypeID)
	var updates []WatchUpdate

	for _, w := range watchers {
		dev, ok := t.Device(mutation.Device)
		if !ok {
			continue
		}
		matched, err := w.query.Filter.Matches(ctx, dev)
		if err != nil || !matched {
			continue
		}

		switch w.query.Kind {
		case QueryComponentValue:
			if mutation.Kind == tree.MutationComponentRemoved {
				updates = append(updates, WatchUpdate{
					Watcher: w.id, Kind: UpdateComponentValue,
					Device: mutation.Device, Entity: mutation.Entity, Value: nil,
				})
				continue
			}
			ent, ok := dev.Entity(mutation.Entity)
			if !ok {
				continue
			}
			val, ok := ent.Get(mutation.TypeID)
			if !ok {
				continue
			}
			updates = append(updates, WatchUpdate{
				Watcher: w.id, Kind: UpdateComponentValue,
				Device: mutation.Device, Entity: mutation.Entity, Value: val,
			})

		case QueryComponentAggregate:
			result, ok, err := recomputeAggregate(ctx, t, w.query)
			if err != nil || !ok {
				continue
			}
			if w.hasLastAgg && *w.lastAgg == result {
				continue
			}
			cp := result
			w.lastAgg = &cp
			w.hasLastAgg = true
			updates = append(updates, WatchUpdate{
				Watcher: w.id, Kind: UpdateComponentAggregate,
				Device: mutation.Device, Aggregate: result,
			})
		}
	}
	return updates
}

// recomputeAggregate gathers every matching entity's component value for
// q's filter+type across the whole tree and folds them with q.Op.
func recomputeAggregate(ctx *query.Context, t *tree.Tree, q WatchQuery) (query.AggregateResult, bool, error) {
	var values []component.Component
	var iterErr error

	t.AllDevices(func(_ tree.DeviceID, dev *tree.Device) bool {
		matched, err := q.Filter.Matches(ctx, dev)
		if err != nil {
			iterErr = err
			return false
		}
		if !matched {
			return true
		}
		dev.Entities(func(_ tree.EntityIndex, e *tree.Entity) bool {
			if v, ok := e.Get(q.TypeID); ok {
				values = append(values, v)
			}
			return true
		})
		return true
	})
	if iterErr != nil {
		return query.AggregateResult{}, false, iterErr
	}
	if len(values) == 0 {
		return query.AggregateResult{}, false, nil
	}
	result, err := query.Aggregate(q.Op, q.TypeID, values)
	if err != nil {
		return query.AggregateResult{}, false, err
	}
	return result, true, nil
}
