package watch

import (
	"sync"

	"igloo/component"
	"igloo/query"
)

// watcher is a registered subscription plus the bookkeeping dispatch needs:
// for aggregate watchers, the last value emitted (so unchanged recomputes
// are suppressed, per Testable Property 5).
type watcher struct {
	id          WatcherID
	query       WatchQuery
	lastAgg     *query.AggregateResult
	hasLastAgg  bool
}

// Registry owns the sparse WatcherID table and the coarse subscriber side
// table (component type id -> interested watchers). Topology (Metadata)
// watchers are kept in their own set since they aren't keyed by component
// type at all (spec.md §4.5).
type Registry struct {
	mu sync.Mutex

	slots    []*watcher // nil entries are free/removed slots
	freeList []WatcherID

	topology   map[WatcherID]bool
	byTypeID   map[component.TypeID]map[WatcherID]bool
}

// NewRegistry returns an empty watcher registry.
func NewRegistry() *Registry {
	return &Registry{
		topology: make(map[WatcherID]bool),
		byTypeID: make(map[component.TypeID]map[WatcherID]bool),
	}
}

// Register assigns a WatcherID to q and records its coarse interest keys.
func (r *Registry) Register(q WatchQuery) WatcherID {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := &watcher{query: q}

	var id WatcherID
	if n := len(r.freeList); n > 0 {
		id = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		r.slots[id] = w
	} else {
		id = WatcherID(len(r.slots))
		r.slots = append(r.slots, w)
	}
	w.id = id

	switch q.Kind {
	case QueryMetadata:
		r.topology[id] = true
	case QueryComponentAggregate, QueryComponentValue:
		set, ok := r.byTypeID[q.TypeID]
		if !ok {
			set = make(map[WatcherID]bool)
			r.byTypeID[q.TypeID] = set
		}
		set[id] = true
	}
	return id
}

// Unregister drops a watcher from the registry entirely, as happens when
// its owning client disconnects (spec.md §4.5).
func (r *Registry) Unregister(id WatcherID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(id) >= len(r.slots) || r.slots[id] == nil {
		return
	}
	w := r.slots[id]

	switch w.query.Kind {
	case QueryMetadata:
		delete(r.topology, id)
	case QueryComponentAggregate, QueryComponentValue:
		if set, ok := r.byTypeID[w.query.TypeID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(r.byTypeID, w.query.TypeID)
			}
		}
	}

	r.slots[id] = nil
	r.freeList = append(r.freeList, id)
}

// Len reports the number of live watchers (tests / diagnostics).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.slots {
		if w != nil {
			n++
		}
	}
	return n
}
