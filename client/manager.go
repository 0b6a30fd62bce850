package client

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"igloo/internal/metrics"
	"igloo/query"
	"igloo/supervisor"
	"igloo/tree"
	"igloo/watch"
)

// ClientID identifies one live UI connection. Ids are dense and reused after
// disconnect (spec.md §4.7: "dense, reusable"); unlike tree ids there is no
// generation check since a ClientID never escapes the connection that owns
// it and is retired the moment that connection closes.
type ClientID uint32

// outboxCapacity bounds a client's outbound mailbox. Overflow disconnects
// the client outright (spec.md §5's "slow consumer" policy) rather than
// dropping individual messages, since UI state is cumulative and a gap would
// leave the client's view silently wrong.
const outboxCapacity = 256

// clientConn is one registered UI connection's mailbox and watcher
// bookkeeping.
type clientConn struct {
	id       ClientID
	outbox   chan ServerMessage
	watchers map[watch.WatcherID]bool
	closed   bool
}

// Manager is the hub's UI-facing half: it owns the ClientID table and
// routes every ClientMessage through the supervisor's core task, keeping
// the single-writer invariant spec.md §5 requires even for read-only
// queries ("Tree reads by non-core tasks are not permitted").
type Manager struct {
	sup *supervisor.Supervisor
	log *zap.Logger

	mu       sync.Mutex
	clients  map[ClientID]*clientConn
	nextID   ClientID
	freeList []ClientID

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager builds a Manager fronting sup. Call Start before accepting any
// WebSocket connections.
func NewManager(sup *supervisor.Supervisor, log *zap.Logger) *Manager {
	return &Manager{
		sup:     sup,
		log:     log,
		clients: make(map[ClientID]*clientConn),
		stop:    make(chan struct{}),
	}
}

// Start launches the goroutine that fans watch.WatchUpdates out to their
// owning clients' mailboxes.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.fanOut()
}

// Shutdown stops the fan-out loop. Individual connections are closed by
// their own ws.go handlers as the HTTP server shuts down.
func (m *Manager) Shutdown() {
	close(m.stop)
	m.wg.Wait()
}

func (m *Manager) fanOut() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case batch := <-m.sup.Updates():
			m.dispatch(batch)
		}
	}
}

func (m *Manager) dispatch(batch []watch.WatchUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range batch {
		for _, c := range m.clients {
			if !c.watchers[u.Watcher] {
				continue
			}
			wire := toWatchUpdateWire(u)
			m.offer(c, ServerMessage{Kind: ServerWatchUpdate, Watch: &wire})
		}
	}
}

// offer delivers msg to c's mailbox without blocking; a full mailbox marks
// the client closed so its ws.go write pump tears the connection down.
// Caller holds m.mu.
func (m *Manager) offer(c *clientConn, msg ServerMessage) {
	if c.closed {
		return
	}
	select {
	case c.outbox <- msg:
	default:
		m.log.Warn("client outbox full, disconnecting", zap.Uint32("client", uint32(c.id)))
		c.closed = true
		close(c.outbox)
	}
}

// Register allocates a ClientID and returns its mailbox's receive end, for
// ws.go's write pump to drain.
func (m *Manager) Register() (ClientID, <-chan ServerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var id ClientID
	if n := len(m.freeList); n > 0 {
		id = m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
	} else {
		id = m.nextID
		m.nextID++
	}
	c := &clientConn{
		id:       id,
		outbox:   make(chan ServerMessage, outboxCapacity),
		watchers: make(map[watch.WatcherID]bool),
	}
	m.clients[id] = c
	return id, c.outbox
}

// Disconnect tears down id's registration, synchronously cancelling every
// watcher it owns (spec.md §4.7: "a client disconnect synchronously cancels
// its watchers").
func (m *Manager) Disconnect(id ClientID) {
	m.mu.Lock()
	c, ok := m.clients[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, id)
	m.freeList = append(m.freeList, id)
	watchers := make([]watch.WatcherID, 0, len(c.watchers))
	for wid := range c.watchers {
		watchers = append(watchers, wid)
	}
	if !c.closed {
		c.closed = true
		close(c.outbox)
	}
	m.mu.Unlock()

	if len(watchers) == 0 {
		return
	}
	m.sup.RunOnCore(func() {
		reg := m.sup.Watchers()
		for _, wid := range watchers {
			reg.Unregister(wid)
		}
	})
	metrics.Watchers.Sub(float64(len(watchers)))
}

// Handle processes one inbound ClientMessage from id, synchronously pushing
// any direct reply onto the caller (the ws.go read pump serializes these
// per connection, matching spec.md §5's per-session ordering guarantee).
func (m *Manager) Handle(id ClientID, msg ClientMessage) {
	switch msg.Kind {
	case ClientInit:
		m.handleInit(id)
	case ClientGetPageData:
		m.handleGetPageData(id, msg.Page)
	case ClientExecSetQuery:
		m.handleExecSetQuery(id, msg.SetQuery)
	case ClientRegisterWatch:
		m.handleRegisterWatch(id, msg.Watch)
	case ClientCancelWatch:
		m.handleCancelWatch(id, msg.WatcherID)
	}
}

func (m *Manager) send(id ClientID, msg ServerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return
	}
	m.offer(c, msg)
}

func (m *Manager) handleInit(id ClientID) {
	var snap GlobalSnapshot
	m.sup.RunOnCore(func() {
		snap = buildGlobalSnapshot(m.sup.Tree())
	})
	m.send(id, ServerMessage{Kind: ServerSnapshot, Snapshot: &snap})
}

func (m *Manager) handleGetPageData(id ClientID, page *ClientPage) {
	if page == nil {
		m.send(id, ServerMessage{Kind: ServerError, Error: "GetPageData: missing page"})
		return
	}
	var entities []EntitySnapshot
	m.sup.RunOnCore(func() {
		t := m.sup.Tree()
		for _, devID := range page.Devices {
			dev, ok := t.Device(devID)
			if !ok {
				continue
			}
			dev.Entities(func(idx tree.EntityIndex, e *tree.Entity) bool {
				entities = append(entities, entitySnapshot(devID, idx, e))
				return true
			})
		}
	})
	m.send(id, ServerMessage{Kind: ServerDashboard, Dashboard: &DashboardData{Page: page.Name, Entities: entities}})
}

func (m *Manager) handleExecSetQuery(id ClientID, wq *SetQueryWire) {
	if wq == nil {
		m.send(id, ServerMessage{Kind: ServerQueryResult, Query: &QueryResultWire{Err: "ExecSetQuery: missing query"}})
		return
	}
	sq, err := wq.build()
	if err != nil {
		m.send(id, ServerMessage{Kind: ServerQueryResult, Query: &QueryResultWire{Err: err.Error()}})
		return
	}

	var cmds []query.SetCommand
	var translateErr error
	start := time.Now()
	m.sup.RunOnCore(func() {
		cmds, translateErr = query.Translate(m.sup.QueryContext(), m.sup.Tree(), sq)
	})
	metrics.QueryLatency.Observe(time.Since(start).Seconds())
	if translateErr != nil {
		m.send(id, ServerMessage{Kind: ServerQueryResult, Query: &QueryResultWire{Err: translateErr.Error()}})
		return
	}

	if len(cmds) > 0 {
		m.sup.SetCommands() <- cmds
	}
	m.send(id, ServerMessage{Kind: ServerQueryResult, Query: &QueryResultWire{Matched: len(cmds)}})
}

func (m *Manager) handleRegisterWatch(id ClientID, wq *WatchQueryWire) {
	if wq == nil {
		m.send(id, ServerMessage{Kind: ServerError, Error: "RegisterWatch: missing query"})
		return
	}
	q, err := wq.build()
	if err != nil {
		m.send(id, ServerMessage{Kind: ServerError, Error: err.Error()})
		return
	}

	var wid watch.WatcherID
	m.sup.RunOnCore(func() {
		wid = m.sup.Watchers().Register(q)
	})
	metrics.Watchers.Inc()

	m.mu.Lock()
	if c, ok := m.clients[id]; ok {
		c.watchers[wid] = true
	}
	m.mu.Unlock()
}

func (m *Manager) handleCancelWatch(id ClientID, wid watch.WatcherID) {
	m.mu.Lock()
	c, ok := m.clients[id]
	if ok {
		delete(c.watchers, wid)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.sup.RunOnCore(func() {
		m.sup.Watchers().Unregister(wid)
	})
	metrics.Watchers.Dec()
}
