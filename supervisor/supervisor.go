// Package supervisor discovers extension ("Floe") child processes, manages
// the socket session with each, and owns the device tree, query context and
// watch registry as the single core task that is their sole writer
// (spec.md §3, §4.6, §5).
package supervisor

import (
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	ilog "igloo/internal/log"
	"igloo/internal/metrics"
	"igloo/persist"
	"igloo/protocol"
	"igloo/query"
	"igloo/tree"
	"igloo/watch"
	"igloo/wire"
)

const (
	backoffMin = 100 * time.Millisecond
	backoffMax = 30 * time.Second

	// globCacheTickInterval is how often the core loop offers query.Context
	// a chance to advance its generation clock; Context.Tick itself decides
	// whether the 30s window has actually elapsed.
	globCacheTickInterval = 5 * time.Second
)

// Supervisor is the hub's core task: it owns the Tree, the watch Registry
// and the query Context exclusively, and is the only goroutine that calls
// their mutating methods (spec.md §5's "exactly one task owns the device
// tree").
type Supervisor struct {
	floesRoot string
	log       *zap.Logger

	tree     *tree.Tree
	watchers *watch.Registry
	qctx     *query.Context

	inbound   chan inbound
	coreFuncs chan func()
	setCmds   chan []query.SetCommand
	updates   chan []watch.WatchUpdate
	stop      chan struct{}
	wg        sync.WaitGroup

	mu       sync.Mutex
	sessions map[tree.ExtensionID]*session
	byIndex  map[tree.ExtensionIndex]*session

	store   *persist.Store
	pending []persist.Pending
}

// New builds a Supervisor rooted at floesRoot (typically "./floes").
func New(floesRoot string, log *zap.Logger) *Supervisor {
	return &Supervisor{
		floesRoot: floesRoot,
		log:       log,
		tree:      tree.New(),
		watchers:  watch.NewRegistry(),
		qctx:      query.NewContext(time.Now()),
		inbound:   make(chan inbound, 256),
		coreFuncs: make(chan func(), 64),
		setCmds:   make(chan []query.SetCommand, 64),
		updates:   make(chan []watch.WatchUpdate, 256),
		stop:      make(chan struct{}),
		sessions:  make(map[tree.ExtensionID]*session),
		byIndex:   make(map[tree.ExtensionIndex]*session),
	}
}

// SetStore attaches store as the Supervisor's persistence backend. It must
// be called before Start so LoadOrSeed's Pending group memberships are in
// place before any extension can reconnect and resolve them.
func (s *Supervisor) SetStore(store *persist.Store) {
	s.store = store
}

// RunOnCore runs fn synchronously on the core task goroutine and blocks
// until it completes, giving callers (the client manager's query/watch
// handling, in particular) safe access to the Tree, Registry and Context
// without becoming a second writer (spec.md §5). fn should not block. If
// the core task has already shut down, RunOnCore returns without running
// fn rather than blocking forever.
func (s *Supervisor) RunOnCore(fn func()) {
	done := make(chan struct{})
	select {
	case s.coreFuncs <- func() { fn(); close(done) }:
	case <-s.stop:
		return
	}
	select {
	case <-done:
	case <-s.stop:
	}
}

// SetCommands returns the channel client.Manager posts translated SetQuery
// results to for dispatch onto the owning extension's socket.
func (s *Supervisor) SetCommands() chan<- []query.SetCommand { return s.setCmds }

// Updates returns the channel the core loop posts derived WatchUpdates to,
// for the client manager to fan out to subscribed UI connections.
func (s *Supervisor) Updates() <-chan []watch.WatchUpdate { return s.updates }

// Tree, Watchers and QueryContext expose the structures the core task owns
// exclusively. They are safe to read or mutate only from inside a function
// passed to RunOnCore; calling them from any other goroutine violates
// spec.md §5's single-writer invariant and is not guarded against beyond the
// structures' own internal mutexes.
func (s *Supervisor) Tree() *tree.Tree          { return s.tree }
func (s *Supervisor) Watchers() *watch.Registry { return s.watchers }
func (s *Supervisor) QueryContext() *query.Context { return s.qctx }

// Start discovers extension directories under floesRoot and launches one
// supervising goroutine per extension, then runs the core task loop until
// Shutdown is called.
func (s *Supervisor) Start() error {
	if s.store != nil {
		pending, err := s.store.LoadOrSeed(s.tree)
		if err != nil {
			return err
		}
		s.pending = pending
	}

	entries, err := os.ReadDir(s.floesRoot)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		s.wg.Add(1)
		go s.superviseExtension(tree.ExtensionID(name), filepath.Join(s.floesRoot, name))
	}

	s.wg.Add(1)
	go s.coreLoop()
	return nil
}

// Shutdown stops every supervising goroutine and the core task, waits for
// them to exit, then saves state.json. Each live session's socket is closed
// and its child process killed without first flushing the session's
// mailbox, so queued outbound commands are not delivered. The Updates
// channel is not closed.
func (s *Supervisor) Shutdown() {
	close(s.stop)
	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Save(s.tree); err != nil {
			s.log.Warn("failed to save state.json on shutdown", zap.Error(err))
		}
	}
}

// superviseExtension owns one extension's full lifecycle: spawn its child
// process, accept its socket connection, run the session to completion,
// and reconnect with exponential backoff until Shutdown.
func (s *Supervisor) superviseExtension(extID tree.ExtensionID, dir string) {
	defer s.wg.Done()

	backoff := backoffMin
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		sess, proc, sockPath, err := s.launchOne(extID, dir)
		if err != nil {
			s.log.Warn("failed to launch extension", zap.String("extension", string(extID)), zap.Error(err))
			if !s.sleepBackoff(&backoff) {
				return
			}
			continue
		}
		backoff = backoffMin

		extIdx := s.registerSession(extID, sess)

		sessionStop := make(chan struct{})
		doneCh := make(chan struct{})
		go func() {
			sess.run(extIdx, sessionStop)
			close(doneCh)
		}()

		select {
		case <-s.stop:
			close(sessionStop)
			sess.conn.Close()
			<-doneCh
			s.unregisterSession(extID, sess)
			if proc != nil {
				proc.kill()
				proc.wait()
			}
			os.Remove(sockPath)
			return
		case <-doneCh:
		}

		s.unregisterSession(extID, sess)
		if proc != nil {
			proc.kill()
			proc.wait()
		}
		os.Remove(sockPath)

		if !s.sleepBackoff(&backoff) {
			return
		}
	}
}

func (s *Supervisor) sleepBackoff(backoff *time.Duration) bool {
	select {
	case <-s.stop:
		return false
	case <-time.After(*backoff):
	}
	*backoff *= 2
	if *backoff > backoffMax {
		*backoff = backoffMax
	}
	return true
}

// launchOne spawns the extension's child process and accepts its single
// socket connection, returning a session wired to the core channels.
func (s *Supervisor) launchOne(extID tree.ExtensionID, dir string) (*session, *child, string, error) {
	sockPath := filepath.Join(dir, "floe.sock")
	os.Remove(sockPath)

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, nil, sockPath, err
	}
	defer listener.Close()

	binPath := filepath.Join(dir, "run")
	c := newChild(s.log, binPath)
	c.cmd.Env = append(os.Environ(), "IGLOO_SOCK="+sockPath)
	if err := c.start(); err != nil {
		return nil, nil, sockPath, err
	}

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := listener.Accept()
		acceptCh <- acceptResult{conn, err}
	}()

	select {
	case r := <-acceptCh:
		if r.err != nil {
			c.kill()
			return nil, c, sockPath, r.err
		}
		sess := newSession(extID, r.conn, s.inbound, s.log)
		return sess, c, sockPath, nil
	case <-time.After(greetDeadline):
		c.kill()
		return nil, c, sockPath, wire.ErrInvalidFrame
	}
}

// registerSession runs on the core task (via RunOnCore) so the
// RegisterExtension mutation and its watch dispatch happen on the same
// goroutine that processes every other tree write.
func (s *Supervisor) registerSession(extID tree.ExtensionID, sess *session) tree.ExtensionIndex {
	var extIdx tree.ExtensionIndex
	s.RunOnCore(func() {
		var muts []tree.TreeMutation
		extIdx, muts = s.tree.RegisterExtension(extID)
		s.mu.Lock()
		s.sessions[extID] = sess
		s.byIndex[extIdx] = sess
		s.mu.Unlock()
		s.postUpdates(muts)
	})
	return extIdx
}

func (s *Supervisor) unregisterSession(extID tree.ExtensionID, sess *session) {
	s.RunOnCore(func() {
		s.mu.Lock()
		if s.sessions[extID] == sess {
			delete(s.sessions, extID)
			delete(s.byIndex, sess.extIdx)
		}
		s.mu.Unlock()

		muts, err := s.tree.DisconnectExtension(sess.extIdx)
		if err == nil {
			s.postUpdates(muts)
		}
	})
}

func (s *Supervisor) postUpdates(muts []tree.TreeMutation) {
	metrics.ObserveMutations(muts)
	var all []watch.WatchUpdate
	for _, m := range muts {
		all = append(all, watch.Dispatch(s.watchers, s.qctx, s.tree, m)...)
	}
	if len(all) == 0 {
		return
	}
	select {
	case s.updates <- all:
	default:
		s.log.Warn("watch update channel full, dropping batch", zap.Int("count", len(all)))
	}
}

// coreLoop is the single goroutine that ever touches s.tree, s.watchers or
// s.qctx for mutation (spec.md §5). A panic here is recovered and reported
// rather than left to take the whole hub down, since coreLoop relaunching
// itself is cheaper than every extension losing its session.
func (s *Supervisor) coreLoop() {
	defer s.wg.Done()
	defer ilog.Recover("core", s.log, func() {
		select {
		case <-s.stop:
		default:
			s.wg.Add(1)
			go s.coreLoop()
		}
	})

	ticker := time.NewTicker(globCacheTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.qctx.Tick(time.Now())
		case in := <-s.inbound:
			s.handleInbound(in)
		case cmds := <-s.setCmds:
			s.dispatchSetCommands(cmds)
		case fn := <-s.coreFuncs:
			fn()
		}
	}
}

func (s *Supervisor) handleInbound(in inbound) {
	sess := in.session
	switch m := in.msg.(type) {
	case protocol.CreateDevice:
		id, muts, err := s.tree.CreateDevice(sess.extIdx, m.Name)
		if err != nil {
			s.log.Warn("CreateDevice failed", zap.String("extension", string(sess.extID)), zap.Error(err))
			return
		}
		s.postUpdates(muts)
		if len(s.pending) > 0 {
			s.pending = persist.ResolveDevice(s.tree, s.pending, string(sess.extID), m.Name, id)
		}
		payload, err := protocol.Encode(wire.CmdDeviceCreated, protocol.DeviceCreated{RequestName: m.Name, Device: id})
		if err == nil {
			sess.send(wire.CmdDeviceCreated, payload, false)
		}

	case protocol.RegisterEntity:
		muts, err := s.tree.RegisterEntity(m.Device, m.Name, tree.EntityIndex(m.IndexHint))
		if err != nil {
			s.log.Warn("RegisterEntity failed", zap.Error(err))
			return
		}
		s.postUpdates(muts)

	case protocol.WriteComponents:
		muts, err := s.tree.WriteComponents(m.Device, m.Entity, m.Components)
		if err != nil {
			s.log.Warn("WriteComponents failed", zap.Error(err))
			return
		}
		s.postUpdates(muts)

	case protocol.DeviceRemoved:
		muts, err := s.tree.RemoveDevice(m.Device)
		if err != nil {
			s.log.Warn("RemoveDevice failed", zap.Error(err))
			return
		}
		s.postUpdates(muts)

	case protocol.Log:
		sess.log.Info(m.Message, zap.String("extension_level", m.Level))

	case protocol.CustomError:
		sess.log.Warn("extension reported error", zap.String("code", m.Code), zap.String("message", m.Message))
	}
}

func (s *Supervisor) dispatchSetCommands(cmds []query.SetCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cmd := range cmds {
		sess, ok := s.byIndex[cmd.Owner]
		if !ok {
			continue
		}
		payload, err := protocol.Encode(wire.CmdSetComponents, protocol.SetComponents{
			Device: cmd.Device, Entity: cmd.Entity, Components: cmd.Components,
		})
		if err != nil {
			s.log.Warn("failed to encode SetComponents", zap.Error(err))
			continue
		}
		sess.send(wire.CmdSetComponents, payload, false)
	}
}
