package supervisor

import "sync"

// mailboxCapacity is the bounded size of a session's outbound queue
// (spec.md §4.6).
const mailboxCapacity = 1000

// outboundEntry is one hub->extension command waiting to be written to the
// session's socket. optional marks commands the mailbox is allowed to drop
// under backpressure (Custom); SetComponents, Init and ReqComponentUpdates
// are never optional.
type outboundEntry struct {
	cmd      uint16
	payload  []byte
	optional bool
}

// mailbox is a session's bounded outbound queue. A push that would exceed
// capacity evicts the oldest optional entry instead of the new one; if no
// optional entry exists, the new optional entry is dropped instead of
// enqueued. Non-optional entries are never evicted and are always enqueued,
// since a SetComponents a client is waiting on must eventually reach the
// extension.
type mailbox struct {
	mu     sync.Mutex
	q      []outboundEntry
	wake   chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// push enqueues e, applying the drop policy described above. It returns
// false if the mailbox has been closed (the session is draining/closed).
func (m *mailbox) push(e outboundEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}

	if len(m.q) >= mailboxCapacity {
		if i := m.firstOptional(); i >= 0 {
			m.q = append(m.q[:i], m.q[i+1:]...)
		} else if e.optional {
			return true // drop the new entry silently
		}
		// else: queue is saturated with required entries; grow anyway
		// rather than lose a SetComponents.
	}
	m.q = append(m.q, e)
	m.signal()
	return true
}

func (m *mailbox) firstOptional() int {
	for i, e := range m.q {
		if e.optional {
			return i
		}
	}
	return -1
}

// pop removes and returns the oldest entry, blocking on closed until push or
// close. ok is false once the mailbox is closed and drained.
func (m *mailbox) pop(closed <-chan struct{}) (outboundEntry, bool) {
	for {
		m.mu.Lock()
		if len(m.q) > 0 {
			e := m.q[0]
			m.q = m.q[1:]
			m.mu.Unlock()
			return e, true
		}
		done := m.closed
		m.mu.Unlock()
		if done {
			return outboundEntry{}, false
		}
		select {
		case <-m.wake:
		case <-closed:
			return outboundEntry{}, false
		}
	}
}

// close marks the mailbox closed; pop drains whatever remains, then returns
// false forever after.
func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// len reports the current queue depth (diagnostics/tests).
func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.q)
}
