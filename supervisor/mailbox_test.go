package supervisor

import "testing"

func fillWithOptional(m *mailbox, n int) {
	for i := 0; i < n; i++ {
		m.push(outboundEntry{cmd: uint16(i), optional: true})
	}
}

func TestMailboxFIFO(t *testing.T) {
	m := newMailbox()
	m.push(outboundEntry{cmd: 1})
	m.push(outboundEntry{cmd: 2})

	e, ok := m.pop(nil)
	if !ok || e.cmd != 1 {
		t.Fatalf("got %+v, %v", e, ok)
	}
	e, ok = m.pop(nil)
	if !ok || e.cmd != 2 {
		t.Fatalf("got %+v, %v", e, ok)
	}
}

func TestMailboxDropsOldestOptionalOnOverflow(t *testing.T) {
	m := newMailbox()
	fillWithOptional(m, mailboxCapacity)
	if m.len() != mailboxCapacity {
		t.Fatalf("got %d entries, want %d", m.len(), mailboxCapacity)
	}

	// Pushing one more optional entry should evict the oldest (cmd: 0).
	m.push(outboundEntry{cmd: 9999, optional: true})
	if m.len() != mailboxCapacity {
		t.Fatalf("got %d entries after overflow, want %d", m.len(), mailboxCapacity)
	}
	first, ok := m.pop(nil)
	if !ok || first.cmd != 1 {
		t.Fatalf("got %+v, want cmd 1 (cmd 0 should have been evicted)", first)
	}
}

func TestMailboxNeverDropsRequiredEntry(t *testing.T) {
	m := newMailbox()
	fillWithOptional(m, mailboxCapacity)

	// A required (non-optional) SetComponents push into a full mailbox must
	// still land; the oldest optional entry is evicted to make room.
	m.push(outboundEntry{cmd: 1111, optional: false})
	if m.len() != mailboxCapacity {
		t.Fatalf("got %d entries, want %d after evicting one optional", m.len(), mailboxCapacity)
	}

	// Drain all; the required entry must appear somewhere in the stream,
	// never silently dropped.
	found := false
	for {
		e, ok := m.pop(nil)
		if !ok {
			break
		}
		if e.cmd == 1111 {
			found = true
		}
		if m.len() == 0 {
			break
		}
	}
	if !found {
		t.Fatal("required entry was dropped")
	}
}

func TestMailboxCloseDrainsThenStops(t *testing.T) {
	m := newMailbox()
	m.push(outboundEntry{cmd: 1})
	m.close()

	e, ok := m.pop(nil)
	if !ok || e.cmd != 1 {
		t.Fatalf("expected to drain existing entry, got %+v, %v", e, ok)
	}
	_, ok = m.pop(nil)
	if ok {
		t.Fatal("expected pop to report closed mailbox")
	}
}
