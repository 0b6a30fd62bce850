package client

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"igloo/supervisor"
	"igloo/watch"
)

func newTestManager(t *testing.T) (*supervisor.Supervisor, *Manager) {
	t.Helper()
	sup := supervisor.New(t.TempDir(), zap.NewNop())
	if err := sup.Start(); err != nil {
		t.Fatalf("sup.Start: %v", err)
	}
	t.Cleanup(sup.Shutdown)

	m := NewManager(sup, zap.NewNop())
	m.Start()
	t.Cleanup(m.Shutdown)
	return sup, m
}

func TestManagerRegisterDisconnect(t *testing.T) {
	_, m := newTestManager(t)

	id, outbox := m.Register()
	if _, ok := m.clients[id]; !ok {
		t.Fatal("expected client registered")
	}
	m.Disconnect(id)
	if _, ok := m.clients[id]; ok {
		t.Fatal("expected client removed")
	}
	if _, ok := <-outbox; ok {
		t.Fatal("expected outbox closed")
	}
}

func TestManagerInitReturnsSnapshot(t *testing.T) {
	_, m := newTestManager(t)
	id, outbox := m.Register()
	defer m.Disconnect(id)

	m.Handle(id, ClientMessage{Kind: ClientInit})

	select {
	case msg := <-outbox:
		if msg.Kind != ServerSnapshot || msg.Snapshot == nil {
			t.Fatalf("got %+v", msg)
		}
		if msg.Snapshot.RootHash == "" {
			t.Fatal("expected non-empty root hash")
		}
		if len(msg.Snapshot.Devices) != 0 {
			t.Fatalf("expected empty tree, got %d devices", len(msg.Snapshot.Devices))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestManagerExecSetQueryNoMatches(t *testing.T) {
	_, m := newTestManager(t)
	id, outbox := m.Register()
	defer m.Disconnect(id)

	m.Handle(id, ClientMessage{
		Kind: ClientExecSetQuery,
		SetQuery: &SetQueryWire{
			DeviceFilter: DeviceFilterWire{},
		},
	})

	select {
	case msg := <-outbox:
		if msg.Kind != ServerQueryResult || msg.Query == nil {
			t.Fatalf("got %+v", msg)
		}
		if msg.Query.Matched != 0 {
			t.Fatalf("got %d matches, want 0", msg.Query.Matched)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for query result")
	}
}

func TestManagerRegisterAndCancelWatch(t *testing.T) {
	_, m := newTestManager(t)
	id, _ := m.Register()
	defer m.Disconnect(id)

	m.Handle(id, ClientMessage{
		Kind:  ClientRegisterWatch,
		Watch: &WatchQueryWire{Kind: "metadata"},
	})

	m.mu.Lock()
	c := m.clients[id]
	n := len(c.watchers)
	var wid watch.WatcherID
	for w := range c.watchers {
		wid = w
	}
	m.mu.Unlock()
	if n != 1 {
		t.Fatalf("got %d watchers, want 1", n)
	}

	m.Handle(id, ClientMessage{Kind: ClientCancelWatch, WatcherID: wid})

	m.mu.Lock()
	n = len(m.clients[id].watchers)
	m.mu.Unlock()
	if n != 0 {
		t.Fatalf("got %d watchers after cancel, want 0", n)
	}
}
