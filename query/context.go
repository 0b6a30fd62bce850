// Package query implements Igloo's one-shot query engine: a pure
// computation over a tree snapshot plus a small reusable QueryContext
// (spec.md §4.4).
package query

import (
	"container/list"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// generationInterval is how often QueryContext's glob cache advances its
// generation clock (spec.md §4.4/§9: "generation advances every 30s").
const generationInterval = 30 * time.Second

// maxCacheSize triggers a GC pass once the glob cache grows past it.
const maxCacheSize = 50

// retainGenerations is how many trailing generations a cached entry
// survives without being touched again (spec.md: "retention = ≥ current-2").
const retainGenerations = 2

type globEntry struct {
	pattern    string
	compiled   glob.Glob
	generation uint64
	elem       *list.Element
}

// Context is the glob-matcher cache and evaluation clock the query engine
// threads through one call: `QueryContext` in spec.md §4.4. It is not
// safe to share a single evaluation across goroutines concurrently, but is
// cheap to reuse across many sequential one-shot queries (the common case:
// one per incoming UI query on the core task).
type Context struct {
	mu sync.Mutex

	now time.Time

	entries      map[string]*globEntry
	order        *list.List // front = most recently touched
	generation   uint64
	lastAdvance  time.Time
}

// NewContext returns a Context whose evaluation clock is now.
func NewContext(now time.Time) *Context {
	return &Context{
		now:         now,
		entries:     make(map[string]*globEntry),
		order:       list.New(),
		lastAdvance: now,
	}
}

// Now returns the evaluation wall-clock passed to the most recent Tick (or
// NewContext, if Tick was never called).
func (c *Context) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Tick advances the context's evaluation clock. Call it once per query (or
// per batch of queries sharing a tree snapshot); it's what drives the glob
// cache's 30s generation rollover and GC.
func (c *Context) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	if now.Sub(c.lastAdvance) >= generationInterval {
		c.generation++
		c.lastAdvance = now
		c.gc()
	}
}

// Compile returns a compiled glob matcher for pattern, reusing a cached
// compile when available. Every touch (hit or fresh compile) marks the
// entry as used in the current generation and bumps it to the front of the
// eviction order.
func (c *Context) Compile(pattern string) (glob.Glob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[pattern]; ok {
		e.generation = c.generation
		c.order.MoveToFront(e.elem)
		return e.compiled, nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e := &globEntry{pattern: pattern, compiled: g, generation: c.generation}
	e.elem = c.order.PushFront(e)
	c.entries[pattern] = e

	if len(c.entries) > maxCacheSize {
		c.gc()
	}
	return g, nil
}

// gc drops every entry whose generation has fallen more than
// retainGenerations behind the current one. Caller holds c.mu.
func (c *Context) gc() {
	floor := int64(c.generation) - retainGenerations
	for e := c.order.Back(); e != nil; {
		prev := e.Prev()
		entry := e.Value.(*globEntry)
		if int64(entry.generation) < floor {
			c.order.Remove(e)
			delete(c.entries, entry.pattern)
		}
		e = prev
	}
}

// CacheLen reports the current glob cache size (tests / diagnostics).
func (c *Context) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
