package query

import (
	"testing"
	"time"
)

func TestCompileCachesByPattern(t *testing.T) {
	ctx := NewContext(time.Now())
	g1, err := ctx.Compile("kitchen-*")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	g2, err := ctx.Compile("kitchen-*")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if g1 != g2 {
		t.Fatalf("expected cached compile to be reused")
	}
	if ctx.CacheLen() != 1 {
		t.Fatalf("got cache len %d, want 1", ctx.CacheLen())
	}
}

func TestGenerationGCEvictsStaleEntries(t *testing.T) {
	start := time.Now()
	ctx := NewContext(start)
	if _, err := ctx.Compile("a"); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// Advance four generations (to 120s) without touching "a" again; with
	// retainGenerations=2 it is evicted at the third rollover (90s).
	ctx.Tick(start.Add(30 * time.Second))
	ctx.Tick(start.Add(60 * time.Second))
	ctx.Tick(start.Add(90 * time.Second))
	ctx.Tick(start.Add(120 * time.Second))

	if ctx.CacheLen() != 0 {
		t.Fatalf("got cache len %d, want 0 after generation rollover", ctx.CacheLen())
	}
}

func TestGenerationGCRetainsRecentlyTouched(t *testing.T) {
	start := time.Now()
	ctx := NewContext(start)
	if _, err := ctx.Compile("a"); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ctx.Tick(start.Add(30 * time.Second))
	if _, err := ctx.Compile("a"); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ctx.Tick(start.Add(60 * time.Second))

	if ctx.CacheLen() != 1 {
		t.Fatalf("got cache len %d, want 1 (recently touched entry retained)", ctx.CacheLen())
	}
}
