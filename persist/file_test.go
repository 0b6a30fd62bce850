package persist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadVersionedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thing.json")

	if err := SaveVersioned(path, []byte(`{"version":1,"x":"hello"}`)); err != nil {
		t.Fatalf("SaveVersioned: %v", err)
	}

	raw, err := LoadVersioned(path, 1, nil)
	if err != nil {
		t.Fatalf("LoadVersioned: %v", err)
	}
	if string(raw) != `{"version":1,"x":"hello"}` {
		t.Fatalf("got %s", raw)
	}
}

func TestLoadVersionedMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadVersioned(filepath.Join(dir, "absent.json"), 1, nil); !os.IsNotExist(err) {
		t.Fatalf("expected IsNotExist, got %v", err)
	}
}

func TestLoadVersionedAppliesMigrations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thing.json")
	if err := SaveVersioned(path, []byte(`{"version":1,"legacy":"v1 value"}`)); err != nil {
		t.Fatalf("SaveVersioned: %v", err)
	}

	migrations := map[uint32]MigrationFunc{
		1: func(raw []byte) ([]byte, error) {
			return []byte(`{"version":2,"modern":"v1 value"}`), nil
		},
	}

	raw, err := LoadVersioned(path, 2, migrations)
	if err != nil {
		t.Fatalf("LoadVersioned: %v", err)
	}
	if string(raw) != `{"version":2,"modern":"v1 value"}` {
		t.Fatalf("got %s", raw)
	}
}

func TestLoadVersionedNewerThanSupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thing.json")
	if err := SaveVersioned(path, []byte(`{"version":9}`)); err != nil {
		t.Fatalf("SaveVersioned: %v", err)
	}
	if _, err := LoadVersioned(path, 1, nil); err == nil {
		t.Fatal("expected error for file newer than supported version")
	}
}

func TestLoadVersionedMissingMigration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thing.json")
	if err := SaveVersioned(path, []byte(`{"version":1}`)); err != nil {
		t.Fatalf("SaveVersioned: %v", err)
	}
	if _, err := LoadVersioned(path, 2, nil); err == nil {
		t.Fatal("expected error for missing migration hook")
	}
}

func TestSaveVersionedIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thing.json")
	if err := SaveVersioned(path, []byte(`{"version":1}`)); err != nil {
		t.Fatalf("SaveVersioned: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file after save, got %d", len(entries))
	}
}
