// Package persist handles Igloo's on-disk state: the device tree's durable
// topology (state.json) and local account credentials (auth.json, owned by
// internal/auth but written through this package's generic versioned-file
// helpers). Both file kinds share the same discipline as
// daemon_ref/ap.configd's propTreeStore/propTreeLoad: a leading Version
// field, a registry of per-version migration hooks, and an atomic
// write-temp-then-rename save.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// versionHeader is unmarshaled first so Load can tell which migrations (if
// any) must run before the caller's real struct can be populated.
type versionHeader struct {
	Version uint32 `json:"version"`
}

// MigrationFunc upgrades one version's raw JSON bytes to the next version's
// shape. Registered under the version it upgrades *from*, mirroring
// ap.configd's addUpgradeHook(toVersion, hook) convention one step
// earlier in the chain.
type MigrationFunc func([]byte) ([]byte, error)

// LoadVersioned reads path, walks it forward through migrations until it
// reaches targetVersion, and returns the resulting raw JSON ready for the
// caller's own json.Unmarshal. A missing file returns the *os.PathError
// unchanged so callers can distinguish "seed defaults" from "corrupt data".
func LoadVersioned(path string, targetVersion uint32, migrations map[uint32]MigrationFunc) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var h versionHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, errors.Wrapf(err, "parsing version header of %s", path)
	}
	if h.Version > targetVersion {
		return nil, errors.Errorf("%s: version %d is newer than the %d this build supports",
			path, h.Version, targetVersion)
	}

	for h.Version < targetVersion {
		fn, ok := migrations[h.Version]
		if !ok {
			return nil, errors.Errorf("%s: no migration registered from version %d", path, h.Version)
		}
		raw, err = fn(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "migrating %s from version %d", path, h.Version)
		}
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, errors.Wrapf(err, "parsing %s after migrating to version %d", path, h.Version)
		}
	}
	return raw, nil
}

// SaveVersioned atomically replaces path's contents: payload is written to a
// temp sibling in the same directory, fsynced, then renamed over path. The
// rename is what makes the write atomic from a reader's perspective, and
// keeping the temp file on the same filesystem is what makes the rename
// possible at all -- the same two properties ap.configd's propTreeStore
// leans on when it writes ap_props.json.
func SaveVersioned(path string, payload []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "writing %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "syncing %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "closing %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "renaming %s to %s", tmpName, path)
	}
	return nil
}

// FileExists reports whether path names a regular, readable file, the same
// check aputil.FileExists makes before ap.configd decides whether to load or
// seed defaults.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
