package persist

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"igloo/tree"
)

// Store is the hub's on-disk state directory: DATA_PATH, holding state.json
// (this package) and auth.json (internal/auth, via LoadVersioned/
// SaveVersioned directly).
type Store struct {
	Dir string
	log *zap.Logger
}

// Open validates dir exists (creating it if absent, matching ap.configd's
// *propdir handling) and returns a Store rooted there.
func Open(dir string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating data directory %s", dir)
	}
	return &Store{Dir: dir, log: log}, nil
}

// LoadOrSeed loads state.json under s.Dir into t, replaying its stored
// groups. If no state.json exists yet, it logs that a blank tree is being
// seeded (spec.md §4.8) and returns no pending memberships.
//
// Must be called from the core task, same as Snapshot.
func (s *Store) LoadOrSeed(t *tree.Tree) ([]Pending, error) {
	stored, err := LoadState(s.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "loading state.json")
	}
	if stored == nil {
		s.log.Info("no state.json found, seeding a blank tree")
		return nil, nil
	}
	return Restore(t, stored), nil
}

// Save snapshots t and writes it to state.json, atomically.
func (s *Store) Save(t *tree.Tree) error {
	return SaveState(s.Dir, Snapshot(t))
}
