package tree

import "github.com/pkg/errors"

// Sentinel errors returned by Tree's write API. Per spec.md §4.3, a write
// returning an error is always a no-op: the tree is left exactly as it was,
// and no TreeMutation is emitted.
var (
	ErrUnknownExtension = errors.New("tree: unknown or stale extension index")
	ErrUnknownDevice    = errors.New("tree: unknown or stale device id")
	ErrUnknownEntity    = errors.New("tree: unknown entity index")
	ErrUnknownGroup     = errors.New("tree: unknown or stale group id")
	ErrDuplicateEntity  = errors.New("tree: extension-local entity index already registered")
	ErrMalformedWrite   = errors.New("tree: malformed component write")
)

// InvariantError wraps a violated internal invariant. spec.md §4.3 forbids
// panics on write paths; any condition that would otherwise be a panic
// becomes one of these instead.
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string { return "tree: invariant violation: " + e.msg }

func invariant(format string, args ...interface{}) error {
	return &InvariantError{msg: errors.Errorf(format, args...).Error()}
}
