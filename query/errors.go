package query

import "github.com/pkg/errors"

// ErrStopIteration names an early stop of iteration. Nothing in this
// package returns it: the iteration helpers stop early when their callback
// returns false.
var ErrStopIteration = errors.New("query: iteration stopped early")

// ErrUnsupportedAggregate is returned when an aggregation op is undefined
// for a component type (e.g. Mean of Text), per spec.md §4.4: undefined
// combinations are rejected, not coerced.
type ErrUnsupportedAggregate struct {
	Op     AggregateOp
	TypeID uint16
}

func (e *ErrUnsupportedAggregate) Error() string {
	return errors.Errorf("query: aggregate %s undefined for type %d", e.Op, e.TypeID).Error()
}
