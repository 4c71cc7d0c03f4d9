package debt

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateExpense reports an expense whose payer or split total is
	// zero or negative, so contribution ratios cannot be computed.
	ErrDegenerateExpense = errors.New("tally: degenerate expense")

	// ErrUnbalancedExpense reports an expense whose payers and splits differ in total.
	ErrUnbalancedExpense = errors.New("tally: expense payers and splits do not balance")

	// ErrInvalidGraph reports a broken graph invariant: a self-loop, a
	// participant outside the supplied set or an asymmetric pair.
	ErrInvalidGraph = errors.New("tally: invalid debt graph")

	// ErrCurrencyMismatch reports entries of different currencies in one fold.
	ErrCurrencyMismatch = errors.New("tally: currency mismatch")
)

// GraphError carries the reason and a dump of the offending graph.
// It matches ErrInvalidGraph with errors.Is.
type GraphError struct {
	Reason string
	Dump   string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidGraph, e.Reason)
}

// Is reports whether target is ErrInvalidGraph.
func (e *GraphError) Is(target error) bool { return target == ErrInvalidGraph }

// EntryError attributes a fold failure to one entry.
type EntryError struct {
	EntryID string
	Err     error
}

func (e *EntryError) Error() string {
	if e.EntryID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("entry %s: %v", e.EntryID, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
