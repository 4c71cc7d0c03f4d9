package debt

import (
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/types"
)

// Emit packages cancellation edges as a new simplification entry. It does
// not persist anything; the caller fills in the group and currency and
// appends it.
//
// Each edge is recorded as the compensating transfer To -> From, so folding
// the entry back through Aggregate reproduces exactly the reduction Cancel
// performed and a second run over the extended ledger finds no cycle.
func Emit(edges []CancellationEdge) *entry.Entry {
	e := &entry.Entry{
		Entity: types.NewEntity(),
		ID:     entry.NewID(entry.KindSimplification),
		Kind:   entry.KindSimplification,
	}
	e.Transfers = make([]entry.Transfer, 0, len(edges))
	for _, edge := range edges {
		e.Transfers = append(e.Transfers, entry.Transfer{
			From:   edge.To,
			To:     edge.From,
			Amount: edge.Amount,
		})
	}
	return e
}

// Edges recovers the cancellation edges recorded in a simplification entry.
func Edges(e *entry.Entry) []CancellationEdge {
	out := make([]CancellationEdge, 0, len(e.Transfers))
	for _, t := range e.Transfers {
		out = append(out, CancellationEdge{From: t.To, To: t.From, Amount: t.Amount})
	}
	return out
}
