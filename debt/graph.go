// Package debt is the balance and simplification engine: it folds ledger
// entries into a bilateral debt graph, projects scalar balances from it and
// cancels circular debt.
//
// Everything here is pure and synchronous. A Graph is built per computation,
// owned by one goroutine and discarded afterwards; it is never persisted.
//
// Amounts are integer minor units of a single currency. g[u][v] is the net
// debt of u to v and is always mirrored: g[u][v] == -g[v][u].
package debt

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/xraph/tally/types"
)

// Graph is the bilateral debt graph of one group.
type Graph struct {
	currency string
	edges    map[types.Participant]map[types.Participant]int64
}

// NewGraph returns an empty graph for currency.
func NewGraph(currency string) *Graph {
	return &Graph{
		currency: strings.ToLower(currency),
		edges:    make(map[types.Participant]map[types.Participant]int64),
	}
}

// Currency returns the currency of every amount in the graph. It is empty
// for a graph built from no entries.
func (g *Graph) Currency() string { return g.currency }

// Seed makes participants known to the graph without creating any debt.
func (g *Graph) Seed(ps ...types.Participant) {
	for _, p := range ps {
		g.row(p)
	}
}

// Effect records that u owes v amt more: g[u][v] += amt, g[v][u] -= amt.
// A self-effect is ignored.
func (g *Graph) Effect(u, v types.Participant, amt int64) {
	if u == v || amt == 0 {
		g.Seed(u, v)
		return
	}
	g.row(u)[v] += amt
	g.row(v)[u] -= amt
}

// Get returns the net debt of u to v. Unknown pairs are zero.
func (g *Graph) Get(u, v types.Participant) int64 {
	return g.edges[u][v]
}

// Has reports whether p is known to the graph.
func (g *Graph) Has(p types.Participant) bool {
	_, ok := g.edges[p]
	return ok
}

// Participants returns every known participant in sorted order.
func (g *Graph) Participants() []types.Participant {
	return slices.Sorted(maps.Keys(g.edges))
}

// Net returns p's aggregate position: the sum of g[p][*]. Positive means p
// owes more than it is owed.
func (g *Graph) Net(p types.Participant) int64 {
	var sum int64
	for _, amt := range g.edges[p] {
		sum += amt
	}
	return sum
}

// Edge is one directed positive debt.
type Edge struct {
	From   types.Participant `json:"from"`
	To     types.Participant `json:"to"`
	Amount int64             `json:"amount"`
}

// Edges returns every strictly positive edge ordered by (From, To).
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, u := range g.Participants() {
		for _, v := range g.neighbours(u, 0) {
			out = append(out, Edge{From: u, To: v, Amount: g.edges[u][v]})
		}
	}
	return out
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		currency: g.currency,
		edges:    make(map[types.Participant]map[types.Participant]int64, len(g.edges)),
	}
	for u, row := range g.edges {
		c.edges[u] = maps.Clone(row)
	}
	return c
}

// Equal reports whether both graphs hold the same nonzero debts.
func (g *Graph) Equal(other *Graph) bool {
	for _, pair := range [][2]*Graph{{g, other}, {other, g}} {
		a, b := pair[0], pair[1]
		for u, row := range a.edges {
			for v, amt := range row {
				if b.Get(u, v) != amt {
					return false
				}
			}
		}
	}
	return true
}

// Validate checks the structural invariants: no self-loops and exact
// antisymmetry of every pair.
func (g *Graph) Validate() error {
	for _, u := range g.Participants() {
		row := g.edges[u]
		if amt, ok := row[u]; ok && amt != 0 {
			return g.invalid(fmt.Sprintf("self-loop on %s", u))
		}
		for _, v := range slices.Sorted(maps.Keys(row)) {
			if u == v {
				continue
			}
			if row[v] != -g.edges[v][u] {
				return g.invalid(fmt.Sprintf("asymmetric pair %s/%s: %d vs %d", u, v, row[v], g.edges[v][u]))
			}
		}
	}
	return nil
}

// String renders the positive edges, one per line, for diagnostics.
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph[%s]", g.currency)
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "\n  %s -> %s: %d", e.From, e.To, e.Amount)
	}
	return b.String()
}

func (g *Graph) row(p types.Participant) map[types.Participant]int64 {
	r, ok := g.edges[p]
	if !ok {
		r = make(map[types.Participant]int64)
		g.edges[p] = r
	}
	return r
}

// neighbours returns the targets of u's edges heavier than tolerance, sorted.
func (g *Graph) neighbours(u types.Participant, tolerance int64) []types.Participant {
	var out []types.Participant
	for v, amt := range g.edges[u] {
		if amt > tolerance {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

func (g *Graph) invalid(reason string) error {
	return &GraphError{Reason: reason, Dump: g.String()}
}
