package debt

import "github.com/xraph/tally/types"

// Project returns focus's signed net debt to every counterparty it has a
// nonzero relationship with. Positive means focus owes the counterparty.
func Project(g *Graph, focus types.Participant) map[types.Participant]int64 {
	out := make(map[types.Participant]int64)
	for other, amt := range g.edges[focus] {
		if other != focus && amt != 0 {
			out[other] = amt
		}
	}
	return out
}

// Between returns a's net debt to b.
func Between(g *Graph, a, b types.Participant) int64 {
	return g.Get(a, b)
}

// Totals returns every participant's aggregate position in the group.
func Totals(g *Graph) map[types.Participant]int64 {
	out := make(map[types.Participant]int64, len(g.edges))
	for p := range g.edges {
		out[p] = g.Net(p)
	}
	return out
}
