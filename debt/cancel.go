package debt

import (
	"fmt"
	"slices"

	"github.com/xraph/tally/types"
)

// CancellationEdge is one instruction produced by Cancel: Amount of From's
// debt to To was cancelled around a cycle.
type CancellationEdge struct {
	From   types.Participant `json:"from"`
	To     types.Participant `json:"to"`
	Amount int64             `json:"amount"`
}

type cancelConfig struct {
	tolerance int64
}

// Option configures Cancel.
type Option func(*cancelConfig)

// WithTolerance treats edges whose weight is at or below tol minor units as
// zero. The default is 0: only strictly positive edges are traversable.
func WithTolerance(tol int64) Option {
	return func(c *cancelConfig) {
		if tol > 0 {
			c.tolerance = tol
		}
	}
}

// Cancel removes circular debt from g. participants fixes the scan order and
// must contain every participant of g exactly once; pass them sorted for
// reproducible output. g itself is not modified: the reduced graph is
// returned alongside the cancellation edges, in the order they were found.
//
// Every round finds one cycle of edges heavier than the tolerance, reduces
// each of its edges by the cycle's minimum and restarts. No participant's net
// position changes.
func Cancel(g *Graph, participants []types.Participant, opts ...Option) ([]CancellationEdge, *Graph, error) {
	cfg := cancelConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := g.Validate(); err != nil {
		return nil, nil, err
	}
	known := make(map[types.Participant]bool, len(participants))
	for _, p := range participants {
		if known[p] {
			return nil, nil, g.invalid(fmt.Sprintf("participant %s listed twice", p))
		}
		known[p] = true
	}
	for _, p := range g.Participants() {
		if !known[p] {
			return nil, nil, g.invalid(fmt.Sprintf("participant %s not in participant set", p))
		}
	}

	work := g.Clone()
	work.Seed(participants...)

	// Cancellation never creates a new traversable edge and zeroes at least
	// one per round, so the initial count bounds the rounds.
	maxRounds := 0
	for _, p := range participants {
		maxRounds += len(work.neighbours(p, cfg.tolerance))
	}

	var out []CancellationEdge
	for round := 0; ; round++ {
		cycle := findCycle(work, participants, cfg.tolerance)
		if cycle == nil {
			return out, work, nil
		}
		if round >= maxRounds {
			return nil, nil, work.invalid(fmt.Sprintf("no fixed point after %d rounds", round))
		}

		m := work.Get(cycle[len(cycle)-1], cycle[0])
		for i := 0; i < len(cycle)-1; i++ {
			m = min(m, work.Get(cycle[i], cycle[i+1]))
		}
		for i, a := range cycle {
			b := cycle[(i+1)%len(cycle)]
			work.Effect(a, b, -m)
			out = append(out, CancellationEdge{From: a, To: b, Amount: m})
		}
	}
}

// findCycle runs one depth-first pass over participants and returns the
// first cycle found as v1..vk, where vk -> v1 closes it. It returns nil when
// the traversable edges form a DAG.
func findCycle(g *Graph, participants []types.Participant, tolerance int64) []types.Participant {
	visited := make(map[types.Participant]bool, len(participants))
	onStack := make(map[types.Participant]bool)
	var path []types.Participant

	var visit func(u types.Participant) []types.Participant
	visit = func(u types.Participant) []types.Participant {
		visited[u] = true
		onStack[u] = true
		path = append(path, u)

		for _, v := range g.neighbours(u, tolerance) {
			if onStack[v] {
				return slices.Clone(path[slices.Index(path, v):])
			}
			if !visited[v] {
				if c := visit(v); c != nil {
					return c
				}
			}
		}

		onStack[u] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, p := range participants {
		if visited[p] {
			continue
		}
		if c := visit(p); c != nil {
			return c
		}
	}
	return nil
}

// HasCycle reports whether g still contains a cycle of edges heavier than tolerance.
func HasCycle(g *Graph, tolerance int64) bool {
	return findCycle(g, g.Participants(), tolerance) != nil
}
