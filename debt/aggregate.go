package debt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/types"
)

// Aggregate folds entries, in the order supplied, into a fresh graph.
// The result does not depend on that order.
func Aggregate(entries []*entry.Entry) (*Graph, error) {
	g := NewGraph("")
	for _, e := range entries {
		if err := g.Fold(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Fold applies one entry to the graph. On error the graph is left unchanged.
func (g *Graph) Fold(e *entry.Entry) error {
	if e == nil {
		return nil
	}
	cur := strings.ToLower(e.Currency)
	if g.currency != "" && cur != "" && cur != g.currency {
		return &EntryError{
			EntryID: e.ID.String(),
			Err:     fmt.Errorf("%w: graph is %s, entry is %s", ErrCurrencyMismatch, g.currency, cur),
		}
	}

	var effects []Edge
	switch e.Kind {
	case entry.KindExpense:
		var err error
		if effects, err = expenseEffects(e.Payers, e.Splits); err != nil {
			return &EntryError{EntryID: e.ID.String(), Err: err}
		}
	case entry.KindSettlement:
		for _, d := range e.Details {
			effects = append(effects, Edge{From: e.Settler, To: d.Participant, Amount: d.Amount})
		}
	case entry.KindSimplification:
		for _, t := range e.Transfers {
			effects = append(effects, Edge{From: t.From, To: t.To, Amount: t.Amount})
		}
	default:
		return &EntryError{EntryID: e.ID.String(), Err: fmt.Errorf("tally: unknown entry kind %q", e.Kind)}
	}

	if g.currency == "" {
		g.currency = cur
	}
	for _, eff := range effects {
		g.Effect(eff.From, eff.To, eff.Amount)
	}
	return nil
}

// expenseEffects spreads every payer's contribution over the splits in
// proportion to each split's amount. Each split s owes payer p
// As * Ap / T, rounded so that the shares of one payer sum exactly to Ap:
// the floor of every share is taken and the leftover minor units go to the
// largest remainders, earlier splits first on ties.
func expenseEffects(payers, splits []entry.Share) ([]Edge, error) {
	total := entry.Total(payers)
	if total <= 0 {
		return nil, fmt.Errorf("%w: payer total %d", ErrDegenerateExpense, total)
	}
	splitTotal := entry.Total(splits)
	if splitTotal <= 0 {
		return nil, fmt.Errorf("%w: split total %d", ErrDegenerateExpense, splitTotal)
	}
	if splitTotal != total {
		return nil, fmt.Errorf("%w: payers %d, splits %d", ErrUnbalancedExpense, total, splitTotal)
	}
	for _, s := range slices.Concat(payers, splits) {
		if s.Amount <= 0 {
			return nil, fmt.Errorf("%w: non-positive share for %s", ErrDegenerateExpense, s.Participant)
		}
	}

	t := decimal.NewFromInt(total)
	var out []Edge
	for _, p := range payers {
		shares := ProportionalShares(p.Amount, splits, t)
		for i, s := range splits {
			if s.Participant == p.Participant || shares[i] == 0 {
				continue
			}
			out = append(out, Edge{From: s.Participant, To: p.Participant, Amount: shares[i]})
		}
	}
	return out, nil
}

// ProportionalShares splits amount over weights in proportion to each
// weight's share of total. The result always sums to amount.
func ProportionalShares(amount int64, weights []entry.Share, total decimal.Decimal) []int64 {
	shares := make([]int64, len(weights))
	rems := make([]decimal.Decimal, len(weights))
	a := decimal.NewFromInt(amount)

	var assigned int64
	for i, w := range weights {
		q, r := a.Mul(decimal.NewFromInt(w.Amount)).QuoRem(total, 0)
		shares[i] = q.IntPart()
		rems[i] = r
		assigned += shares[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return rems[y].Cmp(rems[x])
	})
	for i := 0; assigned < amount && i < len(order); i++ {
		shares[order[i]]++
		assigned++
	}
	return shares
}

// Participants collects every participant referenced by entries, sorted.
func Participants(entries []*entry.Entry) []types.Participant {
	var ps []types.Participant
	for _, e := range entries {
		ps = append(ps, e.Participants()...)
	}
	return types.UniqueParticipants(ps...)
}
