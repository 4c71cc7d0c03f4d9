package tally

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/types"
)

// Activity returns every entry involving p across all of p's groups, in
// ledger order. Kinds and Since filter each group's entries; Limit and
// Offset page the merged feed. opts.Participant is ignored.
func (l *Ledger) Activity(ctx context.Context, p types.Participant, opts entry.ListOpts) ([]*entry.Entry, error) {
	groups, err := l.store.ListGroups(ctx, group.ListOpts{Member: p})
	if err != nil {
		return nil, err
	}

	perGroup := entry.ListOpts{Kinds: opts.Kinds, Participant: p, Since: opts.Since}
	if opts.Limit > 0 {
		// no group can contribute more than the first Offset+Limit entries
		perGroup.Limit = max(opts.Offset, 0) + opts.Limit
	}

	lists := make([][]*entry.Entry, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.simplifyConcurrency)
	for i, g := range groups {
		eg.Go(func() error {
			list, err := l.store.ListEntries(egCtx, g.ID, perGroup)
			if err != nil {
				return err
			}
			lists[i] = list
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	feed := slices.Concat(lists...)
	slices.SortStableFunc(feed, func(a, b *entry.Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})

	start := min(max(opts.Offset, 0), len(feed))
	end := len(feed)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return feed[start:end], nil
}
