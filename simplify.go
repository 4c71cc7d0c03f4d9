package tally

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/id"
)

// SimplifyResult describes one simplification run. Entry is nil when the
// group had no circular debt and nothing was appended.
type SimplifyResult struct {
	GroupID id.GroupID              `json:"group_id"`
	Entry   *entry.Entry            `json:"entry,omitempty"`
	Edges   []debt.CancellationEdge `json:"edges"`
	Before  *debt.Graph             `json:"-"`
	After   *debt.Graph             `json:"-"`
}

// Simplify cancels the circular debt of a group and appends the result as a
// simplification entry. The read of the ledger, the computation and the
// append run under the group's lock, so concurrent calls never append from
// the same snapshot. A second call without new entries appends nothing.
func (l *Ledger) Simplify(ctx context.Context, groupID id.GroupID) (*SimplifyResult, error) {
	ctx, span := tracer.Start(ctx, "tally.Simplify",
		trace.WithAttributes(attribute.String("group_id", groupID.String())),
	)
	defer span.End()
	start := time.Now()

	release, err := l.lockGroup(ctx, groupID)
	if err != nil {
		return nil, l.simplifyFailed(ctx, span, groupID, err)
	}
	defer release()

	result, err := l.plan(ctx, groupID)
	if err != nil {
		return nil, l.simplifyFailed(ctx, span, groupID, err)
	}
	span.SetAttributes(attribute.Int("edges", len(result.Edges)))
	if len(result.Edges) == 0 {
		return result, nil
	}

	e := debt.Emit(result.Edges)
	e.GroupID = groupID
	e.Currency = result.Before.Currency()
	e.Description = fmt.Sprintf("Simplified %d debts", len(result.Edges))

	if err := l.store.AppendEntry(ctx, e); err != nil {
		return nil, l.simplifyFailed(ctx, span, groupID, fmt.Errorf("append simplification: %w", err))
	}
	result.Entry = e

	elapsed := time.Since(start)
	l.plugins.EmitSimplified(ctx, groupID, e, result.Edges, elapsed)
	l.logger.Info("simplification appended",
		"group_id", groupID,
		"entry_id", e.ID,
		"edges", len(result.Edges),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return result, nil
}

// Preview computes what Simplify would append without taking the lock or
// writing anything.
func (l *Ledger) Preview(ctx context.Context, groupID id.GroupID) (*SimplifyResult, error) {
	ctx, span := tracer.Start(ctx, "tally.Preview",
		trace.WithAttributes(attribute.String("group_id", groupID.String())),
	)
	defer span.End()

	result, err := l.plan(ctx, groupID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

// plan folds a snapshot of the group's ledger and cancels its cycles over
// members plus every participant that appears in the ledger, in sorted order.
func (l *Ledger) plan(ctx context.Context, groupID id.GroupID) (*SimplifyResult, error) {
	_, graph, err := l.snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}

	// The snapshot is seeded with the members, so this is members plus
	// everyone named in the ledger, sorted.
	edges, final, err := debt.Cancel(graph, graph.Participants(), debt.WithTolerance(l.tolerance))
	if err != nil {
		var ge *debt.GraphError
		if errors.As(err, &ge) {
			l.logger.Error("invalid debt graph",
				"group_id", groupID,
				"reason", ge.Reason,
				"graph", ge.Dump,
			)
		}
		return nil, err
	}

	return &SimplifyResult{
		GroupID: groupID,
		Edges:   edges,
		Before:  graph,
		After:   final,
	}, nil
}

func (l *Ledger) simplifyFailed(ctx context.Context, span trace.Span, groupID id.GroupID, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	l.plugins.EmitSimplifyFailed(ctx, groupID, err)
	l.logger.Warn("simplification failed", "group_id", groupID, "error", err)
	return err
}

// SimplifyAll simplifies several groups concurrently, each under its own
// lock. Results are returned in input order; failed groups leave a nil
// slot and are reported together in a MultiError.
func (l *Ledger) SimplifyAll(ctx context.Context, groupIDs []id.GroupID) ([]*SimplifyResult, error) {
	results := make([]*SimplifyResult, len(groupIDs))

	var mu sync.Mutex
	var errs MultiError

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.simplifyConcurrency)
	for i, groupID := range groupIDs {
		g.Go(func() error {
			res, err := l.Simplify(gCtx, groupID)
			if err != nil {
				mu.Lock()
				errs.Add(fmt.Errorf("group %s: %w", groupID, err))
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // per-group failures are collected in errs

	if errs.HasErrors() {
		return results, errs
	}
	return results, nil
}

// ──────────────────────────────────────────────────
// Auto-simplify worker
// ──────────────────────────────────────────────────

func (l *Ledger) enqueueSimplify(groupID id.GroupID) {
	if !l.autoSimplify {
		return
	}
	select {
	case l.simplifyQueue <- groupID:
	default:
		l.logger.Warn("simplify queue full, group will be picked up on its next entry",
			"group_id", groupID,
			"error", ErrSimplifyQueueFull,
		)
	}
}

// simplifyWorker batches groups touched by new entries and simplifies them
// when the batch fills or the interval elapses.
func (l *Ledger) simplifyWorker(ctx context.Context) {
	defer l.wg.Done()

	pending := make(map[id.GroupID]struct{}, l.simplifyBatchSize)
	ticker := time.NewTicker(l.simplifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			// Final flush
		drain:
			for {
				select {
				case groupID := <-l.simplifyQueue:
					pending[groupID] = struct{}{}
				default:
					break drain
				}
			}
			l.flushSimplifyBatch(ctx, pending)
			return

		case groupID := <-l.simplifyQueue:
			pending[groupID] = struct{}{}
			if len(pending) >= l.simplifyBatchSize {
				l.flushSimplifyBatch(ctx, pending)
				clear(pending)
			}

		case <-ticker.C:
			l.flushSimplifyBatch(ctx, pending)
			clear(pending)
		}
	}
}

func (l *Ledger) flushSimplifyBatch(ctx context.Context, pending map[id.GroupID]struct{}) {
	if len(pending) == 0 {
		return
	}
	start := time.Now()

	groupIDs := make([]id.GroupID, 0, len(pending))
	for groupID := range pending {
		groupIDs = append(groupIDs, groupID)
	}
	slices.SortFunc(groupIDs, func(a, b id.GroupID) int { return a.Compare(b) })

	results, err := l.SimplifyAll(ctx, groupIDs)
	if err != nil {
		l.logger.Error("failed to simplify batch",
			"error", err,
			"batch_size", len(groupIDs),
		)
	}

	appended := 0
	for _, r := range results {
		if r != nil && r.Entry != nil {
			appended++
		}
	}
	l.logger.Debug("simplified batch",
		"batch_size", len(groupIDs),
		"appended", appended,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
