// Package audithook turns group, entry and simplification events into audit
// records. Backends plug in through the Recorder interface.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnGroupCreated   = (*Extension)(nil)
	_ plugin.OnMembersAdded   = (*Extension)(nil)
	_ plugin.OnEntryRecorded  = (*Extension)(nil)
	_ plugin.OnSimplified     = (*Extension)(nil)
	_ plugin.OnSimplifyFailed = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension records tally lifecycle events through a Recorder.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Group hooks
// ──────────────────────────────────────────────────

// OnGroupCreated implements plugin.OnGroupCreated.
func (e *Extension) OnGroupCreated(ctx context.Context, g *group.Group) error {
	return e.record(ctx, ActionGroupCreated, SeverityInfo, OutcomeSuccess,
		ResourceGroup, g.ID.String(), CategoryMembership, nil,
		"name", g.Name,
		"currency", g.Currency,
		"members", len(g.Members),
		"created_by", string(g.CreatedBy),
	)
}

// OnMembersAdded implements plugin.OnMembersAdded.
func (e *Extension) OnMembersAdded(ctx context.Context, g *group.Group, added []types.Participant) error {
	return e.record(ctx, ActionMembersAdded, SeverityInfo, OutcomeSuccess,
		ResourceGroup, g.ID.String(), CategoryMembership, nil,
		"added", added,
		"members", len(g.Members),
	)
}

// ──────────────────────────────────────────────────
// Entry hooks
// ──────────────────────────────────────────────────

// OnEntryRecorded implements plugin.OnEntryRecorded.
func (e *Extension) OnEntryRecorded(ctx context.Context, en *entry.Entry) error {
	switch en.Kind {
	case entry.KindExpense:
		return e.record(ctx, ActionExpenseRecorded, SeverityInfo, OutcomeSuccess,
			ResourceExpense, en.ID.String(), CategoryLedger, nil,
			"group_id", en.GroupID.String(),
			"currency", en.Currency,
			"total", entry.Total(en.Payers),
			"participants", len(en.Participants()),
		)
	case entry.KindSettlement:
		return e.record(ctx, ActionSettlementRecorded, SeverityInfo, OutcomeSuccess,
			ResourceSettlement, en.ID.String(), CategoryLedger, nil,
			"group_id", en.GroupID.String(),
			"currency", en.Currency,
			"settler", string(en.Settler),
			"total", entry.Total(en.Details),
		)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Simplification hooks
// ──────────────────────────────────────────────────

// OnSimplified implements plugin.OnSimplified.
func (e *Extension) OnSimplified(ctx context.Context, groupID id.GroupID, en *entry.Entry, edges []debt.CancellationEdge, elapsed time.Duration) error {
	var cancelled int64
	for _, edge := range edges {
		cancelled += edge.Amount
	}
	return e.record(ctx, ActionSimplificationAppended, SeverityInfo, OutcomeSuccess,
		ResourceSimplification, en.ID.String(), CategoryDebt, nil,
		"group_id", groupID.String(),
		"edges", len(edges),
		"cancelled", cancelled,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnSimplifyFailed implements plugin.OnSimplifyFailed.
func (e *Extension) OnSimplifyFailed(ctx context.Context, groupID id.GroupID, err error) error {
	severity := SeverityError
	if errors.Is(err, debt.ErrInvalidGraph) {
		severity = SeverityCritical
	}
	return e.record(ctx, ActionSimplificationFailed, severity, OutcomeFailure,
		ResourceGroup, groupID.String(), CategoryDebt, err,
		"group_id", groupID.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
