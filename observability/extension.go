// Package observability provides a metrics extension for Tally that records
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin           = (*MetricsExtension)(nil)
	_ plugin.OnInit           = (*MetricsExtension)(nil)
	_ plugin.OnGroupCreated   = (*MetricsExtension)(nil)
	_ plugin.OnMembersAdded   = (*MetricsExtension)(nil)
	_ plugin.OnEntryRecorded  = (*MetricsExtension)(nil)
	_ plugin.OnSimplified     = (*MetricsExtension)(nil)
	_ plugin.OnSimplifyFailed = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Ledger plugin to track group and debt activity.
type MetricsExtension struct {
	factory MetricFactory

	// Group metrics
	GroupCreated Counter
	MembersAdded Counter

	// Entry metrics
	ExpenseRecorded    Counter
	SettlementRecorded Counter
	EntryParticipants  Histogram

	// Simplification metrics
	SimplifyAppended Counter
	SimplifyFailed   Counter
	InvalidGraph     Counter
	CancelledEdges   Histogram
	CancelledAmount  Histogram
	SimplifyLatency  Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		GroupCreated: factory.Counter("tally.group.created"),
		MembersAdded: factory.Counter("tally.group.members_added"),

		ExpenseRecorded:    factory.Counter("tally.entry.expense.recorded"),
		SettlementRecorded: factory.Counter("tally.entry.settlement.recorded"),
		EntryParticipants:  factory.Histogram("tally.entry.participants"),

		SimplifyAppended: factory.Counter("tally.simplify.appended"),
		SimplifyFailed:   factory.Counter("tally.simplify.failed"),
		InvalidGraph:     factory.Counter("tally.simplify.invalid_graph"),
		CancelledEdges:   factory.Histogram("tally.simplify.cancelled_edges"),
		CancelledAmount:  factory.Histogram("tally.simplify.cancelled_amount"),
		SimplifyLatency:  factory.Histogram("tally.simplify.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnGroupCreated implements plugin.OnGroupCreated.
func (m *MetricsExtension) OnGroupCreated(_ context.Context, _ *group.Group) error {
	m.GroupCreated.Inc()
	return nil
}

// OnMembersAdded implements plugin.OnMembersAdded.
func (m *MetricsExtension) OnMembersAdded(_ context.Context, _ *group.Group, added []types.Participant) error {
	m.MembersAdded.Add(float64(len(added)))
	return nil
}

// OnEntryRecorded implements plugin.OnEntryRecorded.
func (m *MetricsExtension) OnEntryRecorded(_ context.Context, e *entry.Entry) error {
	switch e.Kind {
	case entry.KindExpense:
		m.ExpenseRecorded.Inc()
	case entry.KindSettlement:
		m.SettlementRecorded.Inc()
	}
	m.EntryParticipants.Observe(float64(len(e.Participants())))
	return nil
}

// OnSimplified implements plugin.OnSimplified.
func (m *MetricsExtension) OnSimplified(_ context.Context, _ id.GroupID, _ *entry.Entry, edges []debt.CancellationEdge, elapsed time.Duration) error {
	var amount int64
	for _, e := range edges {
		amount += e.Amount
	}
	m.SimplifyAppended.Inc()
	m.CancelledEdges.Observe(float64(len(edges)))
	m.CancelledAmount.Observe(float64(amount))
	m.SimplifyLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnSimplifyFailed implements plugin.OnSimplifyFailed.
func (m *MetricsExtension) OnSimplifyFailed(_ context.Context, _ id.GroupID, err error) error {
	m.SimplifyFailed.Inc()
	if errors.Is(err, debt.ErrInvalidGraph) {
		m.InvalidGraph.Inc()
	}
	return nil
}
