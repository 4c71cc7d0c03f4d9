// Package plugin provides an extensible plugin system for Tally.
// Plugins can hook into ledger lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts. l is the *tally.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Group hooks
// ──────────────────────────────────────────────────

// OnGroupCreated is called when a new group is created.
type OnGroupCreated interface {
	Plugin
	OnGroupCreated(ctx context.Context, g *group.Group) error
}

// OnMembersAdded is called with the participants that actually joined.
type OnMembersAdded interface {
	Plugin
	OnMembersAdded(ctx context.Context, g *group.Group, added []types.Participant) error
}

// ──────────────────────────────────────────────────
// Entry hooks
// ──────────────────────────────────────────────────

// OnEntryRecorded is called after an expense or settlement is appended.
type OnEntryRecorded interface {
	Plugin
	OnEntryRecorded(ctx context.Context, e *entry.Entry) error
}

// ──────────────────────────────────────────────────
// Simplification hooks
// ──────────────────────────────────────────────────

// OnSimplified is called after a simplification entry is appended.
type OnSimplified interface {
	Plugin
	OnSimplified(ctx context.Context, groupID id.GroupID, e *entry.Entry, edges []debt.CancellationEdge, elapsed time.Duration) error
}

// OnSimplifyFailed is called when a simplification run fails.
type OnSimplifyFailed interface {
	Plugin
	OnSimplifyFailed(ctx context.Context, groupID id.GroupID, err error) error
}
