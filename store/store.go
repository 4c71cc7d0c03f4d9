package store

import (
	"context"

	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
)

// Store is the unified storage interface for tally records.
// Methods are declared explicitly rather than embedding group.Store and
// entry.Store because both use the same short method names.
type Store interface {
	// Group methods
	CreateGroup(ctx context.Context, g *group.Group) error
	GetGroup(ctx context.Context, groupID id.GroupID) (*group.Group, error)
	ListGroups(ctx context.Context, opts group.ListOpts) ([]*group.Group, error)
	UpdateGroup(ctx context.Context, g *group.Group) error

	// Entry methods
	AppendEntry(ctx context.Context, e *entry.Entry) error
	GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error)
	ListEntries(ctx context.Context, groupID id.GroupID, opts entry.ListOpts) ([]*entry.Entry, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
