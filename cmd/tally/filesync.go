package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/types"
)

var (
	_ plugin.OnGroupCreated  = (*fileSync)(nil)
	_ plugin.OnMembersAdded  = (*fileSync)(nil)
	_ plugin.OnEntryRecorded = (*fileSync)(nil)
	_ plugin.OnSimplified    = (*fileSync)(nil)
	_ plugin.OnShutdown      = (*fileSync)(nil)
)

// fileSync rewrites the ledger file after every change to the ledger it is
// attached to, and once more on shutdown so renames are kept too.
type fileSync struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	ledger *tally.Ledger
}

func newFileSync(path string, logger *slog.Logger) *fileSync {
	return &fileSync{path: path, logger: logger}
}

func (s *fileSync) Name() string { return "ledger-file" }

// attach starts syncing l. Changes made before attach, such as loading
// the file itself, are not written.
func (s *fileSync) attach(l *tally.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = l
}

func (s *fileSync) OnGroupCreated(ctx context.Context, _ *group.Group) error {
	return s.save(ctx)
}

func (s *fileSync) OnMembersAdded(ctx context.Context, _ *group.Group, _ []types.Participant) error {
	return s.save(ctx)
}

func (s *fileSync) OnEntryRecorded(ctx context.Context, _ *entry.Entry) error {
	return s.save(ctx)
}

func (s *fileSync) OnSimplified(ctx context.Context, _ id.GroupID, _ *entry.Entry, _ []debt.CancellationEdge, _ time.Duration) error {
	return s.save(ctx)
}

func (s *fileSync) OnShutdown(ctx context.Context) error {
	return s.save(ctx)
}

func (s *fileSync) save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger == nil {
		return nil
	}
	groups, err := s.ledger.ListGroups(ctx, group.ListOpts{})
	if err != nil {
		return err
	}
	f, err := dump(ctx, s.ledger, groups)
	if err != nil {
		return err
	}
	if err := writeLedgerFile(s.path, f); err != nil {
		return err
	}
	s.logger.Debug("ledger file written", "path", s.path, "groups", len(groups))
	return nil
}
