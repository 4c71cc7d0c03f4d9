// Package memory is an in-process store.Store for tests, the CLI and
// single-node deployments. Records are copied on the way in and out so
// callers never share state with the store.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xraph/tally"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	groups map[string]*group.Group

	// entries per group, kept in (created_at, id) order
	entries map[string][]*entry.Entry
	byID    map[string]*entry.Entry
}

func New() *Store {
	return &Store{
		groups:  make(map[string]*group.Group),
		entries: make(map[string][]*entry.Entry),
		byID:    make(map[string]*entry.Entry),
	}
}

// ──────────────────────────────────────────────────
// Groups
// ──────────────────────────────────────────────────

func (s *Store) CreateGroup(_ context.Context, g *group.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[g.ID.String()]; exists {
		return tally.ErrAlreadyExists
	}
	s.groups[g.ID.String()] = cloneGroup(g)
	return nil
}

func (s *Store) GetGroup(_ context.Context, groupID id.GroupID) (*group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if g, ok := s.groups[groupID.String()]; ok {
		return cloneGroup(g), nil
	}
	return nil, tally.ErrGroupNotFound
}

func (s *Store) ListGroups(_ context.Context, opts group.ListOpts) ([]*group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*group.Group, 0)
	for _, g := range s.groups {
		if opts.Member == "" || g.HasMember(opts.Member) {
			result = append(result, g)
		}
	}
	slices.SortFunc(result, func(a, b *group.Group) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})

	result = paginate(result, opts.Offset, opts.Limit)
	out := make([]*group.Group, len(result))
	for i, g := range result {
		out[i] = cloneGroup(g)
	}
	return out, nil
}

func (s *Store) UpdateGroup(_ context.Context, g *group.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[g.ID.String()]; !exists {
		return tally.ErrGroupNotFound
	}
	s.groups[g.ID.String()] = cloneGroup(g)
	return nil
}

// ──────────────────────────────────────────────────
// Entries
// ──────────────────────────────────────────────────

func (s *Store) AppendEntry(_ context.Context, e *entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[e.GroupID.String()]; !ok {
		return tally.ErrGroupNotFound
	}
	if _, exists := s.byID[e.ID.String()]; exists {
		return tally.ErrAlreadyExists
	}

	stored := cloneEntry(e)
	list := s.entries[e.GroupID.String()]
	i, _ := slices.BinarySearchFunc(list, stored, compareEntries)
	s.entries[e.GroupID.String()] = slices.Insert(list, i, stored)
	s.byID[e.ID.String()] = stored
	return nil
}

func (s *Store) GetEntry(_ context.Context, entryID id.EntryID) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.byID[entryID.String()]; ok {
		return cloneEntry(e), nil
	}
	return nil, tally.ErrEntryNotFound
}

func (s *Store) ListEntries(_ context.Context, groupID id.GroupID, opts entry.ListOpts) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*entry.Entry, 0)
	for _, e := range s.entries[groupID.String()] {
		if opts.Matches(e) {
			result = append(result, e)
		}
	}

	result = paginate(result, opts.Offset, opts.Limit)
	out := make([]*entry.Entry, len(result))
	for i, e := range result {
		out[i] = cloneEntry(e)
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func compareEntries(a, b *entry.Entry) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return a.ID.Compare(b.ID)
}

func paginate[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}

func cloneGroup(g *group.Group) *group.Group {
	c := *g
	c.Members = slices.Clone(g.Members)
	c.Metadata = maps.Clone(g.Metadata)
	return &c
}

func cloneEntry(e *entry.Entry) *entry.Entry {
	c := *e
	c.Payers = slices.Clone(e.Payers)
	c.Splits = slices.Clone(e.Splits)
	c.Details = slices.Clone(e.Details)
	c.Transfers = slices.Clone(e.Transfers)
	c.Metadata = maps.Clone(e.Metadata)
	return &c
}
