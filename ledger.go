package tally

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/types"
)

var tracer = otel.Tracer("github.com/xraph/tally")

// Ledger records group expenses and settlements and derives balances and
// debt simplifications from them.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	locker  lock.Locker

	// Auto-simplify worker
	simplifyQueue chan id.GroupID
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	// Configuration
	skipMigrate         bool
	tolerance           int64
	lockTimeout         time.Duration
	autoSimplify        bool
	simplifyInterval    time.Duration
	simplifyBatchSize   int
	simplifyConcurrency int
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:               s,
		plugins:             plugin.NewRegistry(),
		logger:              slog.Default(),
		locker:              lock.NewLocal(),
		simplifyQueue:       make(chan id.GroupID, 1024),
		stopChan:            make(chan struct{}),
		lockTimeout:         30 * time.Second,
		simplifyInterval:    30 * time.Second,
		simplifyBatchSize:   64,
		simplifyConcurrency: 4,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithLocker replaces the in-process group locker, e.g. with pglock when
// several processes write to the same database.
func WithLocker(locker lock.Locker) Option {
	return func(l *Ledger) {
		l.locker = locker
	}
}

// WithTolerance treats debts of at most tol minor units as settled when
// cancelling cycles.
func WithTolerance(tol int64) Option {
	return func(l *Ledger) {
		l.tolerance = tol
	}
}

// WithLockTimeout bounds how long Simplify waits for a group's lock.
func WithLockTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.lockTimeout = d
	}
}

// WithAutoSimplify simplifies groups that received new entries every interval.
func WithAutoSimplify(interval time.Duration) Option {
	return func(l *Ledger) {
		l.autoSimplify = true
		if interval > 0 {
			l.simplifyInterval = interval
		}
	}
}

// WithSimplifyConcurrency caps how many groups SimplifyAll processes at once.
func WithSimplifyConcurrency(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.simplifyConcurrency = n
		}
	}
}

// WithoutMigrate makes Start skip store migrations, for deployments that
// migrate out of band.
func WithoutMigrate() Option {
	return func(l *Ledger) {
		l.skipMigrate = true
	}
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Start migrates the store and begins background workers.
func (l *Ledger) Start(ctx context.Context) error {
	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	l.plugins.EmitInit(ctx, l)

	if l.autoSimplify {
		l.wg.Add(1)
		go l.simplifyWorker(context.WithoutCancel(ctx))
	}

	l.logger.Info("tally started",
		"auto_simplify", l.autoSimplify,
		"simplify_interval", l.simplifyInterval,
		"tolerance", l.tolerance,
	)

	return nil
}

// Stop drains the worker and shuts down the Ledger.
func (l *Ledger) Stop() error {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Groups
// ──────────────────────────────────────────────────

// CreateGroup creates a new group. The creator, when set, becomes a member.
func (l *Ledger) CreateGroup(ctx context.Context, g *group.Group) error {
	if g.ID.IsNil() {
		g.ID = id.NewGroupID()
	}
	g.Entity = types.NewEntity()
	g.Currency = strings.ToLower(g.Currency)
	g.Name = strings.TrimSpace(g.Name)
	members := slices.Clone(g.Members)
	if !g.CreatedBy.IsZero() {
		members = append(members, g.CreatedBy)
	}
	g.Members = nil
	g.AddMembers(members...)

	if err := ValidateGroup(g); err != nil {
		return err
	}

	if err := l.store.CreateGroup(ctx, g); err != nil {
		return err
	}

	l.plugins.EmitGroupCreated(ctx, g)
	return nil
}

// GetGroup retrieves a group by ID.
func (l *Ledger) GetGroup(ctx context.Context, groupID id.GroupID) (*group.Group, error) {
	return l.store.GetGroup(ctx, groupID)
}

// ListGroups lists groups, optionally only those a participant belongs to.
func (l *Ledger) ListGroups(ctx context.Context, opts group.ListOpts) ([]*group.Group, error) {
	return l.store.ListGroups(ctx, opts)
}

// RenameGroup changes a group's display name.
func (l *Ledger) RenameGroup(ctx context.Context, groupID id.GroupID, name string) (*group.Group, error) {
	release, err := l.lockGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer release()

	g, err := l.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	g.Name = strings.TrimSpace(name)
	if err := ValidateGroup(g); err != nil {
		return nil, err
	}
	g.Touch()

	if err := l.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// AddMembers adds participants to a group and returns those that were not
// already members.
func (l *Ledger) AddMembers(ctx context.Context, groupID id.GroupID, ps ...types.Participant) ([]types.Participant, error) {
	release, err := l.lockGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	defer release()

	g, err := l.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	added := g.AddMembers(ps...)
	if len(added) == 0 {
		return nil, nil
	}
	g.Touch()

	if err := l.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}

	l.plugins.EmitMembersAdded(ctx, g, added)
	l.logger.Debug("members added", "group_id", groupID, "added", len(added))
	return added, nil
}

// ──────────────────────────────────────────────────
// Entries
// ──────────────────────────────────────────────────

// RecordExpense validates and appends an expense entry.
func (l *Ledger) RecordExpense(ctx context.Context, e *entry.Entry) error {
	e.Kind = entry.KindExpense
	return l.RecordEntry(ctx, e)
}

// RecordSettlement validates and appends a settlement entry.
func (l *Ledger) RecordSettlement(ctx context.Context, e *entry.Entry) error {
	e.Kind = entry.KindSettlement
	return l.RecordEntry(ctx, e)
}

// RecordEntry validates e against its group and appends it. Entries are
// immutable once recorded. A preset ID and CreatedAt are kept, which lets
// history be imported.
func (l *Ledger) RecordEntry(ctx context.Context, e *entry.Entry) error {
	g, err := l.store.GetGroup(ctx, e.GroupID)
	if err != nil {
		return err
	}

	if e.Currency == "" {
		e.Currency = g.Currency
	}
	e.Currency = strings.ToLower(e.Currency)
	if e.ID.IsNil() {
		e.ID = entry.NewID(e.Kind)
	} else if kind, ok := entry.KindOf(e.ID); !ok || kind != e.Kind {
		return ValidationError{Field: "id", Message: fmt.Sprintf("prefix %q does not match kind %q", e.ID.Prefix(), e.Kind)}
	}
	if e.CreatedAt.IsZero() {
		e.Entity = types.NewEntity()
	}

	if err := ValidateEntry(e, g); err != nil {
		return err
	}

	if err := l.store.AppendEntry(ctx, e); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	l.plugins.EmitEntryRecorded(ctx, e)
	l.enqueueSimplify(e.GroupID)
	return nil
}

// GetEntry retrieves an entry by ID.
func (l *Ledger) GetEntry(ctx context.Context, entryID id.EntryID) (*entry.Entry, error) {
	return l.store.GetEntry(ctx, entryID)
}

// ListEntries returns a group's activity feed in ledger order.
func (l *Ledger) ListEntries(ctx context.Context, groupID id.GroupID, opts entry.ListOpts) ([]*entry.Entry, error) {
	return l.store.ListEntries(ctx, groupID, opts)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func lockKey(groupID id.GroupID) string {
	return "tally:" + groupID.String()
}

// lockGroup takes the group's write lock, bounded by the lock timeout.
func (l *Ledger) lockGroup(ctx context.Context, groupID id.GroupID) (func(), error) {
	lockCtx := ctx
	if l.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.lockTimeout)
		defer cancel()
	}

	release, err := l.locker.Lock(lockCtx, lockKey(groupID))
	if err != nil {
		if ctx.Err() == nil && lockCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, groupID)
		}
		return nil, err
	}
	return release, nil
}
