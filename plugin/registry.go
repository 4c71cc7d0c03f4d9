package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit           []OnInit
	onShutdown       []OnShutdown
	onGroupCreated   []OnGroupCreated
	onMembersAdded   []OnMembersAdded
	onEntryRecorded  []OnEntryRecorded
	onSimplified     []OnSimplified
	onSimplifyFailed []OnSimplifyFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout bounds every hook call.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnGroupCreated); ok {
		r.onGroupCreated = append(r.onGroupCreated, v)
	}
	if v, ok := p.(OnMembersAdded); ok {
		r.onMembersAdded = append(r.onMembersAdded, v)
	}
	if v, ok := p.(OnEntryRecorded); ok {
		r.onEntryRecorded = append(r.onEntryRecorded, v)
	}
	if v, ok := p.(OnSimplified); ok {
		r.onSimplified = append(r.onSimplified, v)
	}
	if v, ok := p.(OnSimplifyFailed); ok {
		r.onSimplifyFailed = append(r.onSimplifyFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	check := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	check(reflect.TypeFor[OnInit](), "OnInit")
	check(reflect.TypeFor[OnShutdown](), "OnShutdown")
	check(reflect.TypeFor[OnGroupCreated](), "OnGroupCreated")
	check(reflect.TypeFor[OnMembersAdded](), "OnMembersAdded")
	check(reflect.TypeFor[OnEntryRecorded](), "OnEntryRecorded")
	check(reflect.TypeFor[OnSimplified](), "OnSimplified")
	check(reflect.TypeFor[OnSimplifyFailed](), "OnSimplifyFailed")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs call for every hook in hooks. Failures are logged and never
// propagated to the ledger operation that triggered them.
func emit[H Plugin](ctx context.Context, r *Registry, event string, hooks func(*Registry) []H, call func(H) error) {
	r.mu.RLock()
	list := hooks(r)
	r.mu.RUnlock()

	for _, h := range list {
		if err := r.callWithTimeout(ctx, h.Name(), func() error { return call(h) }); err != nil {
			r.logger.Warn("plugin "+event+" failed",
				"plugin", h.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	emit(ctx, r, "OnInit", func(r *Registry) []OnInit { return r.onInit }, func(h OnInit) error {
		return h.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", func(r *Registry) []OnShutdown { return r.onShutdown }, func(h OnShutdown) error {
		return h.OnShutdown(ctx)
	})
}

// EmitGroupCreated emits a group created event.
func (r *Registry) EmitGroupCreated(ctx context.Context, g *group.Group) {
	emit(ctx, r, "OnGroupCreated", func(r *Registry) []OnGroupCreated { return r.onGroupCreated }, func(h OnGroupCreated) error {
		return h.OnGroupCreated(ctx, g)
	})
}

// EmitMembersAdded emits a members added event.
func (r *Registry) EmitMembersAdded(ctx context.Context, g *group.Group, added []types.Participant) {
	emit(ctx, r, "OnMembersAdded", func(r *Registry) []OnMembersAdded { return r.onMembersAdded }, func(h OnMembersAdded) error {
		return h.OnMembersAdded(ctx, g, added)
	})
}

// EmitEntryRecorded emits an entry recorded event.
func (r *Registry) EmitEntryRecorded(ctx context.Context, e *entry.Entry) {
	emit(ctx, r, "OnEntryRecorded", func(r *Registry) []OnEntryRecorded { return r.onEntryRecorded }, func(h OnEntryRecorded) error {
		return h.OnEntryRecorded(ctx, e)
	})
}

// EmitSimplified emits a simplification appended event.
func (r *Registry) EmitSimplified(ctx context.Context, groupID id.GroupID, e *entry.Entry, edges []debt.CancellationEdge, elapsed time.Duration) {
	emit(ctx, r, "OnSimplified", func(r *Registry) []OnSimplified { return r.onSimplified }, func(h OnSimplified) error {
		return h.OnSimplified(ctx, groupID, e, edges, elapsed)
	})
}

// EmitSimplifyFailed emits a simplification failure event.
func (r *Registry) EmitSimplifyFailed(ctx context.Context, groupID id.GroupID, err error) {
	emit(ctx, r, "OnSimplifyFailed", func(r *Registry) []OnSimplifyFailed { return r.onSimplifyFailed }, func(h OnSimplifyFailed) error {
		return h.OnSimplifyFailed(ctx, groupID, err)
	})
}

// callWithTimeout executes a function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
