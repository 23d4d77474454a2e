package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/vesting"
)

// DefaultTimeout bounds each plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so dispatch never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onEvent            []OnEvent
	onPriceUpdated     []OnPriceUpdated
	onTokensAllocated  []OnTokensAllocated
	onTokensLocked     []OnTokensLocked
	onDonationRecorded []OnDonationRecorded
	onTokensClaimed    []OnTokensClaimed
	onOwnerWithdrawal  []OnOwnerWithdrawal
	onDonationsFlushed []OnDonationsFlushed
	onTokensDeposited  []OnTokensDeposited
	onParameterChanged []OnParameterChanged
	onRoleChanged      []OnRoleChanged
	onOperationFailed  []OnOperationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout. Non-positive values keep
// the current timeout.
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

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
	}
	if v, ok := p.(OnPriceUpdated); ok {
		r.onPriceUpdated = append(r.onPriceUpdated, v)
	}
	if v, ok := p.(OnTokensAllocated); ok {
		r.onTokensAllocated = append(r.onTokensAllocated, v)
	}
	if v, ok := p.(OnTokensLocked); ok {
		r.onTokensLocked = append(r.onTokensLocked, v)
	}
	if v, ok := p.(OnDonationRecorded); ok {
		r.onDonationRecorded = append(r.onDonationRecorded, v)
	}
	if v, ok := p.(OnTokensClaimed); ok {
		r.onTokensClaimed = append(r.onTokensClaimed, v)
	}
	if v, ok := p.(OnOwnerWithdrawal); ok {
		r.onOwnerWithdrawal = append(r.onOwnerWithdrawal, v)
	}
	if v, ok := p.(OnDonationsFlushed); ok {
		r.onDonationsFlushed = append(r.onDonationsFlushed, v)
	}
	if v, ok := p.(OnTokensDeposited); ok {
		r.onTokensDeposited = append(r.onTokensDeposited, v)
	}
	if v, ok := p.(OnParameterChanged); ok {
		r.onParameterChanged = append(r.onParameterChanged, v)
	}
	if v, ok := p.(OnRoleChanged); ok {
		r.onRoleChanged = append(r.onRoleChanged, v)
	}
	if v, ok := p.(OnOperationFailed); ok {
		r.onOperationFailed = append(r.onOperationFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnEvent)(nil)).Elem(), "OnEvent")
	checkInterface(reflect.TypeOf((*OnPriceUpdated)(nil)).Elem(), "OnPriceUpdated")
	checkInterface(reflect.TypeOf((*OnTokensAllocated)(nil)).Elem(), "OnTokensAllocated")
	checkInterface(reflect.TypeOf((*OnTokensLocked)(nil)).Elem(), "OnTokensLocked")
	checkInterface(reflect.TypeOf((*OnDonationRecorded)(nil)).Elem(), "OnDonationRecorded")
	checkInterface(reflect.TypeOf((*OnTokensClaimed)(nil)).Elem(), "OnTokensClaimed")
	checkInterface(reflect.TypeOf((*OnOwnerWithdrawal)(nil)).Elem(), "OnOwnerWithdrawal")
	checkInterface(reflect.TypeOf((*OnDonationsFlushed)(nil)).Elem(), "OnDonationsFlushed")
	checkInterface(reflect.TypeOf((*OnTokensDeposited)(nil)).Elem(), "OnTokensDeposited")
	checkInterface(reflect.TypeOf((*OnParameterChanged)(nil)).Elem(), "OnParameterChanged")
	checkInterface(reflect.TypeOf((*OnRoleChanged)(nil)).Elem(), "OnRoleChanged")
	checkInterface(reflect.TypeOf((*OnOperationFailed)(nil)).Elem(), "OnOperationFailed")

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
// Lifecycle dispatch
// ──────────────────────────────────────────────────

// EmitInit notifies all OnInit plugins.
func (r *Registry) EmitInit(ctx context.Context, state *sale.State) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, state)
		})
	}
}

// EmitShutdown notifies all OnShutdown plugins.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitOperationFailed notifies all OnOperationFailed plugins.
func (r *Registry) EmitOperationFailed(ctx context.Context, op string, opErr error) {
	r.mu.RLock()
	plugins := r.onOperationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnOperationFailed", func() error {
			return p.OnOperationFailed(ctx, op, opErr)
		})
	}
}

// ──────────────────────────────────────────────────
// Event dispatch
// ──────────────────────────────────────────────────

// Emit notifies OnEvent plugins and then the typed hook for evt.Type.
// lock is the buyer's lock after the operation, or nil for events that
// do not touch a lock.
func (r *Registry) Emit(ctx context.Context, evt *event.Event, lock *vesting.Lock) {
	r.mu.RLock()
	all := r.onEvent
	r.mu.RUnlock()

	for _, p := range all {
		r.call(ctx, p.Name(), "OnEvent", func() error {
			return p.OnEvent(ctx, evt)
		})
	}

	switch evt.Type {
	case event.TypePriceUpdated:
		r.emitPriceUpdated(ctx, evt)
	case event.TypeTokensAllocated:
		r.emitTokensAllocated(ctx, lock, evt)
	case event.TypeTokensLocked:
		r.emitTokensLocked(ctx, lock, evt)
	case event.TypeDonationRecorded:
		r.emitDonationRecorded(ctx, evt)
	case event.TypeTokensClaimed:
		r.emitTokensClaimed(ctx, lock, evt)
	case event.TypeOwnerWithdrawal:
		r.emitOwnerWithdrawal(ctx, evt)
	case event.TypeDonationsFlushed:
		r.emitDonationsFlushed(ctx, evt)
	case event.TypeTokensDeposited:
		r.emitTokensDeposited(ctx, evt)
	case event.TypeThresholdUpdated, event.TypeIncrementThresholdUpdated, event.TypeCharityUpdated:
		r.emitParameterChanged(ctx, evt)
	case event.TypeRoleGranted, event.TypeRoleRevoked:
		r.emitRoleChanged(ctx, evt)
	}
}

func (r *Registry) emitPriceUpdated(ctx context.Context, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onPriceUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnPriceUpdated", func() error {
			return p.OnPriceUpdated(ctx, evt)
		})
	}
}

func (r *Registry) emitTokensAllocated(ctx context.Context, lock *vesting.Lock, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onTokensAllocated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnTokensAllocated", func() error {
			return p.OnTokensAllocated(ctx, lock, evt)
		})
	}
}

func (r *Registry) emitTokensLocked(ctx context.Context, lock *vesting.Lock, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onTokensLocked
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnTokensLocked", func() error {
			return p.OnTokensLocked(ctx, lock, evt)
		})
	}
}

func (r *Registry) emitDonationRecorded(ctx context.Context, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onDonationRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnDonationRecorded", func() error {
			return p.OnDonationRecorded(ctx, evt)
		})
	}
}

func (r *Registry) emitTokensClaimed(ctx context.Context, lock *vesting.Lock, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onTokensClaimed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnTokensClaimed", func() error {
			return p.OnTokensClaimed(ctx, lock, evt)
		})
	}
}

func (r *Registry) emitOwnerWithdrawal(ctx context.Context, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onOwnerWithdrawal
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnOwnerWithdrawal", func() error {
			return p.OnOwnerWithdrawal(ctx, evt)
		})
	}
}

func (r *Registry) emitDonationsFlushed(ctx context.Context, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onDonationsFlushed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnDonationsFlushed", func() error {
			return p.OnDonationsFlushed(ctx, evt)
		})
	}
}

func (r *Registry) emitTokensDeposited(ctx context.Context, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onTokensDeposited
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnTokensDeposited", func() error {
			return p.OnTokensDeposited(ctx, evt)
		})
	}
}

func (r *Registry) emitParameterChanged(ctx context.Context, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onParameterChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnParameterChanged", func() error {
			return p.OnParameterChanged(ctx, evt)
		})
	}
}

func (r *Registry) emitRoleChanged(ctx context.Context, evt *event.Event) {
	r.mu.RLock()
	plugins := r.onRoleChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnRoleChanged", func() error {
			return p.OnRoleChanged(ctx, evt)
		})
	}
}

// call runs fn with the registry timeout and logs a failure.
func (r *Registry) call(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
