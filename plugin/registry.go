package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit            []OnInit
	onShutdown        []OnShutdown
	onPaymentRecorded []OnPaymentRecorded
	onBalanceAdded    []OnBalanceAdded
	onDistribution    []OnDistribution
	onAllowanceUsed   []OnAllowanceUsed
	onPayout          []OnPayout
	onRedemption      []OnRedemption
	onFeeHeld         []OnFeeHeld
	onFeeRefunded     []OnFeeRefunded
	onFeesProcessed   []OnFeesProcessed
	onMigration       []OnMigration
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
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
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
	}
	if v, ok := p.(OnBalanceAdded); ok {
		r.onBalanceAdded = append(r.onBalanceAdded, v)
	}
	if v, ok := p.(OnDistribution); ok {
		r.onDistribution = append(r.onDistribution, v)
	}
	if v, ok := p.(OnAllowanceUsed); ok {
		r.onAllowanceUsed = append(r.onAllowanceUsed, v)
	}
	if v, ok := p.(OnPayout); ok {
		r.onPayout = append(r.onPayout, v)
	}
	if v, ok := p.(OnRedemption); ok {
		r.onRedemption = append(r.onRedemption, v)
	}
	if v, ok := p.(OnFeeHeld); ok {
		r.onFeeHeld = append(r.onFeeHeld, v)
	}
	if v, ok := p.(OnFeeRefunded); ok {
		r.onFeeRefunded = append(r.onFeeRefunded, v)
	}
	if v, ok := p.(OnFeesProcessed); ok {
		r.onFeesProcessed = append(r.onFeesProcessed, v)
	}
	if v, ok := p.(OnMigration); ok {
		r.onMigration = append(r.onMigration, v)
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

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnPaymentRecorded)(nil)).Elem(), "OnPaymentRecorded")
	checkInterface(reflect.TypeOf((*OnBalanceAdded)(nil)).Elem(), "OnBalanceAdded")
	checkInterface(reflect.TypeOf((*OnDistribution)(nil)).Elem(), "OnDistribution")
	checkInterface(reflect.TypeOf((*OnAllowanceUsed)(nil)).Elem(), "OnAllowanceUsed")
	checkInterface(reflect.TypeOf((*OnPayout)(nil)).Elem(), "OnPayout")
	checkInterface(reflect.TypeOf((*OnRedemption)(nil)).Elem(), "OnRedemption")
	checkInterface(reflect.TypeOf((*OnFeeHeld)(nil)).Elem(), "OnFeeHeld")
	checkInterface(reflect.TypeOf((*OnFeeRefunded)(nil)).Elem(), "OnFeeRefunded")
	checkInterface(reflect.TypeOf((*OnFeesProcessed)(nil)).Elem(), "OnFeesProcessed")
	checkInterface(reflect.TypeOf((*OnMigration)(nil)).Elem(), "OnMigration")

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

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, treasury interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, treasury)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, payment interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRecorded(ctx, payment)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBalanceAdded emits a balance added event.
func (r *Registry) EmitBalanceAdded(ctx context.Context, projectID uint64, amount *big.Int) {
	r.mu.RLock()
	plugins := r.onBalanceAdded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBalanceAdded(ctx, projectID, amount)
		}); err != nil {
			r.logger.Warn("plugin OnBalanceAdded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDistribution emits a distribution event.
func (r *Registry) EmitDistribution(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onDistribution
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDistribution(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnDistribution failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAllowanceUsed emits an allowance used event.
func (r *Registry) EmitAllowanceUsed(ctx context.Context, projectID, configuration uint64, amount *big.Int) {
	r.mu.RLock()
	plugins := r.onAllowanceUsed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAllowanceUsed(ctx, projectID, configuration, amount)
		}); err != nil {
			r.logger.Warn("plugin OnAllowanceUsed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPayout emits a payout event for each outbound transfer.
func (r *Registry) EmitPayout(ctx context.Context, payout interface{}) {
	r.mu.RLock()
	plugins := r.onPayout
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPayout(ctx, payout)
		}); err != nil {
			r.logger.Warn("plugin OnPayout failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRedemption emits a redemption event.
func (r *Registry) EmitRedemption(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onRedemption
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRedemption(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnRedemption failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFeeHeld emits a fee held event.
func (r *Registry) EmitFeeHeld(ctx context.Context, projectID uint64, amount *big.Int) {
	r.mu.RLock()
	plugins := r.onFeeHeld
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFeeHeld(ctx, projectID, amount)
		}); err != nil {
			r.logger.Warn("plugin OnFeeHeld failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFeeRefunded emits a fee refunded event.
func (r *Registry) EmitFeeRefunded(ctx context.Context, projectID uint64, refunded *big.Int) {
	r.mu.RLock()
	plugins := r.onFeeRefunded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFeeRefunded(ctx, projectID, refunded)
		}); err != nil {
			r.logger.Warn("plugin OnFeeRefunded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFeesProcessed emits a fees processed event.
func (r *Registry) EmitFeesProcessed(ctx context.Context, projectID uint64, count int, total *big.Int) {
	r.mu.RLock()
	plugins := r.onFeesProcessed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFeesProcessed(ctx, projectID, count, total)
		}); err != nil {
			r.logger.Warn("plugin OnFeesProcessed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMigration emits a balance migration event.
func (r *Registry) EmitMigration(ctx context.Context, projectID uint64, to string, amount *big.Int) {
	r.mu.RLock()
	plugins := r.onMigration
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMigration(ctx, projectID, to, amount)
		}); err != nil {
			r.logger.Warn("plugin OnMigration failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the accounting pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
