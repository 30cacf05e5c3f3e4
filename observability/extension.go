// Package observability provides a metrics extension for Treasury that
// records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"math/big"

	"github.com/fundpipe/treasury/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnInit            = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded = (*MetricsExtension)(nil)
	_ plugin.OnBalanceAdded    = (*MetricsExtension)(nil)
	_ plugin.OnDistribution    = (*MetricsExtension)(nil)
	_ plugin.OnAllowanceUsed   = (*MetricsExtension)(nil)
	_ plugin.OnPayout          = (*MetricsExtension)(nil)
	_ plugin.OnRedemption      = (*MetricsExtension)(nil)
	_ plugin.OnFeeHeld         = (*MetricsExtension)(nil)
	_ plugin.OnFeeRefunded     = (*MetricsExtension)(nil)
	_ plugin.OnFeesProcessed   = (*MetricsExtension)(nil)
	_ plugin.OnMigration       = (*MetricsExtension)(nil)
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
// Register it as a Treasury plugin to automatically track accounting metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Payment metrics
	PaymentsRecorded Counter
	BalanceAdded     Counter

	// Distribution metrics
	Distributions  Counter
	AllowancesUsed Counter
	Payouts        Counter

	// Redemption metrics
	Redemptions Counter

	// Fee metrics
	FeesHeld      Counter
	FeesRefunded  Counter
	FeesProcessed Counter
	FeeBatchSize  Histogram

	// Migration metrics
	Migrations Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Payment metrics
		PaymentsRecorded: factory.Counter("treasury.payment.recorded"),
		BalanceAdded:     factory.Counter("treasury.balance.added"),

		// Distribution metrics
		Distributions:  factory.Counter("treasury.distribution.committed"),
		AllowancesUsed: factory.Counter("treasury.allowance.used"),
		Payouts:        factory.Counter("treasury.payout.routed"),

		// Redemption metrics
		Redemptions: factory.Counter("treasury.redemption.committed"),

		// Fee metrics
		FeesHeld:      factory.Counter("treasury.fee.held"),
		FeesRefunded:  factory.Counter("treasury.fee.refunded"),
		FeesProcessed: factory.Counter("treasury.fee.processed"),
		FeeBatchSize:  factory.Histogram("treasury.fee.batch.size"),

		// Migration metrics
		Migrations: factory.Counter("treasury.migration.committed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, _ interface{}) error {
	m.PaymentsRecorded.Inc()
	return nil
}

// OnBalanceAdded implements plugin.OnBalanceAdded.
func (m *MetricsExtension) OnBalanceAdded(_ context.Context, _ uint64, _ *big.Int) error {
	m.BalanceAdded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Distribution hooks
// ──────────────────────────────────────────────────

// OnDistribution implements plugin.OnDistribution.
func (m *MetricsExtension) OnDistribution(_ context.Context, _ interface{}) error {
	m.Distributions.Inc()
	return nil
}

// OnAllowanceUsed implements plugin.OnAllowanceUsed.
func (m *MetricsExtension) OnAllowanceUsed(_ context.Context, _, _ uint64, _ *big.Int) error {
	m.AllowancesUsed.Inc()
	return nil
}

// OnPayout implements plugin.OnPayout.
func (m *MetricsExtension) OnPayout(_ context.Context, _ interface{}) error {
	m.Payouts.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Redemption hooks
// ──────────────────────────────────────────────────

// OnRedemption implements plugin.OnRedemption.
func (m *MetricsExtension) OnRedemption(_ context.Context, _ interface{}) error {
	m.Redemptions.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Fee hooks
// ──────────────────────────────────────────────────

// OnFeeHeld implements plugin.OnFeeHeld.
func (m *MetricsExtension) OnFeeHeld(_ context.Context, _ uint64, _ *big.Int) error {
	m.FeesHeld.Inc()
	return nil
}

// OnFeeRefunded implements plugin.OnFeeRefunded.
func (m *MetricsExtension) OnFeeRefunded(_ context.Context, _ uint64, _ *big.Int) error {
	m.FeesRefunded.Inc()
	return nil
}

// OnFeesProcessed implements plugin.OnFeesProcessed.
func (m *MetricsExtension) OnFeesProcessed(_ context.Context, _ uint64, count int, _ *big.Int) error {
	m.FeesProcessed.Inc()
	m.FeeBatchSize.Observe(float64(count))
	return nil
}

// ──────────────────────────────────────────────────
// Migration hooks
// ──────────────────────────────────────────────────

// OnMigration implements plugin.OnMigration.
func (m *MetricsExtension) OnMigration(_ context.Context, _ uint64, _ string, _ *big.Int) error {
	m.Migrations.Inc()
	return nil
}
