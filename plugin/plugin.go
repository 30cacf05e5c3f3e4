// Package plugin provides an extensible plugin system for Treasury.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"math/big"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, t interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called after a payment is committed to a project's
// balance. The payment argument is a *treasury.PaymentResult.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, payment interface{}) error
}

// OnBalanceAdded is called after funds are added to a project balance
// outside the payment flow.
type OnBalanceAdded interface {
	Plugin
	OnBalanceAdded(ctx context.Context, projectID uint64, amount *big.Int) error
}

// ──────────────────────────────────────────────────
// Distribution hooks
// ──────────────────────────────────────────────────

// OnDistribution is called after a payout distribution commits. The
// result argument is a *treasury.DistributionResult.
type OnDistribution interface {
	Plugin
	OnDistribution(ctx context.Context, result interface{}) error
}

// OnAllowanceUsed is called after an overflow allowance is drawn down.
type OnAllowanceUsed interface {
	Plugin
	OnAllowanceUsed(ctx context.Context, projectID uint64, configuration uint64, amount *big.Int) error
}

// OnPayout is called once per outbound transfer produced by a
// distribution, after the distribution commits.
type OnPayout interface {
	Plugin
	OnPayout(ctx context.Context, payout interface{}) error
}

// ──────────────────────────────────────────────────
// Redemption hooks
// ──────────────────────────────────────────────────

// OnRedemption is called after tokens are redeemed against overflow.
// The result argument is a *treasury.RedemptionResult.
type OnRedemption interface {
	Plugin
	OnRedemption(ctx context.Context, result interface{}) error
}

// ──────────────────────────────────────────────────
// Fee hooks
// ──────────────────────────────────────────────────

// OnFeeHeld is called when a fee is deferred instead of processed.
type OnFeeHeld interface {
	Plugin
	OnFeeHeld(ctx context.Context, projectID uint64, amount *big.Int) error
}

// OnFeeRefunded is called when held fees are refunded against a deposit.
type OnFeeRefunded interface {
	Plugin
	OnFeeRefunded(ctx context.Context, projectID uint64, refunded *big.Int) error
}

// OnFeesProcessed is called after held fees are settled to the protocol
// project.
type OnFeesProcessed interface {
	Plugin
	OnFeesProcessed(ctx context.Context, projectID uint64, count int, total *big.Int) error
}

// ──────────────────────────────────────────────────
// Migration hooks
// ──────────────────────────────────────────────────

// OnMigration is called after a project's balance migrates to another
// terminal.
type OnMigration interface {
	Plugin
	OnMigration(ctx context.Context, projectID uint64, to string, amount *big.Int) error
}
