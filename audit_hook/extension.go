// Package audithook bridges Treasury lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/fundpipe/treasury/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnPaymentRecorded = (*Extension)(nil)
	_ plugin.OnBalanceAdded    = (*Extension)(nil)
	_ plugin.OnDistribution    = (*Extension)(nil)
	_ plugin.OnAllowanceUsed   = (*Extension)(nil)
	_ plugin.OnPayout          = (*Extension)(nil)
	_ plugin.OnRedemption      = (*Extension)(nil)
	_ plugin.OnFeeHeld         = (*Extension)(nil)
	_ plugin.OnFeeRefunded     = (*Extension)(nil)
	_ plugin.OnFeesProcessed   = (*Extension)(nil)
	_ plugin.OnMigration       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not depend on a
// concrete audit module; callers inject their backend at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Treasury lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, "", CategoryFunding, nil,
		"event", "payment_recorded",
	)
}

// OnBalanceAdded implements plugin.OnBalanceAdded.
func (e *Extension) OnBalanceAdded(ctx context.Context, projectID uint64, amount *big.Int) error {
	return e.record(ctx, ActionBalanceAdded, SeverityInfo, OutcomeSuccess,
		ResourceBalance, "", CategoryFunding, nil,
		"project_id", projectID,
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Distribution hooks
// ──────────────────────────────────────────────────

// OnDistribution implements plugin.OnDistribution.
func (e *Extension) OnDistribution(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionDistributionCommitted, SeverityInfo, OutcomeSuccess,
		ResourceDistribution, "", CategoryDistribution, nil,
		"event", "distribution_committed",
	)
}

// OnAllowanceUsed implements plugin.OnAllowanceUsed.
func (e *Extension) OnAllowanceUsed(ctx context.Context, projectID, configuration uint64, amount *big.Int) error {
	return e.record(ctx, ActionAllowanceUsed, SeverityWarning, OutcomeSuccess,
		ResourceAllowance, "", CategoryDistribution, nil,
		"project_id", projectID,
		"configuration", configuration,
		"amount", amount.String(),
	)
}

// OnPayout implements plugin.OnPayout.
func (e *Extension) OnPayout(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPayoutRouted, SeverityInfo, OutcomeSuccess,
		ResourcePayout, "", CategoryDistribution, nil,
		"event", "payout_routed",
	)
}

// ──────────────────────────────────────────────────
// Redemption hooks
// ──────────────────────────────────────────────────

// OnRedemption implements plugin.OnRedemption.
func (e *Extension) OnRedemption(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionRedemptionCommitted, SeverityInfo, OutcomeSuccess,
		ResourceRedemption, "", CategoryRedemption, nil,
		"event", "redemption_committed",
	)
}

// ──────────────────────────────────────────────────
// Fee hooks
// ──────────────────────────────────────────────────

// OnFeeHeld implements plugin.OnFeeHeld.
func (e *Extension) OnFeeHeld(ctx context.Context, projectID uint64, amount *big.Int) error {
	return e.record(ctx, ActionFeeHeld, SeverityInfo, OutcomeSuccess,
		ResourceFee, "", CategoryFee, nil,
		"project_id", projectID,
		"amount", amount.String(),
	)
}

// OnFeeRefunded implements plugin.OnFeeRefunded.
func (e *Extension) OnFeeRefunded(ctx context.Context, projectID uint64, refunded *big.Int) error {
	return e.record(ctx, ActionFeeRefunded, SeverityInfo, OutcomeSuccess,
		ResourceFee, "", CategoryFee, nil,
		"project_id", projectID,
		"refunded", refunded.String(),
	)
}

// OnFeesProcessed implements plugin.OnFeesProcessed.
func (e *Extension) OnFeesProcessed(ctx context.Context, projectID uint64, count int, total *big.Int) error {
	return e.record(ctx, ActionFeesProcessed, SeverityInfo, OutcomeSuccess,
		ResourceFee, "", CategoryFee, nil,
		"project_id", projectID,
		"count", count,
		"total", total.String(),
	)
}

// ──────────────────────────────────────────────────
// Migration hooks
// ──────────────────────────────────────────────────

// OnMigration implements plugin.OnMigration.
func (e *Extension) OnMigration(ctx context.Context, projectID uint64, to string, amount *big.Int) error {
	return e.record(ctx, ActionBalanceMigrated, SeverityWarning, OutcomeSuccess,
		ResourceBalance, "", CategoryMigration, nil,
		"project_id", projectID,
		"to", to,
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
