package audithook

// Action constants for audit events.
const (
	// Payment actions
	ActionPaymentRecorded = "payment.recorded"
	ActionBalanceAdded    = "balance.added"

	// Distribution actions
	ActionDistributionCommitted = "distribution.committed"
	ActionAllowanceUsed         = "allowance.used"
	ActionPayoutRouted          = "payout.routed"

	// Redemption actions
	ActionRedemptionCommitted = "redemption.committed"

	// Fee actions
	ActionFeeHeld       = "fee.held"
	ActionFeeRefunded   = "fee.refunded"
	ActionFeesProcessed = "fees.processed"

	// Migration actions
	ActionBalanceMigrated = "balance.migrated"
)

// Resource constants for audit events.
const (
	ResourcePayment      = "payment"
	ResourceBalance      = "balance"
	ResourceDistribution = "distribution"
	ResourceAllowance    = "allowance"
	ResourcePayout       = "payout"
	ResourceRedemption   = "redemption"
	ResourceFee          = "fee"
)

// Category constants for audit events.
const (
	CategoryFunding      = "funding"
	CategoryDistribution = "distribution"
	CategoryRedemption   = "redemption"
	CategoryFee          = "fee"
	CategoryMigration    = "migration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
