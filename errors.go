package treasury

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("treasury: not found")
	ErrInvalidInput  = errors.New("treasury: invalid input")
	ErrNotConfigured = errors.New("treasury: collaborator not configured")

	// Funding cycle errors
	ErrInvalidFundingCycle = errors.New("treasury: no usable funding cycle")

	// Policy errors (the active cycle forbids the operation)
	ErrPaymentPaused      = errors.New("treasury: payments are paused")
	ErrDistributionPaused = errors.New("treasury: distributions are paused")
	ErrRedeemPaused       = errors.New("treasury: redemptions are paused")

	// Accounting errors
	ErrCurrencyMismatch         = errors.New("treasury: currency mismatch")
	ErrDistributionLimitReached = errors.New("treasury: distribution limit reached")
	ErrAllowanceLimitReached    = errors.New("treasury: overflow allowance reached")
	ErrInadequateBalance        = errors.New("treasury: inadequate balance")
	ErrInsufficientTokens       = errors.New("treasury: insufficient tokens to redeem")
	ErrInadequateReclaim        = errors.New("treasury: reclaim below requested minimum")

	// Routing errors
	ErrTerminalNotFound = errors.New("treasury: no terminal for project and token")

	// Held fee errors
	ErrHeldFeeNotFound = errors.New("treasury: held fee not found")

	// Store errors
	ErrStoreNotReady     = errors.New("treasury: store not ready")
	ErrStoreClosed       = errors.New("treasury: store is closed")
	ErrTransactionFailed = errors.New("treasury: transaction failed")
	ErrMigrationFailed   = errors.New("treasury: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("treasury: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error reports a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTerminalNotFound) ||
		errors.Is(err, ErrHeldFeeNotFound)
}

// IsPolicyViolation returns true if the operation was rejected by the active
// funding cycle or a configured ceiling rather than by a fault.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPaymentPaused) ||
		errors.Is(err, ErrDistributionPaused) ||
		errors.Is(err, ErrRedeemPaused) ||
		errors.Is(err, ErrDistributionLimitReached) ||
		errors.Is(err, ErrAllowanceLimitReached)
}

// IsInsufficientFunds returns true if the error reports that funds or tokens
// ran short of the requested amount.
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInadequateBalance) ||
		errors.Is(err, ErrInsufficientTokens)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
