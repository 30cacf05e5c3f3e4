// Package fundingcycle defines the funding cycle snapshot consumed by the
// treasury engine. Cycles are produced by a host-provided cycle provider;
// the engine never schedules or rolls them over itself.
package fundingcycle

import (
	"math/big"
	"time"

	"github.com/fundpipe/treasury/types"
)

// BallotState reports where a queued reconfiguration stands with its ballot.
type BallotState string

const (
	// BallotApproved means the active configuration passed its ballot.
	BallotApproved BallotState = "approved"
	// BallotActive means an approval window is still pending. While active,
	// redemptions use the cycle's ballot redemption rate.
	BallotActive BallotState = "active"
	// BallotFailed means the queued reconfiguration was rejected.
	BallotFailed BallotState = "failed"
)

// Cycle is a point-in-time snapshot of a project's funding cycle.
//
// Number increments on every rollover, including automatic ones.
// Configuration only changes when the project owner reconfigures, so
// consecutive cycles based on the same configuration share it.
type Cycle struct {
	ProjectID     types.ProjectID   `json:"project_id"`
	Number        uint64            `json:"number"`
	Configuration uint64            `json:"configuration"`
	BasedOn       uint64            `json:"based_on"`
	Start         time.Time         `json:"start"`
	Duration      time.Duration     `json:"duration"`
	Weight        *big.Int          `json:"weight"`
	DiscountRate  uint64            `json:"discount_rate"`
	Metadata      Metadata          `json:"metadata"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Metadata carries the per-cycle policy flags and rates the engine enforces.
type Metadata struct {
	PausePay           bool `json:"pause_pay"`
	PauseDistributions bool `json:"pause_distributions"`
	PauseRedeem        bool `json:"pause_redeem"`
	PauseBurn          bool `json:"pause_burn"`

	ReservedRate         uint64 `json:"reserved_rate"`
	RedemptionRate       uint64 `json:"redemption_rate"`
	BallotRedemptionRate uint64 `json:"ballot_redemption_rate"`

	HoldFees         bool `json:"hold_fees"`
	UseTotalOverflow bool `json:"use_total_overflow"`

	UseDataSourceForPay    bool       `json:"use_data_source_for_pay"`
	UseDataSourceForRedeem bool       `json:"use_data_source_for_redeem"`
	DataSource             DataSource `json:"-"`
}

// IsZero reports whether the snapshot is unpopulated. A provider that has no
// cycle for a project returns a zero Cycle, which the engine rejects.
func (c Cycle) IsZero() bool {
	return c.Number == 0
}

// PayDataSource returns the cycle's data source if it applies to payments.
func (c Cycle) PayDataSource() DataSource {
	if c.Metadata.UseDataSourceForPay && c.Metadata.DataSource != nil {
		return c.Metadata.DataSource
	}
	return nil
}

// RedeemDataSource returns the cycle's data source if it applies to redemptions.
func (c Cycle) RedeemDataSource() DataSource {
	if c.Metadata.UseDataSourceForRedeem && c.Metadata.DataSource != nil {
		return c.Metadata.DataSource
	}
	return nil
}
