// Package splits defines the weighted recipient model used to route
// distributed payouts.
package splits

import (
	"errors"
	"math/big"
	"time"

	"github.com/fundpipe/treasury/types"
)

// TotalPercent is the denominator for split percentages: parts per billion.
// A group whose percents sum to TotalPercent consumes the full distribution.
const TotalPercent = 1_000_000_000

// Group identifiers. Domain plus group key a split set; hosts may define
// their own groups beyond these.
const (
	GroupPayouts uint64 = 1
	GroupReserve uint64 = 2
)

var (
	// ErrZeroPercent is returned for a split with a zero percent.
	ErrZeroPercent = errors.New("splits: split percent must be positive")
	// ErrOverTotalPercent is returned when a group's percents exceed TotalPercent.
	ErrOverTotalPercent = errors.New("splits: group percents exceed total")
)

// Split is one weighted recipient of a distribution.
//
// Resolution order for the payout target: Allocator if set, else the
// ProjectID's terminal if nonzero, else Beneficiary if set, else the caller.
type Split struct {
	Percent            uint32            `json:"percent"`
	ProjectID          types.ProjectID   `json:"project_id"`
	Beneficiary        types.Address     `json:"beneficiary"`
	Allocator          types.Address     `json:"allocator"`
	PreferClaimed      bool              `json:"prefer_claimed"`
	PreferAddToBalance bool              `json:"prefer_add_to_balance"`
	LockedUntil        time.Time         `json:"locked_until,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Locked reports whether the split is still locked at the given time.
func (s Split) Locked(at time.Time) bool {
	return !s.LockedUntil.IsZero() && at.Before(s.LockedUntil)
}

// PayoutAmount returns floor(total * percent / TotalPercent), the portion of
// a distribution owed to a split.
func PayoutAmount(total *big.Int, percent uint32) *big.Int {
	return types.MulDiv(total, big.NewInt(int64(percent)), big.NewInt(TotalPercent))
}

// ValidateGroup checks that every split has a positive percent and that the
// group's percents do not exceed TotalPercent. Groups summing to less than
// TotalPercent are valid; the leftover goes to the project owner.
func ValidateGroup(group []Split) error {
	var sum uint64
	for _, s := range group {
		if s.Percent == 0 {
			return ErrZeroPercent
		}
		sum += uint64(s.Percent)
	}
	if sum > TotalPercent {
		return ErrOverTotalPercent
	}
	return nil
}
