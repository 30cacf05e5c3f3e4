// Package fees implements protocol fee math and the held (deferred) fee
// queue model.
//
// Fees are charged on amounts leaving a project's treasury. The fee is
// computed so that the fee itself, when paid into the protocol project at the
// same rate, would incur a consistent charge: the net amount is the
// reciprocal share floor(amount * MaxFee / (MaxFee + rate)) and the fee is
// the remainder. This keeps fee-on-fee accounting exact in integer math.
package fees

import (
	"math/big"
	"time"

	"github.com/fundpipe/treasury/id"
	"github.com/fundpipe/treasury/types"
)

const (
	// MaxFee is the fee rate denominator, parts per billion.
	MaxFee = 1_000_000_000
	// MaxFeeDiscount is the discount denominator, parts per billion.
	// A discount of MaxFeeDiscount waives the fee entirely.
	MaxFeeDiscount = 1_000_000_000
)

var (
	bigMaxFee         = big.NewInt(MaxFee)
	bigMaxFeeDiscount = big.NewInt(MaxFeeDiscount)
)

// EffectiveRate applies a discount to a fee rate. Discounts above
// MaxFeeDiscount are invalid and must be rejected by the caller before
// reaching here; the fee gauge degrade path handles that upstream.
func EffectiveRate(rate, discount uint64) uint64 {
	reduction := new(big.Int).Mul(new(big.Int).SetUint64(rate), new(big.Int).SetUint64(discount))
	reduction.Quo(reduction, bigMaxFeeDiscount)
	return rate - reduction.Uint64()
}

// NetOf returns the portion of amount that remains after the fee:
// floor(amount * MaxFee / (MaxFee + effectiveRate)).
func NetOf(amount *big.Int, rate, discount uint64) *big.Int {
	effective := EffectiveRate(rate, discount)
	den := new(big.Int).Add(bigMaxFee, new(big.Int).SetUint64(effective))
	return types.MulDiv(amount, bigMaxFee, den)
}

// Compute returns the fee taken from amount at the given rate and discount.
// Compute(a) + NetOf(a) == a holds exactly for every input.
func Compute(amount *big.Int, rate, discount uint64) *big.Int {
	return new(big.Int).Sub(amount, NetOf(amount, rate, discount))
}

// HeldFee is one deferred fee entry. Amount is the gross amount the fee was
// charged on; the fee itself is recomputed from the stored rate and discount
// so a later refund or settlement uses the terms in force when it was held.
type HeldFee struct {
	ID          id.HeldFeeID    `json:"id"`
	ProjectID   types.ProjectID `json:"project_id"`
	Amount      *big.Int        `json:"amount"`
	FeeRate     uint64          `json:"fee_rate"`
	Discount    uint64          `json:"discount"`
	Beneficiary types.Address   `json:"beneficiary"`
	CreatedAt   time.Time       `json:"created_at"`
}

// FeeAmount returns the fee this entry defers.
func (h HeldFee) FeeAmount() *big.Int {
	return Compute(h.Amount, h.FeeRate, h.Discount)
}

// RefundBonus walks held fees oldest-first, consuming entries against a
// deposit returning to the treasury. Entries fully covered by the deposit are
// removed; an entry only partially covered has its amount reduced in place
// and the walk stops. The returned bonus is the sum of the fee portions of
// everything consumed, credited back to the project on top of the deposit.
//
// Input entries are not mutated; remaining holds fresh values.
func RefundBonus(entries []HeldFee, deposit *big.Int) (bonus *big.Int, remaining []HeldFee) {
	bonus = new(big.Int)
	leftover := new(big.Int).Set(deposit)

	for i, entry := range entries {
		if leftover.Sign() == 0 {
			remaining = append(remaining, cloneEntries(entries[i:])...)
			break
		}

		if leftover.Cmp(entry.Amount) >= 0 {
			leftover.Sub(leftover, entry.Amount)
			bonus.Add(bonus, entry.FeeAmount())
			continue
		}

		// Partial cover: refund the fee on the covered portion and keep
		// the entry with the uncovered remainder.
		bonus.Add(bonus, Compute(leftover, entry.FeeRate, entry.Discount))

		reduced := entry
		reduced.Amount = new(big.Int).Sub(entry.Amount, leftover)
		leftover.SetInt64(0)

		remaining = append(remaining, reduced)
		remaining = append(remaining, cloneEntries(entries[i+1:])...)
		break
	}

	return bonus, remaining
}

func cloneEntries(entries []HeldFee) []HeldFee {
	out := make([]HeldFee, len(entries))
	for i, e := range entries {
		out[i] = e
		out[i].Amount = new(big.Int).Set(e.Amount)
	}
	return out
}
