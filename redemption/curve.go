// Package redemption implements the bonding curve that converts burned
// project tokens into a claim on treasury overflow.
package redemption

import (
	"math/big"
)

// MaxRate is the redemption rate denominator. At MaxRate the curve is
// linear: every token claims its exact pro-rata share of overflow.
const MaxRate = 10_000

var bigMaxRate = big.NewInt(MaxRate)

// Params are the inputs to a reclaim computation.
type Params struct {
	// Overflow is the funds available to redeem against.
	Overflow *big.Int
	// TokenCount is the number of tokens being redeemed.
	TokenCount *big.Int
	// TotalSupply is the outstanding token supply including reserved but
	// unminted tokens.
	TotalSupply *big.Int
	// Rate is the redemption rate in effect, out of MaxRate.
	Rate uint64
}

// Reclaimable returns the overflow amount a redemption claims.
//
// The base claim is the pro-rata share overflow * count / supply. At
// Rate == MaxRate the base is returned unchanged. Below MaxRate the base is
// scaled by (rate + count * (MaxRate - rate) / supply) / MaxRate, a convex
// curve that pays early redeemers less than pro-rata and leaves the
// difference to those who stay. A zero rate reclaims nothing. All division
// floors.
func Reclaimable(p Params) *big.Int {
	if p.Overflow == nil || p.TokenCount == nil || p.TotalSupply == nil {
		return new(big.Int)
	}
	if p.Overflow.Sign() <= 0 || p.TokenCount.Sign() <= 0 || p.TotalSupply.Sign() <= 0 {
		return new(big.Int)
	}
	if p.Rate == 0 {
		return new(big.Int)
	}

	// Redeeming the entire supply always reclaims all overflow.
	if p.TokenCount.Cmp(p.TotalSupply) >= 0 {
		return new(big.Int).Set(p.Overflow)
	}

	base := new(big.Int).Mul(p.Overflow, p.TokenCount)
	base.Quo(base, p.TotalSupply)

	if p.Rate >= MaxRate {
		return base
	}

	// rate + count * (MaxRate - rate) / supply
	boost := new(big.Int).SetUint64(MaxRate - p.Rate)
	boost.Mul(boost, p.TokenCount)
	boost.Quo(boost, p.TotalSupply)
	boost.Add(boost, new(big.Int).SetUint64(p.Rate))

	base.Mul(base, boost)
	base.Quo(base, bigMaxRate)
	return base
}
