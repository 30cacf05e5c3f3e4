package treasury

import (
	"context"
	"fmt"
	"math/big"

	"github.com/fundpipe/treasury/fundingcycle"
	"github.com/fundpipe/treasury/redemption"
	"github.com/fundpipe/treasury/types"
)

// CurrentOverflowOf returns the portion of a project's balance on this
// terminal beyond what its unspent distribution limit reserves, floored at
// zero, in the terminal's currency.
func (t *Treasury) CurrentOverflowOf(ctx context.Context, projectID types.ProjectID) (types.Amount, error) {
	cycle, err := t.currentCycle(ctx, projectID)
	if err != nil {
		return types.Amount{}, err
	}

	overflow, err := t.overflowFor(ctx, projectID, cycle)
	if err != nil {
		return types.Amount{}, err
	}
	return types.NewAmountFromBig(overflow, t.cfg.Currency), nil
}

// CurrentTotalOverflowOf aggregates a project's overflow across every
// terminal it is registered with, converted into the requested currency and
// decimal fidelity.
func (t *Treasury) CurrentTotalOverflowOf(ctx context.Context, projectID types.ProjectID, currency types.Currency, decimals uint32) (*big.Int, error) {
	if t.directory == nil {
		return nil, fmt.Errorf("%w: directory", ErrNotConfigured)
	}

	terminals, err := t.directory.TerminalsOf(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("terminals of project %d: %w", projectID, err)
	}

	total := new(big.Int)
	for _, terminal := range terminals {
		var overflow types.Amount
		if terminal.AddressOf() == t.cfg.Address {
			overflow, err = t.CurrentOverflowOf(ctx, projectID)
		} else {
			overflow, err = terminal.CurrentOverflowOf(ctx, projectID)
		}
		if err != nil {
			return nil, err
		}

		converted, err := t.convert(ctx, overflow.Value, overflow.Currency, currency)
		if err != nil {
			return nil, err
		}
		total.Add(total, adjustDecimals(converted, terminal.DecimalsOf(), decimals))
	}

	return total, nil
}

// CurrentReclaimableOverflowOf returns the amount of overflow a holder could
// reclaim right now by redeeming tokenCount tokens, before any data source
// override.
func (t *Treasury) CurrentReclaimableOverflowOf(ctx context.Context, projectID types.ProjectID, tokenCount *big.Int) (types.Amount, error) {
	cycle, err := t.currentCycle(ctx, projectID)
	if err != nil {
		return types.Amount{}, err
	}

	reclaim, _, err := t.reclaimableFor(ctx, projectID, cycle, tokenCount)
	if err != nil {
		return types.Amount{}, err
	}
	return types.NewAmountFromBig(reclaim, t.cfg.Currency), nil
}

// overflowFor computes this terminal's overflow for a project under the
// given cycle: balance minus the unspent distribution limit expressed in the
// terminal's currency, floored at zero.
func (t *Treasury) overflowFor(ctx context.Context, projectID types.ProjectID, cycle fundingcycle.Cycle) (*big.Int, error) {
	balance, err := t.store.BalanceOf(ctx, t.cfg.Address, projectID)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return new(big.Int), nil
	}

	limit, limitCurrency, err := t.controller.DistributionLimitOf(ctx, projectID, cycle.Configuration, t.cfg.Address, t.cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("distribution limit: %w", err)
	}

	unspent := new(big.Int)
	if limit != nil && limit.Sign() > 0 {
		used, err := t.store.UsedDistributionOf(ctx, t.cfg.Address, projectID, cycle.Number)
		if err != nil {
			return nil, err
		}
		unspent.Sub(limit, used)
		if unspent.Sign() < 0 {
			unspent.SetInt64(0)
		}
	}

	reserved, err := t.convert(ctx, unspent, limitCurrency, t.cfg.Currency)
	if err != nil {
		return nil, err
	}

	overflow := new(big.Int).Sub(balance, reserved)
	if overflow.Sign() < 0 {
		overflow.SetInt64(0)
	}
	return overflow, nil
}

// reclaimableFor runs the redemption curve for a holder's token count and
// returns the reclaimable amount plus the overflow figure it was computed
// against. The redemption rate follows the cycle, substituting the ballot
// redemption rate while a reconfiguration ballot is still active.
func (t *Treasury) reclaimableFor(ctx context.Context, projectID types.ProjectID, cycle fundingcycle.Cycle, tokenCount *big.Int) (*big.Int, *big.Int, error) {
	var overflow *big.Int
	var err error

	if cycle.Metadata.UseTotalOverflow {
		overflow, err = t.CurrentTotalOverflowOf(ctx, projectID, t.cfg.Currency, t.cfg.Decimals)
	} else {
		overflow, err = t.overflowFor(ctx, projectID, cycle)
	}
	if err != nil {
		return nil, nil, err
	}

	totalSupply, err := t.controller.TotalOutstandingTokensOf(ctx, projectID, cycle.Metadata.ReservedRate)
	if err != nil {
		return nil, nil, fmt.Errorf("total outstanding tokens: %w", err)
	}

	rate := cycle.Metadata.RedemptionRate
	state, err := t.cycles.BallotStateOf(ctx, projectID, cycle.Configuration)
	if err != nil {
		return nil, nil, fmt.Errorf("ballot state: %w", err)
	}
	if state == fundingcycle.BallotActive {
		rate = cycle.Metadata.BallotRedemptionRate
	}

	reclaim := redemption.Reclaimable(redemption.Params{
		Overflow:    overflow,
		TokenCount:  tokenCount,
		TotalSupply: totalSupply,
		Rate:        rate,
	})
	return reclaim, overflow, nil
}

// adjustDecimals rescales a fixed-point amount between decimal fidelities,
// flooring on downscale.
func adjustDecimals(v *big.Int, from, to uint32) *big.Int {
	if from == to {
		return v
	}
	if to > from {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(to-from)), nil)
		return new(big.Int).Mul(v, scale)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(from-to)), nil)
	return new(big.Int).Quo(v, scale)
}
