package treasury

import (
	"context"
	"math/big"

	"github.com/fundpipe/treasury/fundingcycle"
	"github.com/fundpipe/treasury/id"
	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// RedeemRequest describes a token redemption against a project's overflow.
type RedeemRequest struct {
	ProjectID   types.ProjectID
	Holder      types.Address
	TokenCount  *big.Int
	Beneficiary types.Address
	// MinReclaimed fails the redemption when the curve (after any data
	// source override) yields less. Nil disables the check.
	MinReclaimed *big.Int
	Memo         string
	Metadata     []byte
}

// RedemptionResult describes a committed redemption. The host burns the
// holder's tokens and transfers ReclaimAmount to the beneficiary.
type RedemptionResult struct {
	ID            id.RedemptionID
	ProjectID     types.ProjectID
	Holder        types.Address
	Beneficiary   types.Address
	TokenCount    *big.Int
	ReclaimAmount types.Amount
	CycleNumber   uint64
	Configuration uint64
	Memo          string
}

// RedeemTokens prices a holder's tokens against the project's overflow and
// debits the reclaimed amount from its balance.
//
// With a redemption rate of redemption.MaxRate the reclaim is exact
// pro-rata; lower rates price along a convex curve that rewards later
// redemptions less. While a reconfiguration ballot is active the cycle's
// ballot redemption rate applies instead.
func (t *Treasury) RedeemTokens(ctx context.Context, req RedeemRequest) (*RedemptionResult, error) {
	if req.TokenCount == nil || req.TokenCount.Sign() <= 0 {
		return nil, ErrInvalidInput
	}

	unlock := t.lockProject(req.ProjectID)
	defer unlock()

	cycle, err := t.currentCycle(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if cycle.Metadata.PauseRedeem {
		return nil, ErrRedeemPaused
	}

	holderBalance, err := t.controller.TokenBalanceOf(ctx, req.Holder, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if holderBalance == nil || req.TokenCount.Cmp(holderBalance) > 0 {
		return nil, ErrInsufficientTokens
	}

	reclaim, overflow, err := t.reclaimableFor(ctx, req.ProjectID, cycle, req.TokenCount)
	if err != nil {
		return nil, err
	}

	memo := req.Memo
	var delegate fundingcycle.RedemptionDelegate

	if ds := cycle.RedeemDataSource(); ds != nil {
		totalSupply, err := t.controller.TotalOutstandingTokensOf(ctx, req.ProjectID, cycle.Metadata.ReservedRate)
		if err != nil {
			return nil, err
		}
		override, err := ds.RedeemParams(ctx, fundingcycle.RedeemParams{
			Holder:         req.Holder,
			ProjectID:      req.ProjectID,
			TokenCount:     req.TokenCount,
			TotalSupply:    totalSupply,
			Overflow:       overflow,
			ReclaimAmount:  types.NewAmountFromBig(reclaim, t.cfg.Currency),
			CurrencyOut:    t.cfg.Currency,
			RedemptionRate: cycle.Metadata.RedemptionRate,
			Memo:           memo,
			Metadata:       req.Metadata,
		})
		if err != nil {
			return nil, err
		}
		if override.ReclaimAmount != nil {
			reclaim = override.ReclaimAmount
		}
		if override.Memo != "" {
			memo = override.Memo
		}
		delegate = override.Delegate
	}

	if req.MinReclaimed != nil && reclaim.Cmp(req.MinReclaimed) < 0 {
		return nil, ErrInadequateReclaim
	}

	if reclaim.Sign() > 0 {
		if err := t.store.SubtractBalance(ctx, t.cfg.Address, req.ProjectID, reclaim); err != nil {
			return nil, err
		}
		t.journal(ctx, req.ProjectID, store.KindRedemption, req.Holder, req.Beneficiary, new(big.Int).Neg(reclaim), memo)
	}

	result := &RedemptionResult{
		ID:            id.NewRedemptionID(),
		ProjectID:     req.ProjectID,
		Holder:        req.Holder,
		Beneficiary:   req.Beneficiary,
		TokenCount:    req.TokenCount,
		ReclaimAmount: types.NewAmountFromBig(reclaim, t.cfg.Currency),
		CycleNumber:   cycle.Number,
		Configuration: cycle.Configuration,
		Memo:          memo,
	}

	t.plugins.EmitRedemption(ctx, result)

	if delegate != nil {
		if err := delegate.DidRedeem(ctx, fundingcycle.DidRedeemData{
			Holder:        req.Holder,
			ProjectID:     req.ProjectID,
			TokenCount:    req.TokenCount,
			ReclaimAmount: result.ReclaimAmount,
			Beneficiary:   req.Beneficiary,
			Memo:          memo,
			Metadata:      req.Metadata,
		}); err != nil {
			t.logger.Warn("redemption delegate failed",
				"project_id", req.ProjectID,
				"error", err,
			)
		}
	}

	t.logger.Debug("tokens redeemed",
		"project_id", req.ProjectID,
		"holder", req.Holder,
		"token_count", req.TokenCount,
		"reclaimed", reclaim,
	)

	return result, nil
}
