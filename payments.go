package treasury

import (
	"context"
	"math/big"

	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/fundingcycle"
	"github.com/fundpipe/treasury/id"
	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// PayRequest describes an incoming payment to a project.
type PayRequest struct {
	ProjectID   types.ProjectID
	Payer       types.Address
	Amount      types.Amount
	Beneficiary types.Address
	Memo        string
	Metadata    []byte
}

// PaymentResult describes a committed payment.
type PaymentResult struct {
	ID            id.PaymentID
	ProjectID     types.ProjectID
	Payer         types.Address
	Beneficiary   types.Address
	Amount        types.Amount
	// BaseAmount is the payment expressed in the cycle's base weight
	// currency, used by token issuance downstream.
	BaseAmount *big.Int
	// Weight is the cycle weight the payment was recorded under, after any
	// data source override.
	Weight        *big.Int
	CycleNumber   uint64
	Configuration uint64
	Memo          string
}

// Pay records an incoming payment to a project's balance.
//
// A zero amount is a clean no-op: the cycle is still validated and the
// result returned, but nothing is committed. This lets hosts record payment
// intent without moving funds.
func (t *Treasury) Pay(ctx context.Context, req PayRequest) (*PaymentResult, error) {
	if req.Amount.Currency != t.cfg.Currency {
		return nil, ErrCurrencyMismatch
	}
	if req.Amount.IsNegative() {
		return nil, ErrInvalidInput
	}

	unlock := t.lockProject(req.ProjectID)
	defer unlock()

	cycle, err := t.currentCycle(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if cycle.Metadata.PausePay {
		return nil, ErrPaymentPaused
	}

	baseAmount := new(big.Int)
	if !req.Amount.IsZero() {
		baseAmount, err = t.convert(ctx, req.Amount.Value, t.cfg.Currency, t.cfg.BaseWeightCurrency)
		if err != nil {
			return nil, err
		}
	}

	weight := cycle.Weight
	memo := req.Memo
	var delegate fundingcycle.PayDelegate

	if ds := cycle.PayDataSource(); ds != nil {
		override, err := ds.PayParams(ctx, fundingcycle.PayParams{
			Payer:       req.Payer,
			ProjectID:   req.ProjectID,
			Amount:      req.Amount,
			Weight:      weight,
			Beneficiary: req.Beneficiary,
			Memo:        memo,
			Metadata:    req.Metadata,
		})
		if err != nil {
			return nil, err
		}
		if override.Weight != nil {
			weight = override.Weight
		}
		if override.Memo != "" {
			memo = override.Memo
		}
		delegate = override.Delegate
	}

	result := &PaymentResult{
		ID:            id.NewPaymentID(),
		ProjectID:     req.ProjectID,
		Payer:         req.Payer,
		Beneficiary:   req.Beneficiary,
		Amount:        req.Amount,
		BaseAmount:    baseAmount,
		Weight:        weight,
		CycleNumber:   cycle.Number,
		Configuration: cycle.Configuration,
		Memo:          memo,
	}

	if req.Amount.IsZero() {
		return result, nil
	}

	if err := t.store.AddBalance(ctx, t.cfg.Address, req.ProjectID, req.Amount.Value); err != nil {
		return nil, err
	}

	t.journal(ctx, req.ProjectID, store.KindPay, req.Payer, req.Beneficiary, req.Amount.Value, memo)
	t.plugins.EmitPaymentRecorded(ctx, result)

	if delegate != nil {
		if err := delegate.DidPay(ctx, fundingcycle.DidPayData{
			Payer:       req.Payer,
			ProjectID:   req.ProjectID,
			Amount:      req.Amount,
			Weight:      weight,
			Beneficiary: req.Beneficiary,
			Memo:        memo,
			Metadata:    req.Metadata,
		}); err != nil {
			t.logger.Warn("pay delegate failed",
				"project_id", req.ProjectID,
				"error", err,
			)
		}
	}

	t.logger.Debug("payment recorded",
		"project_id", req.ProjectID,
		"amount", req.Amount.Value,
		"payer", req.Payer,
	)

	return result, nil
}

// AddToBalance credits funds to a project's balance outside the payment
// flow, typically to return previously distributed funds. Held fees are
// refunded oldest first against the deposit: the fee portion of each covered
// entry is credited back on top of the deposit itself.
func (t *Treasury) AddToBalance(ctx context.Context, projectID types.ProjectID, amount types.Amount, memo string) error {
	if amount.Currency != t.cfg.Currency {
		return ErrCurrencyMismatch
	}
	if amount.IsZero() {
		return nil
	}
	if amount.IsNegative() {
		return ErrInvalidInput
	}

	unlock := t.lockProject(projectID)
	defer unlock()

	held, err := t.store.HeldFeesOf(ctx, t.cfg.Address, projectID)
	if err != nil {
		return err
	}

	credit := new(big.Int).Set(amount.Value)
	var bonus *big.Int

	if len(held) > 0 {
		var remaining []fees.HeldFee
		bonus, remaining = fees.RefundBonus(held, amount.Value)
		credit.Add(credit, bonus)

		if err := t.store.RecordHeldFeeRefund(ctx, t.cfg.Address, projectID, credit, remaining); err != nil {
			return err
		}
	} else {
		if err := t.store.AddBalance(ctx, t.cfg.Address, projectID, credit); err != nil {
			return err
		}
	}

	t.journal(ctx, projectID, store.KindDeposit, "", "", credit, memo)
	t.plugins.EmitBalanceAdded(ctx, uint64(projectID), credit)

	if bonus != nil && bonus.Sign() > 0 {
		t.plugins.EmitFeeRefunded(ctx, uint64(projectID), bonus)
		t.logger.Debug("held fees refunded",
			"project_id", projectID,
			"deposit", amount.Value,
			"bonus", bonus,
		)
	}

	return nil
}
