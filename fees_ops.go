package treasury

import (
	"context"
	"math/big"

	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// ProcessFeesResult describes a held fee settlement pass.
type ProcessFeesResult struct {
	ProjectID types.ProjectID
	// Count is the number of held fee entries settled.
	Count int
	// Total is the fee value paid to the protocol project.
	Total *big.Int
}

// ProcessFees settles every held fee of a project to the protocol project
// and clears the queue. The fee tokens never left this terminal when they
// were held, so settlement credits the protocol project's balance here, or
// routes through the protocol project's own terminal when its funds live
// elsewhere. Calling it on an empty queue is a no-op.
func (t *Treasury) ProcessFees(ctx context.Context, projectID types.ProjectID) (*ProcessFeesResult, error) {
	unlock := t.lockProject(projectID)
	defer unlock()

	held, err := t.store.HeldFeesOf(ctx, t.cfg.Address, projectID)
	if err != nil {
		return nil, err
	}

	result := &ProcessFeesResult{ProjectID: projectID, Total: new(big.Int)}
	if len(held) == 0 {
		return result, nil
	}

	peer, err := t.protocolTerminal(ctx)
	if err != nil {
		return nil, err
	}

	for _, entry := range held {
		fee := entry.FeeAmount()
		if fee.Sign() == 0 {
			if err := t.store.SettleHeldFee(ctx, t.cfg.Address, projectID, entry.ID, t.protocolProjectID, nil); err != nil {
				return result, err
			}
			continue
		}

		if peer == nil {
			if err := t.store.SettleHeldFee(ctx, t.cfg.Address, projectID, entry.ID, t.protocolProjectID, fee); err != nil {
				return result, err
			}
			t.journal(ctx, t.protocolProjectID, store.KindFeeSettled, t.cfg.Address, entry.Beneficiary, fee, feeMemo(projectID))
		} else {
			if err := t.store.SettleHeldFee(ctx, t.cfg.Address, projectID, entry.ID, t.protocolProjectID, nil); err != nil {
				return result, err
			}
			amount := types.NewAmountFromBig(fee, t.cfg.Currency)
			if err := peer.Pay(ctx, t.protocolProjectID, amount, t.cfg.Address, entry.Beneficiary, feeMemo(projectID), nil); err != nil {
				t.logger.Warn("held fee routing failed",
					"project_id", projectID,
					"fee_id", entry.ID,
					"error", err,
				)
			}
		}

		result.Count++
		result.Total.Add(result.Total, fee)
	}

	t.plugins.EmitFeesProcessed(ctx, uint64(projectID), result.Count, result.Total)

	t.logger.Debug("held fees processed",
		"project_id", projectID,
		"count", result.Count,
		"total", result.Total,
	)

	return result, nil
}

// SetFeeless adds or removes an address from the feeless allow-list.
// Feeless addresses are exempt from protocol fees when they appear as a
// payout beneficiary, allocator or destination terminal.
func (t *Treasury) SetFeeless(ctx context.Context, addr types.Address, feeless bool) error {
	if addr == "" {
		return ErrInvalidInput
	}
	if err := t.store.SetFeeless(ctx, addr, feeless); err != nil {
		return err
	}

	t.logger.Info("feeless address updated",
		"address", addr,
		"feeless", feeless,
	)
	return nil
}

// IsFeeless reports whether an address is on the feeless allow-list.
func (t *Treasury) IsFeeless(ctx context.Context, addr types.Address) (bool, error) {
	return t.store.IsFeeless(ctx, addr)
}

// FeelessAddresses lists the feeless allow-list.
func (t *Treasury) FeelessAddresses(ctx context.Context) ([]types.Address, error) {
	return t.store.ListFeeless(ctx)
}
