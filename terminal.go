package treasury

import (
	"context"

	"github.com/fundpipe/treasury/types"
)

// Terminal exposes this engine as a PayoutTerminal so hosts can register it
// in a directory alongside remote terminals.
func (t *Treasury) Terminal() PayoutTerminal {
	return terminalAdapter{t}
}

type terminalAdapter struct {
	t *Treasury
}

var _ PayoutTerminal = terminalAdapter{}

func (a terminalAdapter) AddressOf() types.Address   { return a.t.cfg.Address }
func (a terminalAdapter) TokenOf() types.Token       { return a.t.cfg.Token }
func (a terminalAdapter) CurrencyOf() types.Currency { return a.t.cfg.Currency }
func (a terminalAdapter) DecimalsOf() uint32         { return a.t.cfg.Decimals }

func (a terminalAdapter) Pay(ctx context.Context, projectID types.ProjectID, amount types.Amount, payer, beneficiary types.Address, memo string, metadata []byte) error {
	_, err := a.t.Pay(ctx, PayRequest{
		ProjectID:   projectID,
		Payer:       payer,
		Amount:      amount,
		Beneficiary: beneficiary,
		Memo:        memo,
		Metadata:    metadata,
	})
	return err
}

func (a terminalAdapter) AddToBalance(ctx context.Context, projectID types.ProjectID, amount types.Amount, memo string) error {
	return a.t.AddToBalance(ctx, projectID, amount, memo)
}

func (a terminalAdapter) CurrentOverflowOf(ctx context.Context, projectID types.ProjectID) (types.Amount, error) {
	return a.t.CurrentOverflowOf(ctx, projectID)
}
