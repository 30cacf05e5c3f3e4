package treasury

import (
	"context"
	"math/big"

	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// MigrateBalance hands a project's entire balance off to another terminal.
// The balance is read and zeroed in one step; when to is non-nil the funds
// are then pushed to it via AddToBalance, otherwise the host moves them.
// Held fees stay queued on this terminal so a later deposit can still
// refund them.
func (t *Treasury) MigrateBalance(ctx context.Context, projectID types.ProjectID, to PayoutTerminal) (types.Amount, error) {
	unlock := t.lockProject(projectID)
	defer unlock()

	balance, err := t.store.TakeBalance(ctx, t.cfg.Address, projectID)
	if err != nil {
		return types.Amount{}, err
	}

	amount := types.NewAmountFromBig(balance, t.cfg.Currency)
	if balance.Sign() == 0 {
		return amount, nil
	}

	t.journal(ctx, projectID, store.KindMigration, "", "", new(big.Int).Neg(balance), "balance migration")

	toAddr := ""
	if to != nil {
		toAddr = string(to.AddressOf())
		if err := to.AddToBalance(ctx, projectID, amount, "balance migration"); err != nil {
			t.logger.Warn("migration hand-off failed",
				"project_id", projectID,
				"to", toAddr,
				"amount", balance,
				"error", err,
			)
		}
	}

	t.plugins.EmitMigration(ctx, uint64(projectID), toAddr, balance)

	t.logger.Info("balance migrated",
		"project_id", projectID,
		"to", toAddr,
		"amount", balance,
	)

	return amount, nil
}
