package treasury

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/id"
	"github.com/fundpipe/treasury/splits"
	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// DistributionRequest describes a payout distribution draw.
type DistributionRequest struct {
	ProjectID types.ProjectID
	// Amount is denominated in the distribution limit's currency.
	Amount types.Amount
	// Caller receives any split that names no allocator, project or
	// beneficiary.
	Caller types.Address
	Memo   string
}

// PayoutKind identifies how a payout's target was resolved.
type PayoutKind string

const (
	PayoutAllocator   PayoutKind = "allocator"
	PayoutProject     PayoutKind = "project"
	PayoutBeneficiary PayoutKind = "beneficiary"
	PayoutCaller      PayoutKind = "caller"
	PayoutOwner       PayoutKind = "owner"
)

// Payout is one outbound transfer produced by a distribution. For
// beneficiary, caller and owner payouts the host executes the actual token
// transfer of Net; allocator and project payouts are routed by the engine.
type Payout struct {
	ID        id.PayoutID
	Kind      PayoutKind
	Split     splits.Split
	Address   types.Address
	ProjectID types.ProjectID
	Gross     *big.Int
	Fee       *big.Int
	Net       *big.Int
}

// DistributionResult describes a committed distribution.
type DistributionResult struct {
	ID            id.DistributionID
	ProjectID     types.ProjectID
	CycleNumber   uint64
	Configuration uint64
	// Amount is the requested draw in the limit's currency; Distributed is
	// the equivalent debit in the terminal's currency.
	Amount      types.Amount
	Distributed *big.Int
	Fee         *big.Int
	HeldFee     *big.Int
	Leftover    *big.Int
	Payouts     []Payout
	Memo        string
}

// payoutPlan pairs a payout with its resolved routing target.
type payoutPlan struct {
	payout    Payout
	allocator Allocator
	// terminal is the target project's terminal; nil when the target is
	// this terminal itself.
	terminal    PayoutTerminal
	beneficiary types.Address
	addBalance  bool
}

// feeRateFor returns the fee rate a project pays. The protocol project
// never pays fees to itself.
func (t *Treasury) feeRateFor(projectID types.ProjectID) uint64 {
	if projectID == t.protocolProjectID {
		return 0
	}
	return t.feeRate
}

// protocolTerminal resolves the terminal collecting protocol fees for this
// terminal's token. Without a directory the protocol project is assumed to
// live on this terminal.
func (t *Treasury) protocolTerminal(ctx context.Context) (PayoutTerminal, error) {
	if t.directory == nil {
		return nil, nil
	}
	terminal, err := t.directory.PrimaryTerminalOf(ctx, t.protocolProjectID, t.cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("protocol terminal: %w", err)
	}
	if terminal == nil || terminal.AddressOf() == t.cfg.Address {
		return nil, nil
	}
	return terminal, nil
}

// DistributePayouts draws from a project's distribution limit and fans the
// funds out across its configured payout splits.
//
// The draw is validated and committed in full, under the project's guard,
// before any allocator or peer terminal is invoked, so reentrant calls
// always observe the post-distribution ledger. Routing faults after commit
// are logged, not rolled back; the returned payout list is the host's
// transfer manifest either way.
func (t *Treasury) DistributePayouts(ctx context.Context, req DistributionRequest) (*DistributionResult, error) {
	result, plans, protocolFee, peer, err := t.commitDistribution(ctx, req)
	if err != nil {
		return nil, err
	}

	t.routePayouts(ctx, req.ProjectID, result.Configuration, plans, req.Memo)
	t.settleImmediateFee(ctx, req.ProjectID, protocolFee, peer)

	t.plugins.EmitDistribution(ctx, result)
	for i := range result.Payouts {
		t.plugins.EmitPayout(ctx, &result.Payouts[i])
	}

	t.logger.Debug("payouts distributed",
		"project_id", req.ProjectID,
		"amount", req.Amount.Value,
		"distributed", result.Distributed,
		"fee", result.Fee,
		"payouts", len(result.Payouts),
	)

	return result, nil
}

// commitDistribution validates a distribution and commits every ledger
// mutation it implies. It returns the routing plans plus the immediate fee
// owed to a remote protocol terminal, if any.
func (t *Treasury) commitDistribution(ctx context.Context, req DistributionRequest) (*DistributionResult, []payoutPlan, *big.Int, PayoutTerminal, error) {
	fail := func(err error) (*DistributionResult, []payoutPlan, *big.Int, PayoutTerminal, error) {
		return nil, nil, nil, nil, err
	}

	if req.Amount.Value == nil || !req.Amount.IsPositive() {
		return fail(ErrInvalidInput)
	}

	unlock := t.lockProject(req.ProjectID)
	defer unlock()

	cycle, err := t.currentCycle(ctx, req.ProjectID)
	if err != nil {
		return fail(err)
	}
	if cycle.Metadata.PauseDistributions {
		return fail(ErrDistributionPaused)
	}

	limit, limitCurrency, err := t.controller.DistributionLimitOf(ctx, req.ProjectID, cycle.Configuration, t.cfg.Address, t.cfg.Token)
	if err != nil {
		return fail(fmt.Errorf("distribution limit: %w", err))
	}
	if req.Amount.Currency != limitCurrency {
		return fail(ErrCurrencyMismatch)
	}

	used, err := t.store.UsedDistributionOf(ctx, t.cfg.Address, req.ProjectID, cycle.Number)
	if err != nil {
		return fail(err)
	}
	if limit == nil || limit.Sign() == 0 ||
		new(big.Int).Add(used, req.Amount.Value).Cmp(limit) > 0 {
		return fail(ErrDistributionLimitReached)
	}

	debit, err := t.convert(ctx, req.Amount.Value, limitCurrency, t.cfg.Currency)
	if err != nil {
		return fail(err)
	}

	balance, err := t.store.BalanceOf(ctx, t.cfg.Address, req.ProjectID)
	if err != nil {
		return fail(err)
	}
	if debit.Cmp(balance) > 0 {
		return fail(ErrInadequateBalance)
	}

	owner, err := t.projects.OwnerOf(ctx, req.ProjectID)
	if err != nil {
		return fail(fmt.Errorf("project owner: %w", err))
	}

	var splitList []splits.Split
	if t.splits != nil {
		splitList, err = t.splits.SplitsOf(ctx, req.ProjectID, cycle.Configuration, splits.GroupPayouts)
		if err != nil {
			return fail(fmt.Errorf("splits: %w", err))
		}
	}

	rate := t.feeRateFor(req.ProjectID)
	discount := uint64(0)
	if rate > 0 {
		discount = t.safeDiscountFor(ctx, req.ProjectID)
	}

	// Resolve every split target before touching state so a missing
	// terminal or allocator fails the whole draw cleanly.
	plans := make([]payoutPlan, 0, len(splitList)+1)
	leftover := new(big.Int).Set(debit)

	for _, split := range splitList {
		gross := splits.PayoutAmount(debit, split.Percent)
		if gross.Sign() == 0 {
			continue
		}
		leftover.Sub(leftover, gross)

		plan, err := t.planSplitPayout(ctx, req, split, gross, rate, discount)
		if err != nil {
			return fail(err)
		}
		plans = append(plans, plan)
	}

	if leftover.Sign() > 0 {
		fee := big.NewInt(0)
		if rate > 0 && !t.isFeeless(ctx, owner) {
			fee = fees.Compute(leftover, rate, discount)
		}
		plans = append(plans, payoutPlan{payout: Payout{
			ID:      id.NewPayoutID(),
			Kind:    PayoutOwner,
			Address: owner,
			Gross:   leftover,
			Fee:     fee,
			Net:     new(big.Int).Sub(leftover, fee),
		}})
	}

	feeTotal := big.NewInt(0)
	for i := range plans {
		feeTotal.Add(feeTotal, plans[i].payout.Fee)
	}

	heldTotal := big.NewInt(0)
	immediateFee := big.NewInt(0)
	if cycle.Metadata.HoldFees {
		heldTotal = feeTotal
	} else {
		immediateFee = feeTotal
	}

	var peer PayoutTerminal
	if immediateFee.Sign() > 0 {
		peer, err = t.protocolTerminal(ctx)
		if err != nil {
			return fail(err)
		}
	}

	// Commit. The full debit leaves the project's balance; held fee
	// portions stay inside the terminal, tracked by the queue until they
	// are refunded or settled.
	if err := t.store.RecordDistribution(ctx, t.cfg.Address, req.ProjectID, cycle.Number, req.Amount.Value, debit); err != nil {
		return fail(err)
	}

	if heldTotal.Sign() > 0 {
		if err := t.holdFees(ctx, req.ProjectID, plans, rate, discount, owner); err != nil {
			return fail(err)
		}
	}
	if immediateFee.Sign() > 0 && peer == nil {
		// Protocol project lives on this terminal: credit it directly.
		if err := t.store.AddBalance(ctx, t.cfg.Address, t.protocolProjectID, immediateFee); err != nil {
			return fail(err)
		}
		t.journal(ctx, t.protocolProjectID, store.KindFeeSettled, t.cfg.Address, owner, immediateFee, feeMemo(req.ProjectID))
	}

	t.journal(ctx, req.ProjectID, store.KindDistribution, "", owner, new(big.Int).Neg(debit), req.Memo)

	result := &DistributionResult{
		ID:            id.NewDistributionID(),
		ProjectID:     req.ProjectID,
		CycleNumber:   cycle.Number,
		Configuration: cycle.Configuration,
		Amount:        req.Amount,
		Distributed:   debit,
		Fee:           feeTotal,
		HeldFee:       heldTotal,
		Leftover:      leftover,
		Memo:          req.Memo,
	}
	for i := range plans {
		result.Payouts = append(result.Payouts, plans[i].payout)
	}

	if heldTotal.Sign() > 0 {
		t.plugins.EmitFeeHeld(ctx, uint64(req.ProjectID), heldTotal)
	}
	if peer != nil {
		return result, plans, immediateFee, peer, nil
	}
	return result, plans, nil, nil, nil
}

// planSplitPayout resolves one split's target and computes its fee. Fees are
// skipped for allocators, beneficiaries and peer terminals on the feeless
// allow-list, and for payouts that stay on this terminal.
func (t *Treasury) planSplitPayout(ctx context.Context, req DistributionRequest, split splits.Split, gross *big.Int, rate, discount uint64) (payoutPlan, error) {
	plan := payoutPlan{payout: Payout{
		ID:    id.NewPayoutID(),
		Split: split,
		Gross: gross,
	}}

	applyFee := rate > 0

	switch {
	case split.Allocator != "":
		if t.allocators == nil {
			return payoutPlan{}, fmt.Errorf("%w: allocator resolver", ErrNotConfigured)
		}
		allocator, err := t.allocators.AllocatorAt(ctx, split.Allocator)
		if err != nil {
			return payoutPlan{}, fmt.Errorf("allocator %s: %w", split.Allocator, err)
		}
		plan.allocator = allocator
		plan.payout.Kind = PayoutAllocator
		plan.payout.Address = split.Allocator
		if t.isFeeless(ctx, split.Allocator) {
			applyFee = false
		}

	case split.ProjectID != 0:
		if t.directory == nil {
			return payoutPlan{}, fmt.Errorf("%w: directory", ErrNotConfigured)
		}
		terminal, err := t.directory.PrimaryTerminalOf(ctx, split.ProjectID, t.cfg.Token)
		if err != nil {
			return payoutPlan{}, fmt.Errorf("terminal of project %d: %w", split.ProjectID, err)
		}
		if terminal == nil {
			return payoutPlan{}, fmt.Errorf("project %d: %w", split.ProjectID, ErrTerminalNotFound)
		}
		plan.payout.Kind = PayoutProject
		plan.payout.ProjectID = split.ProjectID
		plan.payout.Address = terminal.AddressOf()
		plan.addBalance = split.PreferAddToBalance
		plan.beneficiary = split.Beneficiary
		if plan.beneficiary == "" {
			plan.beneficiary = req.Caller
		}
		if terminal.AddressOf() == t.cfg.Address {
			// Stays on this terminal; never fee internal routing.
			applyFee = false
		} else {
			plan.terminal = terminal
			if t.isFeeless(ctx, terminal.AddressOf()) {
				applyFee = false
			}
		}

	case split.Beneficiary != "":
		plan.payout.Kind = PayoutBeneficiary
		plan.payout.Address = split.Beneficiary
		if t.isFeeless(ctx, split.Beneficiary) {
			applyFee = false
		}

	default:
		plan.payout.Kind = PayoutCaller
		plan.payout.Address = req.Caller
		if t.isFeeless(ctx, req.Caller) {
			applyFee = false
		}
	}

	fee := big.NewInt(0)
	if applyFee {
		fee = fees.Compute(gross, rate, discount)
	}
	plan.payout.Fee = fee
	plan.payout.Net = new(big.Int).Sub(gross, fee)
	return plan, nil
}

// holdFees appends one held fee entry per fee-bearing payout, so settlement
// and refunds reproduce the per-payout fee math exactly.
func (t *Treasury) holdFees(ctx context.Context, projectID types.ProjectID, plans []payoutPlan, rate, discount uint64, owner types.Address) error {
	for i := range plans {
		if plans[i].payout.Fee.Sign() == 0 {
			continue
		}
		entry := fees.HeldFee{
			ID:          id.NewHeldFeeID(),
			ProjectID:   projectID,
			Amount:      new(big.Int).Set(plans[i].payout.Gross),
			FeeRate:     rate,
			Discount:    discount,
			Beneficiary: owner,
			CreatedAt:   time.Now(),
		}
		if err := t.store.PushHeldFee(ctx, t.cfg.Address, projectID, entry); err != nil {
			return err
		}
	}
	return nil
}

// routePayouts runs post-commit routing: allocator callbacks and transfers
// to other projects' terminals. Faults here are logged; the ledger already
// reflects the distribution and the host still receives the full manifest.
func (t *Treasury) routePayouts(ctx context.Context, projectID types.ProjectID, domain uint64, plans []payoutPlan, memo string) {
	for i := range plans {
		plan := &plans[i]
		net := types.NewAmountFromBig(plan.payout.Net, t.cfg.Currency)

		switch plan.payout.Kind {
		case PayoutAllocator:
			err := plan.allocator.Allocate(ctx, Allocation{
				Token:     t.cfg.Token,
				Amount:    net,
				Decimals:  t.cfg.Decimals,
				ProjectID: projectID,
				Domain:    domain,
				Group:     splits.GroupPayouts,
				Split:     plan.payout.Split,
			})
			if err != nil {
				t.logger.Warn("allocator failed",
					"project_id", projectID,
					"allocator", plan.payout.Address,
					"error", err,
				)
			}

		case PayoutProject:
			var err error
			switch {
			case plan.terminal == nil && plan.addBalance:
				err = t.AddToBalance(ctx, plan.payout.ProjectID, net, memo)
			case plan.terminal == nil:
				_, err = t.Pay(ctx, PayRequest{
					ProjectID:   plan.payout.ProjectID,
					Payer:       t.cfg.Address,
					Amount:      net,
					Beneficiary: plan.beneficiary,
					Memo:        memo,
				})
			case plan.addBalance:
				err = plan.terminal.AddToBalance(ctx, plan.payout.ProjectID, net, memo)
			default:
				err = plan.terminal.Pay(ctx, plan.payout.ProjectID, net, t.cfg.Address, plan.beneficiary, memo, nil)
			}
			if err != nil {
				t.logger.Warn("project payout routing failed",
					"project_id", projectID,
					"target_project", plan.payout.ProjectID,
					"error", err,
				)
			}
		}
	}
}

// settleImmediateFee pays a non-held fee total to a remote protocol
// terminal after commit.
func (t *Treasury) settleImmediateFee(ctx context.Context, projectID types.ProjectID, fee *big.Int, peer PayoutTerminal) {
	if peer == nil || fee == nil || fee.Sign() == 0 {
		return
	}

	amount := types.NewAmountFromBig(fee, t.cfg.Currency)
	if err := peer.Pay(ctx, t.protocolProjectID, amount, t.cfg.Address, "", feeMemo(projectID), nil); err != nil {
		t.logger.Warn("protocol fee routing failed",
			"project_id", projectID,
			"fee", fee,
			"error", err,
		)
	}
}

func feeMemo(projectID types.ProjectID) string {
	return fmt.Sprintf("fee from project %d", projectID)
}

// ──────────────────────────────────────────────────
// Overflow allowance
// ──────────────────────────────────────────────────

// AllowanceRequest describes an overflow allowance draw.
type AllowanceRequest struct {
	ProjectID types.ProjectID
	// Amount is denominated in the allowance's currency.
	Amount      types.Amount
	Beneficiary types.Address
	Memo        string
}

// AllowanceResult describes a committed allowance draw. The host transfers
// Net to the beneficiary.
type AllowanceResult struct {
	ID            id.DistributionID
	ProjectID     types.ProjectID
	Configuration uint64
	Amount        types.Amount
	Withdrawn     *big.Int
	Fee           *big.Int
	Net           *big.Int
	Beneficiary   types.Address
	Memo          string
}

// UseAllowance draws from a project's overflow allowance. The allowance is
// keyed by funding cycle configuration, so the used tally survives automatic
// rollovers and resets only when the project is reconfigured.
func (t *Treasury) UseAllowance(ctx context.Context, req AllowanceRequest) (*AllowanceResult, error) {
	if req.Amount.Value == nil || !req.Amount.IsPositive() {
		return nil, ErrInvalidInput
	}

	result, immediateFee, peer, err := t.commitAllowanceUse(ctx, req)
	if err != nil {
		return nil, err
	}

	t.settleImmediateFee(ctx, req.ProjectID, immediateFee, peer)
	t.plugins.EmitAllowanceUsed(ctx, uint64(req.ProjectID), result.Configuration, result.Withdrawn)

	return result, nil
}

func (t *Treasury) commitAllowanceUse(ctx context.Context, req AllowanceRequest) (*AllowanceResult, *big.Int, PayoutTerminal, error) {
	unlock := t.lockProject(req.ProjectID)
	defer unlock()

	cycle, err := t.currentCycle(ctx, req.ProjectID)
	if err != nil {
		return nil, nil, nil, err
	}

	allowance, allowanceCurrency, err := t.controller.OverflowAllowanceOf(ctx, req.ProjectID, cycle.Configuration, t.cfg.Address, t.cfg.Token)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("overflow allowance: %w", err)
	}
	if req.Amount.Currency != allowanceCurrency {
		return nil, nil, nil, ErrCurrencyMismatch
	}

	used, err := t.store.UsedAllowanceOf(ctx, t.cfg.Address, req.ProjectID, cycle.Configuration)
	if err != nil {
		return nil, nil, nil, err
	}
	if allowance == nil || allowance.Sign() == 0 ||
		new(big.Int).Add(used, req.Amount.Value).Cmp(allowance) > 0 {
		return nil, nil, nil, ErrAllowanceLimitReached
	}

	debit, err := t.convert(ctx, req.Amount.Value, allowanceCurrency, t.cfg.Currency)
	if err != nil {
		return nil, nil, nil, err
	}

	owner, err := t.projects.OwnerOf(ctx, req.ProjectID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("project owner: %w", err)
	}

	rate := t.feeRateFor(req.ProjectID)
	fee := big.NewInt(0)
	discount := uint64(0)
	if rate > 0 && !t.isFeeless(ctx, req.Beneficiary) {
		discount = t.safeDiscountFor(ctx, req.ProjectID)
		fee = fees.Compute(debit, rate, discount)
	}

	var peer PayoutTerminal
	if fee.Sign() > 0 && !cycle.Metadata.HoldFees {
		peer, err = t.protocolTerminal(ctx)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if err := t.store.RecordAllowanceUse(ctx, t.cfg.Address, req.ProjectID, cycle.Configuration, req.Amount.Value, debit); err != nil {
		return nil, nil, nil, err
	}

	immediateFee := big.NewInt(0)
	if fee.Sign() > 0 {
		if cycle.Metadata.HoldFees {
			entry := fees.HeldFee{
				ID:          id.NewHeldFeeID(),
				ProjectID:   req.ProjectID,
				Amount:      new(big.Int).Set(debit),
				FeeRate:     rate,
				Discount:    discount,
				Beneficiary: owner,
				CreatedAt:   time.Now(),
			}
			if err := t.store.PushHeldFee(ctx, t.cfg.Address, req.ProjectID, entry); err != nil {
				return nil, nil, nil, err
			}
			t.plugins.EmitFeeHeld(ctx, uint64(req.ProjectID), fee)
		} else {
			immediateFee = fee
			if peer == nil {
				if err := t.store.AddBalance(ctx, t.cfg.Address, t.protocolProjectID, fee); err != nil {
					return nil, nil, nil, err
				}
				t.journal(ctx, t.protocolProjectID, store.KindFeeSettled, t.cfg.Address, owner, fee, feeMemo(req.ProjectID))
				immediateFee = big.NewInt(0)
			}
		}
	}

	t.journal(ctx, req.ProjectID, store.KindAllowance, "", req.Beneficiary, new(big.Int).Neg(debit), req.Memo)

	return &AllowanceResult{
		ID:            id.NewDistributionID(),
		ProjectID:     req.ProjectID,
		Configuration: cycle.Configuration,
		Amount:        req.Amount,
		Withdrawn:     debit,
		Fee:           fee,
		Net:           new(big.Int).Sub(debit, fee),
		Beneficiary:   req.Beneficiary,
		Memo:          req.Memo,
	}, immediateFee, peer, nil
}
