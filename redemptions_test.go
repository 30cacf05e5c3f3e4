package treasury_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	treasury "github.com/fundpipe/treasury"
	"github.com/fundpipe/treasury/fundingcycle"
	"github.com/fundpipe/treasury/redemption"
	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

const holderAddr = types.Address("holder_1")

func TestCurrentOverflow(t *testing.T) {
	f := newFixture(t)
	f.setCycle(testCycle(2))
	f.controller.limit = big.NewInt(400)
	f.fund(2, 1_000)
	ctx := context.Background()

	// Overflow is the balance beyond the unspent distribution limit.
	overflow, err := f.engine.CurrentOverflowOf(ctx, 2)
	if err != nil {
		t.Fatalf("overflow: %v", err)
	}
	wantBig(t, "overflow", overflow.Value, 600)

	// Spending part of the limit frees the spent portion.
	if _, err := f.engine.DistributePayouts(ctx, treasury.DistributionRequest{ProjectID: 2, Amount: eth(100)}); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	overflow, err = f.engine.CurrentOverflowOf(ctx, 2)
	if err != nil {
		t.Fatalf("overflow: %v", err)
	}
	// Balance 900, unspent limit 300.
	wantBig(t, "overflow after draw", overflow.Value, 600)
}

func TestCurrentOverflowFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	f.setCycle(testCycle(2))
	f.controller.limit = big.NewInt(5_000)
	f.fund(2, 1_000)

	overflow, err := f.engine.CurrentOverflowOf(context.Background(), 2)
	if err != nil {
		t.Fatalf("overflow: %v", err)
	}
	wantBig(t, "overflow", overflow.Value, 0)
}

func TestCurrentTotalOverflow(t *testing.T) {
	remote := &fakeTerminal{
		addr:     "term_remote",
		currency: "eth",
		decimals: 18,
		overflow: eth(250),
	}
	directory := &fakeDirectory{
		primary:   map[types.ProjectID]treasury.PayoutTerminal{},
		terminals: map[types.ProjectID][]treasury.PayoutTerminal{},
	}
	f := newFixture(t, treasury.WithDirectory(directory))
	directory.terminals[2] = []treasury.PayoutTerminal{f.engine.Terminal(), remote}
	f.setCycle(testCycle(2))
	f.fund(2, 1_000)

	total, err := f.engine.CurrentTotalOverflowOf(context.Background(), 2, "eth", 18)
	if err != nil {
		t.Fatalf("total overflow: %v", err)
	}
	wantBig(t, "total overflow", total, 1_250)
}

func redeemFixture(t *testing.T, opts ...treasury.Option) *fixture {
	t.Helper()
	f := newFixture(t, opts...)
	f.setCycle(testCycle(2))
	f.fund(2, 1_000)
	f.controller.totalSupply = big.NewInt(1_000)
	f.controller.tokenBalances[holderAddr] = big.NewInt(500)
	return f
}

func TestRedeemProRata(t *testing.T) {
	f := redeemFixture(t)
	ctx := context.Background()

	result, err := f.engine.RedeemTokens(ctx, treasury.RedeemRequest{
		ProjectID:   2,
		Holder:      holderAddr,
		TokenCount:  big.NewInt(250),
		Beneficiary: "ben_a",
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// 250 of 1000 tokens at the maximum rate claim exactly a quarter of the
	// 1000 overflow.
	wantBig(t, "reclaimed", result.ReclaimAmount.Value, 250)
	wantBig(t, "balance", f.balance(2), 750)

	recs, err := f.engine.Payments(ctx, 2, store.ListOpts{Kind: store.KindRedemption})
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(recs))
	}
	wantBig(t, "journal delta", recs[0].Amount, -250)
}

func TestRedeemBondingCurve(t *testing.T) {
	f := redeemFixture(t)
	cycle := testCycle(2)
	cycle.Metadata.RedemptionRate = redemption.MaxRate / 2
	f.setCycle(cycle)

	result, err := f.engine.RedeemTokens(context.Background(), treasury.RedeemRequest{
		ProjectID:  2,
		Holder:     holderAddr,
		TokenCount: big.NewInt(250),
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	want := redemption.Reclaimable(redemption.Params{
		Overflow:    big.NewInt(1_000),
		TokenCount:  big.NewInt(250),
		TotalSupply: big.NewInt(1_000),
		Rate:        redemption.MaxRate / 2,
	})
	if result.ReclaimAmount.Value.Cmp(want) != 0 {
		t.Errorf("reclaimed = %s, want %s", result.ReclaimAmount.Value, want)
	}
	// The curve pays less than pro-rata below the maximum rate.
	if result.ReclaimAmount.Value.Cmp(big.NewInt(250)) >= 0 {
		t.Errorf("reclaimed = %s, want below pro-rata 250", result.ReclaimAmount.Value)
	}
}

func TestRedeemBallotActiveSubstitutesRate(t *testing.T) {
	f := redeemFixture(t)
	cycle := testCycle(2)
	cycle.Metadata.RedemptionRate = redemption.MaxRate
	cycle.Metadata.BallotRedemptionRate = 0
	f.setCycle(cycle)
	f.cycles.ballots[cycle.Configuration] = fundingcycle.BallotActive

	result, err := f.engine.RedeemTokens(context.Background(), treasury.RedeemRequest{
		ProjectID:  2,
		Holder:     holderAddr,
		TokenCount: big.NewInt(250),
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// A zero ballot redemption rate reclaims nothing while the ballot is
	// still active.
	wantBig(t, "reclaimed", result.ReclaimAmount.Value, 0)
	wantBig(t, "balance", f.balance(2), 1_000)
}

func TestRedeemInsufficientTokens(t *testing.T) {
	f := redeemFixture(t)

	_, err := f.engine.RedeemTokens(context.Background(), treasury.RedeemRequest{
		ProjectID:  2,
		Holder:     holderAddr,
		TokenCount: big.NewInt(501),
	})
	if !errors.Is(err, treasury.ErrInsufficientTokens) {
		t.Fatalf("err = %v, want ErrInsufficientTokens", err)
	}
}

func TestRedeemUnknownHolder(t *testing.T) {
	f := redeemFixture(t)

	_, err := f.engine.RedeemTokens(context.Background(), treasury.RedeemRequest{
		ProjectID:  2,
		Holder:     "stranger",
		TokenCount: big.NewInt(1),
	})
	if !errors.Is(err, treasury.ErrInsufficientTokens) {
		t.Fatalf("err = %v, want ErrInsufficientTokens", err)
	}
}

func TestRedeemPaused(t *testing.T) {
	f := redeemFixture(t)
	cycle := testCycle(2)
	cycle.Metadata.PauseRedeem = true
	f.setCycle(cycle)

	_, err := f.engine.RedeemTokens(context.Background(), treasury.RedeemRequest{
		ProjectID:  2,
		Holder:     holderAddr,
		TokenCount: big.NewInt(100),
	})
	if !errors.Is(err, treasury.ErrRedeemPaused) {
		t.Fatalf("err = %v, want ErrRedeemPaused", err)
	}
}

func TestRedeemMinReclaimed(t *testing.T) {
	f := redeemFixture(t)

	_, err := f.engine.RedeemTokens(context.Background(), treasury.RedeemRequest{
		ProjectID:    2,
		Holder:       holderAddr,
		TokenCount:   big.NewInt(250),
		MinReclaimed: big.NewInt(251),
	})
	if !errors.Is(err, treasury.ErrInadequateReclaim) {
		t.Fatalf("err = %v, want ErrInadequateReclaim", err)
	}
	wantBig(t, "balance", f.balance(2), 1_000)
}

func TestRedeemRejectsNonPositiveCount(t *testing.T) {
	f := redeemFixture(t)

	for _, count := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		_, err := f.engine.RedeemTokens(context.Background(), treasury.RedeemRequest{
			ProjectID:  2,
			Holder:     holderAddr,
			TokenCount: count,
		})
		if !errors.Is(err, treasury.ErrInvalidInput) {
			t.Errorf("count %v: err = %v, want ErrInvalidInput", count, err)
		}
	}
}

func TestCurrentReclaimableOverflow(t *testing.T) {
	f := redeemFixture(t)

	reclaim, err := f.engine.CurrentReclaimableOverflowOf(context.Background(), 2, big.NewInt(250))
	if err != nil {
		t.Fatalf("reclaimable: %v", err)
	}
	wantBig(t, "reclaimable", reclaim.Value, 250)
	// A query never moves funds.
	wantBig(t, "balance", f.balance(2), 1_000)
}

type fakeDataSource struct {
	payOverride    fundingcycle.PayOverride
	redeemOverride fundingcycle.RedeemOverride
}

func (d *fakeDataSource) PayParams(_ context.Context, _ fundingcycle.PayParams) (fundingcycle.PayOverride, error) {
	return d.payOverride, nil
}

func (d *fakeDataSource) RedeemParams(_ context.Context, _ fundingcycle.RedeemParams) (fundingcycle.RedeemOverride, error) {
	return d.redeemOverride, nil
}

func TestPayDataSourceOverridesWeight(t *testing.T) {
	f := newFixture(t)
	cycle := testCycle(2)
	cycle.Metadata.UseDataSourceForPay = true
	cycle.Metadata.DataSource = &fakeDataSource{
		payOverride: fundingcycle.PayOverride{Weight: big.NewInt(42), Memo: "adjusted"},
	}
	f.setCycle(cycle)

	result, err := f.engine.Pay(context.Background(), treasury.PayRequest{
		ProjectID: 2,
		Payer:     payerAddr,
		Amount:    eth(1_000),
		Memo:      "original",
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}

	wantBig(t, "weight", result.Weight, 42)
	if result.Memo != "adjusted" {
		t.Errorf("memo = %q, want adjusted", result.Memo)
	}
	// The override changes the recorded weight, never the committed amount.
	wantBig(t, "balance", f.balance(2), 1_000)
}

func TestRedeemDataSourceOverridesReclaim(t *testing.T) {
	f := redeemFixture(t)
	cycle := testCycle(2)
	cycle.Metadata.UseDataSourceForRedeem = true
	cycle.Metadata.DataSource = &fakeDataSource{
		redeemOverride: fundingcycle.RedeemOverride{ReclaimAmount: big.NewInt(100)},
	}
	f.setCycle(cycle)

	result, err := f.engine.RedeemTokens(context.Background(), treasury.RedeemRequest{
		ProjectID:  2,
		Holder:     holderAddr,
		TokenCount: big.NewInt(250),
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	// The curve would reclaim 250; the data source caps it at 100.
	wantBig(t, "reclaimed", result.ReclaimAmount.Value, 100)
	wantBig(t, "balance", f.balance(2), 900)
}
