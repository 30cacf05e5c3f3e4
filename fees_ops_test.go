package treasury_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	treasury "github.com/fundpipe/treasury"
	"github.com/fundpipe/treasury/splits"
	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

func TestProcessFeesSettlesLocally(t *testing.T) {
	f := newFixture(t)
	cycle := testCycle(2)
	cycle.Metadata.HoldFees = true
	f.setCycle(cycle)
	f.controller.limit = big.NewInt(10_000)
	f.fund(2, 10_000)
	ctx := context.Background()

	if _, err := f.engine.DistributePayouts(ctx, treasury.DistributionRequest{ProjectID: 2, Amount: eth(10_000)}); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	fee := feeOn(10_000)

	result, err := f.engine.ProcessFees(ctx, 2)
	if err != nil {
		t.Fatalf("process fees: %v", err)
	}

	if result.Count != 1 {
		t.Errorf("count = %d, want 1", result.Count)
	}
	if result.Total.Cmp(fee) != 0 {
		t.Errorf("total = %s, want %s", result.Total, fee)
	}
	if got := f.balance(treasury.DefaultProtocolProjectID); got.Cmp(fee) != 0 {
		t.Errorf("protocol balance = %s, want %s", got, fee)
	}
	if n := f.heldFees(2); n != 0 {
		t.Errorf("held fees = %d, want 0", n)
	}

	// Settlement credits the protocol project without touching the
	// originating project's balance again.
	wantBig(t, "project balance", f.balance(2), 0)

	recs, err := f.engine.Payments(ctx, treasury.DefaultProtocolProjectID, store.ListOpts{Kind: store.KindFeeSettled})
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("fee journal entries = %d, want 1", len(recs))
	}
}

func TestProcessFeesEmptyQueueIsNoop(t *testing.T) {
	f := newFixture(t)
	f.setCycle(testCycle(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := f.engine.ProcessFees(ctx, 2)
		if err != nil {
			t.Fatalf("process fees: %v", err)
		}
		if result.Count != 0 || result.Total.Sign() != 0 {
			t.Errorf("count = %d, total = %s, want 0 and 0", result.Count, result.Total)
		}
	}
}

func TestProcessFeesRemoteProtocolTerminal(t *testing.T) {
	remote := &fakeTerminal{addr: "term_protocol", currency: "eth", decimals: 18}
	directory := &fakeDirectory{primary: map[types.ProjectID]treasury.PayoutTerminal{
		treasury.DefaultProtocolProjectID: remote,
	}}
	f := newFixture(t, treasury.WithDirectory(directory))
	cycle := testCycle(2)
	cycle.Metadata.HoldFees = true
	f.setCycle(cycle)
	f.controller.limit = big.NewInt(10_000)
	f.fund(2, 10_000)
	ctx := context.Background()

	if _, err := f.engine.DistributePayouts(ctx, treasury.DistributionRequest{ProjectID: 2, Amount: eth(10_000)}); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	result, err := f.engine.ProcessFees(ctx, 2)
	if err != nil {
		t.Fatalf("process fees: %v", err)
	}

	wantBig(t, "local protocol balance", f.balance(treasury.DefaultProtocolProjectID), 0)
	if len(remote.pays) != 1 {
		t.Fatalf("remote pays = %d, want 1", len(remote.pays))
	}
	if remote.pays[0].amount.Value.Cmp(result.Total) != 0 {
		t.Errorf("remote fee = %s, want %s", remote.pays[0].amount.Value, result.Total)
	}
	if n := f.heldFees(2); n != 0 {
		t.Errorf("held fees = %d, want 0", n)
	}
}

func TestFeelessRoundtrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.SetFeeless(ctx, "", true); !errors.Is(err, treasury.ErrInvalidInput) {
		t.Fatalf("empty address err = %v, want ErrInvalidInput", err)
	}

	if err := f.engine.SetFeeless(ctx, "alloc_1", true); err != nil {
		t.Fatalf("set feeless: %v", err)
	}
	feeless, err := f.engine.IsFeeless(ctx, "alloc_1")
	if err != nil {
		t.Fatalf("is feeless: %v", err)
	}
	if !feeless {
		t.Error("alloc_1 not feeless after set")
	}

	addrs, err := f.engine.FeelessAddresses(ctx)
	if err != nil {
		t.Fatalf("list feeless: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != "alloc_1" {
		t.Errorf("feeless list = %v, want [alloc_1]", addrs)
	}

	if err := f.engine.SetFeeless(ctx, "alloc_1", false); err != nil {
		t.Fatalf("unset feeless: %v", err)
	}
	feeless, err = f.engine.IsFeeless(ctx, "alloc_1")
	if err != nil {
		t.Fatalf("is feeless: %v", err)
	}
	if feeless {
		t.Error("alloc_1 still feeless after unset")
	}
}

func TestDistributeAllocator(t *testing.T) {
	allocator := &fakeAllocator{}
	resolver := &fakeAllocators{byAddr: map[types.Address]treasury.Allocator{"alloc_1": allocator}}
	f := newFixture(t, treasury.WithAllocators(resolver))
	f.setCycle(testCycle(2))
	f.controller.limit = big.NewInt(10_000)
	f.fund(2, 10_000)
	f.splits.groups[splits.GroupPayouts] = []splits.Split{
		{Percent: splits.TotalPercent / 2, Allocator: "alloc_1"},
	}

	result, err := f.engine.DistributePayouts(context.Background(), treasury.DistributionRequest{
		ProjectID: 2,
		Amount:    eth(10_000),
	})
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}

	var allocPayout treasury.Payout
	for _, p := range result.Payouts {
		if p.Kind == treasury.PayoutAllocator {
			allocPayout = p
		}
	}
	if allocPayout.Address != "alloc_1" {
		t.Fatalf("allocator payout missing from %v", result.Payouts)
	}

	if len(allocator.allocations) != 1 {
		t.Fatalf("allocations = %d, want 1", len(allocator.allocations))
	}
	allocation := allocator.allocations[0]
	if allocation.ProjectID != 2 {
		t.Errorf("allocation project = %d, want 2", allocation.ProjectID)
	}
	if allocation.Domain != result.Configuration {
		t.Errorf("allocation domain = %d, want %d", allocation.Domain, result.Configuration)
	}
	if allocation.Group != splits.GroupPayouts {
		t.Errorf("allocation group = %d, want %d", allocation.Group, splits.GroupPayouts)
	}
	if allocation.Amount.Value.Cmp(allocPayout.Net) != 0 {
		t.Errorf("allocation amount = %s, want %s", allocation.Amount.Value, allocPayout.Net)
	}
}

func TestDistributeUnresolvableAllocatorFailsDraw(t *testing.T) {
	resolver := &fakeAllocators{byAddr: map[types.Address]treasury.Allocator{}}
	f := newFixture(t, treasury.WithAllocators(resolver))
	f.setCycle(testCycle(2))
	f.controller.limit = big.NewInt(10_000)
	f.fund(2, 10_000)
	f.splits.groups[splits.GroupPayouts] = []splits.Split{
		{Percent: splits.TotalPercent / 2, Allocator: "alloc_missing"},
	}

	_, err := f.engine.DistributePayouts(context.Background(), treasury.DistributionRequest{
		ProjectID: 2,
		Amount:    eth(10_000),
	})
	if err == nil {
		t.Fatal("expected error for unresolvable allocator")
	}
	wantBig(t, "balance", f.balance(2), 10_000)
}
