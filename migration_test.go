package treasury_test

import (
	"context"
	"testing"

	"github.com/fundpipe/treasury/store"
)

func TestMigrateBalance(t *testing.T) {
	f := newFixture(t)
	f.setCycle(testCycle(2))
	f.fund(2, 1_000)
	remote := &fakeTerminal{addr: "term_new", currency: "eth", decimals: 18}
	ctx := context.Background()

	moved, err := f.engine.MigrateBalance(ctx, 2, remote)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	wantBig(t, "moved", moved.Value, 1_000)
	wantBig(t, "balance", f.balance(2), 0)

	if len(remote.deposits) != 1 {
		t.Fatalf("remote deposits = %d, want 1", len(remote.deposits))
	}
	wantBig(t, "hand-off amount", remote.deposits[0].amount.Value, 1_000)

	recs, err := f.engine.Payments(ctx, 2, store.ListOpts{Kind: store.KindMigration})
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(recs))
	}
	wantBig(t, "journal delta", recs[0].Amount, -1_000)
}

func TestMigrateZeroBalance(t *testing.T) {
	f := newFixture(t)
	remote := &fakeTerminal{addr: "term_new", currency: "eth", decimals: 18}

	moved, err := f.engine.MigrateBalance(context.Background(), 2, remote)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	wantBig(t, "moved", moved.Value, 0)
	if len(remote.deposits) != 0 {
		t.Errorf("remote deposits = %d, want 0", len(remote.deposits))
	}
}

func TestMigrateWithoutTarget(t *testing.T) {
	f := newFixture(t)
	f.fund(2, 1_000)

	moved, err := f.engine.MigrateBalance(context.Background(), 2, nil)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	wantBig(t, "moved", moved.Value, 1_000)
	wantBig(t, "balance", f.balance(2), 0)
}

func TestMigrateKeepsHeldFees(t *testing.T) {
	f := newFixture(t)
	f.setCycle(testCycle(2))
	f.fund(2, 1_000)
	pushHeldFee(t, f, 2, 500, 25_000_000)

	if _, err := f.engine.MigrateBalance(context.Background(), 2, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if n := f.heldFees(2); n != 1 {
		t.Errorf("held fees = %d, want 1", n)
	}
}
