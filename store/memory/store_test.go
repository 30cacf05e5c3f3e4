package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"

	treasury "github.com/fundpipe/treasury"
)

func TestAddBalanceRejectsNegativeResult(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.AddBalance(ctx, "term", 1, big.NewInt(100)); err != nil {
		t.Fatalf("add: %v", err)
	}

	// A debit past zero fails without writing.
	err := s.AddBalance(ctx, "term", 1, big.NewInt(-250))
	if !errors.Is(err, treasury.ErrInadequateBalance) {
		t.Fatalf("err = %v, want ErrInadequateBalance", err)
	}
	b, err := s.BalanceOf(ctx, "term", 1)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Int64() != 100 {
		t.Errorf("balance = %s, want 100", b)
	}

	// A covered debit still applies.
	if err := s.AddBalance(ctx, "term", 1, big.NewInt(-40)); err != nil {
		t.Fatalf("add: %v", err)
	}
	b, err = s.BalanceOf(ctx, "term", 1)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Int64() != 60 {
		t.Errorf("balance = %s, want 60", b)
	}
}

func TestAddBalanceRejectsNegativeOnMissingRow(t *testing.T) {
	s := New()

	err := s.AddBalance(context.Background(), "term", 9, big.NewInt(-1))
	if !errors.Is(err, treasury.ErrInadequateBalance) {
		t.Fatalf("err = %v, want ErrInadequateBalance", err)
	}
	b, err := s.BalanceOf(context.Background(), "term", 9)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Sign() != 0 {
		t.Errorf("balance = %s, want 0", b)
	}
}
