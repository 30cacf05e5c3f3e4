package fees

import (
	"math/big"
	"testing"

	"github.com/fundpipe/treasury/id"
)

func TestEffectiveRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     uint64
		discount uint64
		want     uint64
	}{
		{"no discount", 25_000_000, 0, 25_000_000},
		{"full discount", 25_000_000, MaxFeeDiscount, 0},
		{"half discount", 25_000_000, MaxFeeDiscount / 2, 12_500_000},
		{"floors reduction", 3, MaxFeeDiscount / 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveRate(tt.rate, tt.discount); got != tt.want {
				t.Errorf("EffectiveRate(%d, %d) = %d, want %d", tt.rate, tt.discount, got, tt.want)
			}
		})
	}
}

func TestComputeReciprocal(t *testing.T) {
	// The fee on a gross amount must equal the charge the net amount would
	// incur if paid at the same rate, and fee + net must recompose the
	// gross amount exactly.
	amount := big.NewInt(1_000_000_000_000)
	rate := uint64(25_000_000) // 2.5%

	fee := Compute(amount, rate, 0)
	net := NetOf(amount, rate, 0)

	if got := new(big.Int).Add(fee, net); got.Cmp(amount) != 0 {
		t.Errorf("fee + net = %s, want %s", got, amount)
	}

	// fee == floor(net * rate / MaxFee) within one unit of flooring.
	charge := new(big.Int).Mul(net, new(big.Int).SetUint64(rate))
	charge.Quo(charge, big.NewInt(MaxFee))
	diff := new(big.Int).Sub(fee, charge)
	if diff.Sign() < 0 || diff.Int64() > 1 {
		t.Errorf("fee %s not reciprocal to net charge %s", fee, charge)
	}
}

func TestComputeZeroRate(t *testing.T) {
	if got := Compute(big.NewInt(12345), 0, 0); got.Sign() != 0 {
		t.Errorf("zero rate fee = %s, want 0", got)
	}
	if got := Compute(big.NewInt(12345), 25_000_000, MaxFeeDiscount); got.Sign() != 0 {
		t.Errorf("fully discounted fee = %s, want 0", got)
	}
}

func held(amount int64, rate uint64) HeldFee {
	return HeldFee{
		ID:      id.NewHeldFeeID(),
		Amount:  big.NewInt(amount),
		FeeRate: rate,
	}
}

func TestRefundBonus(t *testing.T) {
	const rate = 25_000_000
	gross := int64(1_000_000)
	feeOn := func(v int64) *big.Int { return Compute(big.NewInt(v), rate, 0) }

	t.Run("deposit equals gross consumes entry", func(t *testing.T) {
		bonus, remaining := RefundBonus([]HeldFee{held(gross, rate)}, big.NewInt(gross))
		if bonus.Cmp(feeOn(gross)) != 0 {
			t.Errorf("bonus = %s, want %s", bonus, feeOn(gross))
		}
		if len(remaining) != 0 {
			t.Errorf("remaining = %d entries, want 0", len(remaining))
		}
	})

	t.Run("deposit twice gross consumes entry once", func(t *testing.T) {
		bonus, remaining := RefundBonus([]HeldFee{held(gross, rate)}, big.NewInt(2*gross))
		if bonus.Cmp(feeOn(gross)) != 0 {
			t.Errorf("bonus = %s, want %s", bonus, feeOn(gross))
		}
		if len(remaining) != 0 {
			t.Errorf("remaining = %d entries, want 0", len(remaining))
		}
	})

	t.Run("deposit half gross leaves reduced entry", func(t *testing.T) {
		entries := []HeldFee{held(gross, rate)}
		bonus, remaining := RefundBonus(entries, big.NewInt(gross/2))
		if bonus.Cmp(feeOn(gross/2)) != 0 {
			t.Errorf("bonus = %s, want %s", bonus, feeOn(gross/2))
		}
		if len(remaining) != 1 {
			t.Fatalf("remaining = %d entries, want 1", len(remaining))
		}
		if remaining[0].Amount.Int64() != gross/2 {
			t.Errorf("remaining amount = %s, want %d", remaining[0].Amount, gross/2)
		}
		// The original entry must be untouched.
		if entries[0].Amount.Int64() != gross {
			t.Errorf("input entry mutated to %s", entries[0].Amount)
		}
	})

	t.Run("walks oldest first across entries", func(t *testing.T) {
		entries := []HeldFee{held(gross, rate), held(gross, rate), held(gross, rate)}
		bonus, remaining := RefundBonus(entries, big.NewInt(gross+gross/2))

		want := new(big.Int).Add(feeOn(gross), feeOn(gross/2))
		if bonus.Cmp(want) != 0 {
			t.Errorf("bonus = %s, want %s", bonus, want)
		}
		if len(remaining) != 2 {
			t.Fatalf("remaining = %d entries, want 2", len(remaining))
		}
		if remaining[0].Amount.Int64() != gross/2 {
			t.Errorf("first remaining amount = %s, want %d", remaining[0].Amount, gross/2)
		}
		if remaining[1].Amount.Int64() != gross {
			t.Errorf("second remaining amount = %s, want %d", remaining[1].Amount, gross)
		}
	})

	t.Run("zero deposit keeps queue", func(t *testing.T) {
		bonus, remaining := RefundBonus([]HeldFee{held(gross, rate)}, new(big.Int))
		if bonus.Sign() != 0 {
			t.Errorf("bonus = %s, want 0", bonus)
		}
		if len(remaining) != 1 {
			t.Errorf("remaining = %d entries, want 1", len(remaining))
		}
	})
}
