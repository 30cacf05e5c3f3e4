package types

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(1000, "eth")
	b := NewAmount(250, "eth")

	sum := a.Add(b)
	if sum.Value.Int64() != 1250 {
		t.Errorf("Add: got %s, want 1250", sum.Value)
	}
	diff := a.Subtract(b)
	if diff.Value.Int64() != 750 {
		t.Errorf("Subtract: got %s, want 750", diff.Value)
	}

	// Operands must be untouched.
	if a.Value.Int64() != 1000 || b.Value.Int64() != 250 {
		t.Errorf("operands mutated: a=%s b=%s", a.Value, b.Value)
	}
}

func TestAmountCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on currency mismatch")
		}
	}()

	NewAmount(1, "eth").Add(NewAmount(1, "usd"))
}

func TestAmountMulDivFloors(t *testing.T) {
	tests := []struct {
		name     string
		value    int64
		num, den int64
		want     int64
	}{
		{"exact", 1000, 1, 2, 500},
		{"floors down", 1000, 1, 3, 333},
		{"scales up", 7, 3, 1, 21},
		{"zero value", 0, 7, 13, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAmount(tt.value, "eth").MulDiv(big.NewInt(tt.num), big.NewInt(tt.den))
			if got.Value.Int64() != tt.want {
				t.Errorf("MulDiv(%d, %d, %d) = %s, want %d", tt.value, tt.num, tt.den, got.Value, tt.want)
			}
		})
	}
}

func TestAmountComparisons(t *testing.T) {
	small := NewAmount(5, "usd")
	large := NewAmount(9, "usd")

	if !small.LessThan(large) {
		t.Error("5 should be less than 9")
	}
	if !large.GreaterThan(small) {
		t.Error("9 should be greater than 5")
	}
	if !small.Min(large).Equal(small) {
		t.Error("Min should pick the smaller amount")
	}
	if !ZeroAmount("usd").IsZero() {
		t.Error("ZeroAmount should be zero")
	}

	var uninitialized Amount
	if !uninitialized.IsZero() {
		t.Error("zero-value Amount should report IsZero")
	}
}

func TestZeroAmountKeepsCurrencyAsGiven(t *testing.T) {
	// Every constructor must agree on currency identity, or a zero amount
	// fails Equal against its non-zero siblings.
	zero := ZeroAmount("ETH")
	if zero.Currency != "ETH" {
		t.Errorf("currency = %q, want ETH", zero.Currency)
	}
	if !NewAmountFromBig(nil, "ETH").Equal(zero) {
		t.Error("nil-backed amount should equal ZeroAmount of the same currency")
	}
	if !NewAmount(0, "ETH").Equal(zero) {
		t.Error("NewAmount(0) should equal ZeroAmount of the same currency")
	}
}

func TestAmountJSONRoundTrip(t *testing.T) {
	// A value far past int64 range must survive JSON encoding.
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	a := NewAmountFromBig(huge, "eth")

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Amount
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(a) {
		t.Errorf("round trip: got %s, want %s", back, a)
	}
}

func TestMulDivHelper(t *testing.T) {
	got := MulDiv(big.NewInt(10), big.NewInt(10), big.NewInt(3))
	if got.Int64() != 33 {
		t.Errorf("MulDiv(10, 10, 3) = %s, want 33", got)
	}
}

func TestSum(t *testing.T) {
	total := Sum(NewAmount(1, "eth"), NewAmount(2, "eth"), NewAmount(3, "eth"))
	if total.Value.Int64() != 6 {
		t.Errorf("Sum = %s, want 6", total.Value)
	}
}
