// Package types provides common types used across the treasury engine.
package types

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// FixedPointDecimals is the fidelity used for price-oracle conversions.
// Rates are expressed as fixed-point integers scaled by 10^FixedPointDecimals
// and conversions are floor-rounded.
const FixedPointDecimals = 18

// Currency identifies an accounting currency ("eth", "usd", ...).
// A terminal keeps every balance in exactly one currency; values in another
// currency must pass through the price oracle before touching a balance.
type Currency string

// Token identifies the transferable asset a terminal manages. The zero value
// denotes the chain's native token.
type Token string

// Address identifies an external account: a payer, beneficiary, allocator or
// peer terminal.
type Address string

// ProjectID identifies a project (tenant) in the ownership registry.
type ProjectID uint64

// Amount is a monetary value in the smallest unit of its currency.
// All arithmetic is arbitrary-precision integer math; nothing here touches
// floating point.
// Amounts are immutable: every operation returns a fresh value and never
// mutates the receiver's big.Int.
type Amount struct {
	Value    *big.Int `json:"value"`
	Currency Currency `json:"currency"`
}

// NewAmount creates an Amount from an int64 value.
func NewAmount(value int64, currency Currency) Amount {
	return Amount{Value: big.NewInt(value), Currency: currency}
}

// NewAmountFromBig creates an Amount from a big.Int. The value is copied.
func NewAmountFromBig(value *big.Int, currency Currency) Amount {
	if value == nil {
		return ZeroAmount(currency)
	}
	return Amount{Value: new(big.Int).Set(value), Currency: currency}
}

// ZeroAmount returns a zero Amount in the specified currency. The currency
// is kept as given, matching NewAmount and NewAmountFromBig.
func ZeroAmount(currency Currency) Amount {
	return Amount{Value: new(big.Int), Currency: currency}
}

// Arithmetic operations

// Add adds two Amounts. Panics if currencies don't match.
func (a Amount) Add(other Amount) Amount {
	a.assertSameCurrency(other)
	return Amount{Value: new(big.Int).Add(a.Value, other.Value), Currency: a.Currency}
}

// Subtract subtracts another Amount. Panics if currencies don't match.
func (a Amount) Subtract(other Amount) Amount {
	a.assertSameCurrency(other)
	return Amount{Value: new(big.Int).Sub(a.Value, other.Value), Currency: a.Currency}
}

// MulDiv returns floor(a * num / den), the floor-rounded fixed-point product
// used for rate and percentage application. Panics if den is zero.
func (a Amount) MulDiv(num, den *big.Int) Amount {
	if den.Sign() == 0 {
		panic("amount: division by zero")
	}
	v := new(big.Int).Mul(a.Value, num)
	v.Quo(v, den)
	return Amount{Value: v, Currency: a.Currency}
}

// Comparison methods

// IsZero returns true if the value is zero.
func (a Amount) IsZero() bool { return a.Value == nil || a.Value.Sign() == 0 }

// IsPositive returns true if the value is greater than zero.
func (a Amount) IsPositive() bool { return a.Value != nil && a.Value.Sign() > 0 }

// IsNegative returns true if the value is less than zero.
func (a Amount) IsNegative() bool { return a.Value != nil && a.Value.Sign() < 0 }

// Equal returns true if both Amounts have the same value and currency.
func (a Amount) Equal(other Amount) bool {
	return a.Currency == other.Currency && a.big().Cmp(other.big()) == 0
}

// LessThan returns true if a < other. Panics if currencies don't match.
func (a Amount) LessThan(other Amount) bool {
	a.assertSameCurrency(other)
	return a.big().Cmp(other.big()) < 0
}

// GreaterThan returns true if a > other. Panics if currencies don't match.
func (a Amount) GreaterThan(other Amount) bool {
	a.assertSameCurrency(other)
	return a.big().Cmp(other.big()) > 0
}

// Min returns the smaller of two Amounts. Panics if currencies don't match.
func (a Amount) Min(other Amount) Amount {
	a.assertSameCurrency(other)
	if a.big().Cmp(other.big()) < 0 {
		return a
	}
	return other
}

// String returns "<value> <currency>", e.g. "1000000000000000000 eth".
func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.big().String(), a.Currency)
}

// MarshalJSON implements json.Marshaler. The value is emitted as a decimal
// string so arbitrary-precision amounts survive JSON number parsers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value    string   `json:"value"`
		Currency Currency `json:"currency"`
	}{
		Value:    a.big().String(),
		Currency: a.Currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value    string   `json:"value"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, ok := new(big.Int).SetString(raw.Value, 10)
	if !ok {
		return fmt.Errorf("amount: invalid value %q", raw.Value)
	}
	a.Value = v
	a.Currency = raw.Currency
	return nil
}

// Helper functions

func (a Amount) big() *big.Int {
	if a.Value == nil {
		return new(big.Int)
	}
	return a.Value
}

// assertSameCurrency panics if currencies don't match.
func (a Amount) assertSameCurrency(other Amount) {
	if a.Currency != other.Currency {
		panic(fmt.Sprintf("amount: currency mismatch: %s != %s", a.Currency, other.Currency))
	}
}

// MulDiv returns floor(value * num / den) without allocating an Amount.
// Panics if den is zero.
func MulDiv(value, num, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		panic("types: division by zero")
	}
	v := new(big.Int).Mul(value, num)
	return v.Quo(v, den)
}

// Sum calculates the sum of multiple Amounts. All must share one currency.
func Sum(values ...Amount) Amount {
	if len(values) == 0 {
		return ZeroAmount("")
	}
	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}
