package treasury

import "github.com/fundpipe/treasury/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Currency is re-exported from types package.
type Currency = types.Currency

// Address is re-exported from types package.
type Address = types.Address

// ProjectID is re-exported from types package.
type ProjectID = types.ProjectID

// Re-export Amount constructors
var (
	NewAmount        = types.NewAmount
	NewAmountFromBig = types.NewAmountFromBig
	ZeroAmount       = types.ZeroAmount
	Sum              = types.Sum
)
