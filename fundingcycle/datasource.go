package fundingcycle

import (
	"context"
	"math/big"

	"github.com/fundpipe/treasury/types"
)

// DataSource lets a cycle override how a payment's weight or a redemption's
// reclaim amount is computed, and attach delegates that run after the engine
// commits its record.
//
// Data sources are host code and untrusted; the engine propagates their
// errors unchanged.
type DataSource interface {
	// PayParams may adjust the weight applied to a payment and supply a
	// memo override plus an optional post-commit delegate.
	PayParams(ctx context.Context, params PayParams) (PayOverride, error)

	// RedeemParams may adjust the reclaim amount computed by the curve and
	// supply a memo override plus an optional post-commit delegate.
	RedeemParams(ctx context.Context, params RedeemParams) (RedeemOverride, error)
}

// PayParams is the context handed to a data source for a payment.
type PayParams struct {
	Payer       types.Address
	ProjectID   types.ProjectID
	Amount      types.Amount
	Weight      *big.Int
	Beneficiary types.Address
	Memo        string
	Metadata    []byte
}

// PayOverride is a data source's answer for a payment.
type PayOverride struct {
	Weight   *big.Int
	Memo     string
	Delegate PayDelegate
}

// RedeemParams is the context handed to a data source for a redemption.
type RedeemParams struct {
	Holder         types.Address
	ProjectID      types.ProjectID
	TokenCount     *big.Int
	TotalSupply    *big.Int
	Overflow       *big.Int
	ReclaimAmount  types.Amount
	CurrencyOut    types.Currency
	RedemptionRate uint64
	Memo           string
	Metadata       []byte
}

// RedeemOverride is a data source's answer for a redemption.
type RedeemOverride struct {
	ReclaimAmount *big.Int
	Memo          string
	Delegate      RedemptionDelegate
}

// PayDelegate runs after a payment has been committed.
type PayDelegate interface {
	DidPay(ctx context.Context, data DidPayData) error
}

// DidPayData describes a committed payment for a delegate.
type DidPayData struct {
	Payer       types.Address
	ProjectID   types.ProjectID
	Amount      types.Amount
	Weight      *big.Int
	Beneficiary types.Address
	Memo        string
	Metadata    []byte
}

// RedemptionDelegate runs after a redemption has been committed.
type RedemptionDelegate interface {
	DidRedeem(ctx context.Context, data DidRedeemData) error
}

// DidRedeemData describes a committed redemption for a delegate.
type DidRedeemData struct {
	Holder        types.Address
	ProjectID     types.ProjectID
	TokenCount    *big.Int
	ReclaimAmount types.Amount
	Beneficiary   types.Address
	Memo          string
	Metadata      []byte
}
