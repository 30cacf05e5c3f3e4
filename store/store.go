// Package store defines the persistence contract for the treasury engine.
//
// Every method is atomic within its backend: composite mutations the engine
// needs committed together (a counter increment plus the matching balance
// debit, a queue replacement plus the matching credit) are single calls here
// so no backend can expose a half-applied record.
package store

import (
	"context"
	"math/big"
	"time"

	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/id"
	"github.com/fundpipe/treasury/types"
)

// PaymentKind classifies a journal entry by the operation that produced it.
type PaymentKind string

const (
	KindPay          PaymentKind = "pay"
	KindDeposit      PaymentKind = "deposit"
	KindDistribution PaymentKind = "distribution"
	KindAllowance    PaymentKind = "allowance"
	KindRedemption   PaymentKind = "redemption"
	KindMigration    PaymentKind = "migration"
	KindFeeSettled   PaymentKind = "fee_settled"
)

// PaymentRecord is one append-only journal entry. Amount is the signed delta
// applied to the project's balance, in the terminal's currency. Replaying a
// project's journal in order reproduces its balance.
type PaymentRecord struct {
	ID          id.PaymentID    `json:"id"`
	Terminal    types.Address   `json:"terminal"`
	ProjectID   types.ProjectID `json:"project_id"`
	Kind        PaymentKind     `json:"kind"`
	Payer       types.Address   `json:"payer,omitempty"`
	Beneficiary types.Address   `json:"beneficiary,omitempty"`
	Amount      *big.Int        `json:"amount"`
	Currency    types.Currency  `json:"currency"`
	Memo        string          `json:"memo,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListOpts filters journal queries.
type ListOpts struct {
	Kind  PaymentKind
	Since time.Time
	Limit int
}

// Store is the unified storage interface for all treasury records.
type Store interface {
	// Balance methods. Balances are keyed by (terminal, project) and held
	// in the terminal's currency.
	BalanceOf(ctx context.Context, terminal types.Address, project types.ProjectID) (*big.Int, error)
	// AddBalance applies a signed delta to a balance. It fails without
	// applying anything if the balance would go negative.
	AddBalance(ctx context.Context, terminal types.Address, project types.ProjectID, amount *big.Int) error
	// SubtractBalance debits a balance. It fails without applying anything
	// if the balance would go negative.
	SubtractBalance(ctx context.Context, terminal types.Address, project types.ProjectID, amount *big.Int) error
	// TakeBalance reads a balance and zeroes it in one step, for migrations.
	TakeBalance(ctx context.Context, terminal types.Address, project types.ProjectID) (*big.Int, error)

	// Distribution counter methods, keyed by funding cycle number so the
	// tally resets on every rollover.
	UsedDistributionOf(ctx context.Context, terminal types.Address, project types.ProjectID, number uint64) (*big.Int, error)
	// RecordDistribution increments the cycle's used-distribution counter
	// by used and debits the balance by debit, atomically. The two differ
	// when the distribution limit is denominated in another currency.
	RecordDistribution(ctx context.Context, terminal types.Address, project types.ProjectID, number uint64, used, debit *big.Int) error

	// Allowance counter methods, keyed by funding cycle configuration so
	// the tally survives rollovers and resets only on reconfiguration.
	UsedAllowanceOf(ctx context.Context, terminal types.Address, project types.ProjectID, configuration uint64) (*big.Int, error)
	RecordAllowanceUse(ctx context.Context, terminal types.Address, project types.ProjectID, configuration uint64, used, debit *big.Int) error

	// Held fee methods. The queue is ordered oldest first.
	HeldFeesOf(ctx context.Context, terminal types.Address, project types.ProjectID) ([]fees.HeldFee, error)
	PushHeldFee(ctx context.Context, terminal types.Address, project types.ProjectID, fee fees.HeldFee) error
	// RecordHeldFeeRefund replaces the project's held fee queue with
	// remaining and credits the balance by credit, atomically.
	RecordHeldFeeRefund(ctx context.Context, terminal types.Address, project types.ProjectID, credit *big.Int, remaining []fees.HeldFee) error
	// SettleHeldFee removes one held fee entry and, when credit is
	// non-nil, credits creditProject's balance on the same terminal in the
	// same step. The engine passes a nil credit when the fee is routed to
	// a different terminal.
	SettleHeldFee(ctx context.Context, terminal types.Address, project types.ProjectID, feeID id.HeldFeeID, creditProject types.ProjectID, credit *big.Int) error

	// Feeless address set.
	SetFeeless(ctx context.Context, addr types.Address, feeless bool) error
	IsFeeless(ctx context.Context, addr types.Address) (bool, error)
	ListFeeless(ctx context.Context) ([]types.Address, error)

	// Payment journal.
	AppendPayment(ctx context.Context, rec *PaymentRecord) error
	ListPayments(ctx context.Context, terminal types.Address, project types.ProjectID, opts ListOpts) ([]*PaymentRecord, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
