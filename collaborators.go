package treasury

import (
	"context"
	"math/big"

	"github.com/fundpipe/treasury/fundingcycle"
	"github.com/fundpipe/treasury/splits"
	"github.com/fundpipe/treasury/types"
)

// Collaborator interfaces. The engine consumes these, never owns them:
// ownership, permissioning, cycle scheduling, split configuration, pricing
// and governance all live in host code. Every call is fallible and
// untrusted; apart from the fee gauge (which degrades to zero discount)
// collaborator errors propagate to the caller unchanged.

// FundingCycleProvider resolves the funding cycle a project is currently in.
type FundingCycleProvider interface {
	// CurrentOf returns the project's active cycle snapshot. A zero Cycle
	// means the project has no usable cycle configured.
	CurrentOf(ctx context.Context, projectID types.ProjectID) (fundingcycle.Cycle, error)

	// BallotStateOf reports the ballot state of the given configuration.
	// While a ballot is active, redemptions use the ballot redemption rate.
	BallotStateOf(ctx context.Context, projectID types.ProjectID, configuration uint64) (fundingcycle.BallotState, error)
}

// Controller owns the spending ceilings and the token supply figures the
// engine enforces against.
type Controller interface {
	// DistributionLimitOf returns the per-cycle payout ceiling and its
	// currency for a project on this terminal. A zero limit means the
	// project may not distribute at all.
	DistributionLimitOf(ctx context.Context, projectID types.ProjectID, configuration uint64, terminal types.Address, token types.Token) (*big.Int, types.Currency, error)

	// OverflowAllowanceOf returns the per-configuration overflow allowance
	// and its currency for a project on this terminal.
	OverflowAllowanceOf(ctx context.Context, projectID types.ProjectID, configuration uint64, terminal types.Address, token types.Token) (*big.Int, types.Currency, error)

	// TotalOutstandingTokensOf returns the project's token supply including
	// the unminted reserved portion implied by reservedRate.
	TotalOutstandingTokensOf(ctx context.Context, projectID types.ProjectID, reservedRate uint64) (*big.Int, error)

	// TokenBalanceOf returns a holder's recorded token balance for a project.
	TokenBalanceOf(ctx context.Context, holder types.Address, projectID types.ProjectID) (*big.Int, error)
}

// PriceOracle converts between accounting currencies.
type PriceOracle interface {
	// PriceFor returns the price of one unit of base in quote as a
	// fixed-point integer scaled by 10^decimals.
	PriceFor(ctx context.Context, base, quote types.Currency, decimals uint32) (*big.Int, error)
}

// FeeGauge reports the protocol fee discount a project has earned. The gauge
// is untrusted: a fault or an out-of-range answer degrades to zero discount
// rather than blocking a payout.
type FeeGauge interface {
	CurrentDiscountFor(ctx context.Context, projectID types.ProjectID) (uint64, error)
}

// SplitsStore resolves the split group configured for a distribution.
type SplitsStore interface {
	SplitsOf(ctx context.Context, projectID types.ProjectID, domain, group uint64) ([]splits.Split, error)
}

// Directory maps projects to the terminals holding their funds.
type Directory interface {
	// TerminalsOf lists every terminal a project is registered with.
	TerminalsOf(ctx context.Context, projectID types.ProjectID) ([]PayoutTerminal, error)

	// PrimaryTerminalOf returns the project's primary terminal for a token,
	// or nil when the project has none for it.
	PrimaryTerminalOf(ctx context.Context, projectID types.ProjectID, token types.Token) (PayoutTerminal, error)

	// IsTerminalOf reports whether the address is a registered terminal of
	// the project.
	IsTerminalOf(ctx context.Context, projectID types.ProjectID, terminal types.Address) (bool, error)

	// ControllerOf returns the address of the project's controller.
	ControllerOf(ctx context.Context, projectID types.ProjectID) (types.Address, error)
}

// ProjectRegistry resolves project ownership.
type ProjectRegistry interface {
	OwnerOf(ctx context.Context, projectID types.ProjectID) (types.Address, error)
}

// Allocation is the context handed to a split's allocator.
type Allocation struct {
	Token     types.Token
	Amount    types.Amount
	Decimals  uint32
	ProjectID types.ProjectID
	Domain    uint64
	Group     uint64
	Split     splits.Split
}

// Allocator receives a split's payout and forwards it however the project
// configured it to.
type Allocator interface {
	Allocate(ctx context.Context, allocation Allocation) error
}

// AllocatorResolver resolves a split's allocator address to its callable
// capability. Hosts that never configure allocators can omit it; a split
// naming an allocator then fails the distribution.
type AllocatorResolver interface {
	AllocatorAt(ctx context.Context, addr types.Address) (Allocator, error)
}

// PayoutTerminal is the peer-terminal capability used for cross-project
// payout routing and fee settlement. The local engine exposes itself as one
// via Terminal().
type PayoutTerminal interface {
	AddressOf() types.Address
	TokenOf() types.Token
	CurrencyOf() types.Currency
	DecimalsOf() uint32

	// Pay records an incoming payment for a project held by this terminal.
	Pay(ctx context.Context, projectID types.ProjectID, amount types.Amount, payer, beneficiary types.Address, memo string, metadata []byte) error

	// AddToBalance credits a project's balance outside the payment flow,
	// refunding held fees.
	AddToBalance(ctx context.Context, projectID types.ProjectID, amount types.Amount, memo string) error

	// CurrentOverflowOf returns the project's overflow held by this
	// terminal, in the terminal's own currency.
	CurrentOverflowOf(ctx context.Context, projectID types.ProjectID) (types.Amount, error)
}
