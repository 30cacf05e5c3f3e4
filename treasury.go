package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/fundingcycle"
	"github.com/fundpipe/treasury/id"
	"github.com/fundpipe/treasury/plugin"
	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// DefaultProtocolProjectID is the project that receives protocol fees.
const DefaultProtocolProjectID types.ProjectID = 1

// DefaultFeeRate is the protocol fee rate in parts per billion of
// fees.MaxFee (2.5%).
const DefaultFeeRate uint64 = 25_000_000

// TerminalConfig identifies the terminal this engine keeps accounts for.
// Every balance the engine tracks is denominated in Currency; amounts in any
// other currency pass through the price oracle first.
type TerminalConfig struct {
	// Address is this terminal's own address, used for controller lookups,
	// directory matching and fee exemption checks.
	Address types.Address

	// Token is the asset the terminal manages. Zero value means the chain's
	// native token.
	Token types.Token

	// Currency is the terminal's accounting currency.
	Currency types.Currency

	// Decimals is the fixed-point precision of the terminal's amounts.
	Decimals uint32

	// BaseWeightCurrency is the currency funding cycle weights are quoted
	// in. Defaults to Currency when empty.
	BaseWeightCurrency types.Currency
}

// Treasury is the terminal accounting engine. It tracks per-project
// balances, enforces distribution limits and overflow allowances, prices
// redemptions against overflow and runs the protocol fee lifecycle.
type Treasury struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	cfg TerminalConfig

	cycles     FundingCycleProvider
	controller Controller
	oracle     PriceOracle
	feeGauge   FeeGauge
	splits     SplitsStore
	directory  Directory
	projects   ProjectRegistry
	allocators AllocatorResolver

	protocolProjectID types.ProjectID
	feeRate           uint64

	// Per-project operation guards. Every mutating operation holds its
	// project's guard for the whole call, so compound read-modify-write
	// sequences never interleave for one project.
	mu    sync.Mutex
	locks map[types.ProjectID]*sync.Mutex
}

// New creates a new Treasury instance for one terminal.
func New(s store.Store, cfg TerminalConfig, opts ...Option) *Treasury {
	if cfg.BaseWeightCurrency == "" {
		cfg.BaseWeightCurrency = cfg.Currency
	}

	t := &Treasury{
		store:             s,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		cfg:               cfg,
		protocolProjectID: DefaultProtocolProjectID,
		feeRate:           DefaultFeeRate,
		locks:             make(map[types.ProjectID]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Option configures a Treasury instance.
type Option func(*Treasury)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Treasury) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Treasury) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithProtocolProjectID sets the project that collects protocol fees.
func WithProtocolProjectID(projectID types.ProjectID) Option {
	return func(t *Treasury) {
		t.protocolProjectID = projectID
	}
}

// WithFeeRate sets the protocol fee rate in parts per billion of
// fees.MaxFee. A zero rate disables fees entirely.
func WithFeeRate(rate uint64) Option {
	return func(t *Treasury) {
		t.feeRate = rate
	}
}

// WithFundingCycles sets the funding cycle provider.
func WithFundingCycles(p FundingCycleProvider) Option {
	return func(t *Treasury) {
		t.cycles = p
	}
}

// WithController sets the controller collaborator.
func WithController(c Controller) Option {
	return func(t *Treasury) {
		t.controller = c
	}
}

// WithPriceOracle sets the price oracle.
func WithPriceOracle(o PriceOracle) Option {
	return func(t *Treasury) {
		t.oracle = o
	}
}

// WithFeeGauge sets the fee discount gauge.
func WithFeeGauge(g FeeGauge) Option {
	return func(t *Treasury) {
		t.feeGauge = g
	}
}

// WithSplits sets the splits store.
func WithSplits(s SplitsStore) Option {
	return func(t *Treasury) {
		t.splits = s
	}
}

// WithDirectory sets the terminal directory.
func WithDirectory(d Directory) Option {
	return func(t *Treasury) {
		t.directory = d
	}
}

// WithProjects sets the project ownership registry.
func WithProjects(r ProjectRegistry) Option {
	return func(t *Treasury) {
		t.projects = r
	}
}

// WithAllocators sets the allocator resolver.
func WithAllocators(r AllocatorResolver) Option {
	return func(t *Treasury) {
		t.allocators = r
	}
}

// Start migrates the store and initializes plugins.
func (t *Treasury) Start(ctx context.Context) error {
	if t.cycles == nil {
		return fmt.Errorf("%w: funding cycle provider", ErrNotConfigured)
	}
	if t.controller == nil {
		return fmt.Errorf("%w: controller", ErrNotConfigured)
	}
	if t.projects == nil {
		return fmt.Errorf("%w: project registry", ErrNotConfigured)
	}

	if err := t.store.Migrate(ctx); err != nil {
		return err
	}

	t.plugins.EmitInit(ctx, t)

	t.logger.Info("treasury started",
		"terminal", t.cfg.Address,
		"token", t.cfg.Token,
		"currency", t.cfg.Currency,
		"fee_rate", t.feeRate,
		"protocol_project", t.protocolProjectID,
	)

	return nil
}

// Stop shuts down the Treasury.
func (t *Treasury) Stop() error {
	ctx := context.Background()
	t.plugins.EmitShutdown(ctx)

	return t.store.Close()
}

// Config returns the terminal configuration.
func (t *Treasury) Config() TerminalConfig {
	return t.cfg
}

// Plugins returns the plugin registry.
func (t *Treasury) Plugins() *plugin.Registry {
	return t.plugins
}

// ──────────────────────────────────────────────────
// Balance queries
// ──────────────────────────────────────────────────

// BalanceOf returns a project's current balance on this terminal.
func (t *Treasury) BalanceOf(ctx context.Context, projectID types.ProjectID) (types.Amount, error) {
	b, err := t.store.BalanceOf(ctx, t.cfg.Address, projectID)
	if err != nil {
		return types.Amount{}, err
	}
	return types.NewAmountFromBig(b, t.cfg.Currency), nil
}

// UsedDistributionOf returns the amount a project has distributed during the
// given funding cycle number, in the distribution limit's currency.
func (t *Treasury) UsedDistributionOf(ctx context.Context, projectID types.ProjectID, number uint64) (*big.Int, error) {
	return t.store.UsedDistributionOf(ctx, t.cfg.Address, projectID, number)
}

// UsedAllowanceOf returns the amount a project has drawn from its overflow
// allowance under the given configuration, in the allowance's currency.
func (t *Treasury) UsedAllowanceOf(ctx context.Context, projectID types.ProjectID, configuration uint64) (*big.Int, error) {
	return t.store.UsedAllowanceOf(ctx, t.cfg.Address, projectID, configuration)
}

// HeldFeesOf returns a project's held fee queue, oldest first.
func (t *Treasury) HeldFeesOf(ctx context.Context, projectID types.ProjectID) ([]fees.HeldFee, error) {
	return t.store.HeldFeesOf(ctx, t.cfg.Address, projectID)
}

// Payments returns journal entries for a project.
func (t *Treasury) Payments(ctx context.Context, projectID types.ProjectID, opts store.ListOpts) ([]*store.PaymentRecord, error) {
	return t.store.ListPayments(ctx, t.cfg.Address, projectID, opts)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

var fixedPointOne = new(big.Int).Exp(big.NewInt(10), big.NewInt(types.FixedPointDecimals), nil)

// lockProject acquires the project's operation guard and returns its release.
func (t *Treasury) lockProject(projectID types.ProjectID) func() {
	t.mu.Lock()
	l, ok := t.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[projectID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// currentCycle resolves the project's active funding cycle or fails with
// ErrInvalidFundingCycle when none is configured.
func (t *Treasury) currentCycle(ctx context.Context, projectID types.ProjectID) (fundingcycle.Cycle, error) {
	cycle, err := t.cycles.CurrentOf(ctx, projectID)
	if err != nil {
		return fundingcycle.Cycle{}, fmt.Errorf("current funding cycle of project %d: %w", projectID, err)
	}
	if cycle.IsZero() {
		return fundingcycle.Cycle{}, ErrInvalidFundingCycle
	}
	return cycle, nil
}

// convert translates an amount between currencies through the price oracle,
// floor rounded at fixed-point fidelity. Same-currency conversions are free
// and never touch the oracle.
func (t *Treasury) convert(ctx context.Context, amount *big.Int, from, to types.Currency) (*big.Int, error) {
	if from == to {
		return new(big.Int).Set(amount), nil
	}
	if t.oracle == nil {
		return nil, fmt.Errorf("%w: price oracle", ErrNotConfigured)
	}

	rate, err := t.oracle.PriceFor(ctx, from, to, types.FixedPointDecimals)
	if err != nil {
		return nil, fmt.Errorf("price %s/%s: %w", from, to, err)
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive price %s/%s", ErrInvalidInput, from, to)
	}

	return types.MulDiv(amount, rate, fixedPointOne), nil
}

// safeDiscountFor reads the fee gauge. A gauge fault or an out-of-range
// answer degrades to zero discount so the gauge can never block a payout or
// inflate the discount.
func (t *Treasury) safeDiscountFor(ctx context.Context, projectID types.ProjectID) uint64 {
	if t.feeGauge == nil {
		return 0
	}

	discount, err := t.feeGauge.CurrentDiscountFor(ctx, projectID)
	if err != nil {
		t.logger.Warn("fee gauge fault, using zero discount",
			"project_id", projectID,
			"error", err,
		)
		return 0
	}
	if discount > fees.MaxFeeDiscount {
		t.logger.Warn("fee gauge discount out of range, using zero discount",
			"project_id", projectID,
			"discount", discount,
		)
		return 0
	}

	return discount
}

// isFeeless reports whether an address is on the feeless allow-list. Lookup
// faults count as not feeless.
func (t *Treasury) isFeeless(ctx context.Context, addr types.Address) bool {
	if addr == "" {
		return false
	}
	feeless, err := t.store.IsFeeless(ctx, addr)
	if err != nil {
		t.logger.Warn("feeless lookup failed", "address", addr, "error", err)
		return false
	}
	return feeless
}

// journal appends a payment record. The journal is supplemental to the
// balance rows; a failed append is logged, never propagated.
func (t *Treasury) journal(ctx context.Context, projectID types.ProjectID, kind store.PaymentKind, payer, beneficiary types.Address, amount *big.Int, memo string) {
	rec := &store.PaymentRecord{
		ID:          id.NewPaymentID(),
		Terminal:    t.cfg.Address,
		ProjectID:   projectID,
		Kind:        kind,
		Payer:       payer,
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(amount),
		Currency:    t.cfg.Currency,
		Memo:        memo,
		CreatedAt:   time.Now(),
	}
	if err := t.store.AppendPayment(ctx, rec); err != nil {
		t.logger.Warn("journal append failed",
			"project_id", projectID,
			"kind", kind,
			"error", err,
		)
	}
}
