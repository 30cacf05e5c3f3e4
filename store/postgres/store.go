// Package postgres implements the treasury store on PostgreSQL via Grove ORM.
//
// The engine serializes mutations per project, so each method here applies a
// straightforward read-modify-write. Balance debits stay guarded: a debit
// that would go negative fails before anything is written, and composite
// methods debit before writing their counter so a fault between statements
// can only leave the balance conservatively low, never over-distributed.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/fundpipe/treasury"
	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/id"
	treasurystore "github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// compile-time interface check
var _ treasurystore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("treasury/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("treasury/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Balances ====================

func (s *Store) BalanceOf(ctx context.Context, terminal types.Address, project types.ProjectID) (*big.Int, error) {
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", balanceKey(terminal, project)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return new(big.Int), nil
		}
		return nil, err
	}
	return parseBig(m.Balance)
}

func (s *Store) AddBalance(ctx context.Context, terminal types.Address, project types.ProjectID, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return s.adjustBalance(ctx, terminal, project, amount)
}

func (s *Store) SubtractBalance(ctx context.Context, terminal types.Address, project types.ProjectID, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return s.adjustBalance(ctx, terminal, project, new(big.Int).Neg(amount))
}

func (s *Store) TakeBalance(ctx context.Context, terminal types.Address, project types.ProjectID) (*big.Int, error) {
	balance, err := s.BalanceOf(ctx, terminal, project)
	if err != nil {
		return nil, err
	}
	_, err = s.pg.NewDelete((*balanceModel)(nil)).
		Where("key = $1", balanceKey(terminal, project)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// ==================== Distribution counters ====================

func (s *Store) UsedDistributionOf(ctx context.Context, terminal types.Address, project types.ProjectID, number uint64) (*big.Int, error) {
	m := new(usedDistributionModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", counterKey(terminal, project, number)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return new(big.Int), nil
		}
		return nil, err
	}
	return parseBig(m.Used)
}

func (s *Store) RecordDistribution(ctx context.Context, terminal types.Address, project types.ProjectID, number uint64, used, debit *big.Int) error {
	if err := s.adjustBalance(ctx, terminal, project, new(big.Int).Neg(debit)); err != nil {
		return err
	}

	current, err := s.UsedDistributionOf(ctx, terminal, project, number)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, used)

	m := &usedDistributionModel{
		Key:         counterKey(terminal, project, number),
		Terminal:    string(terminal),
		ProjectID:   int64(project),
		CycleNumber: int64(number),
		Used:        next.String(),
		UpdatedAt:   now(),
	}
	_, err = s.pg.NewInsert(m).
		OnConflict("(key) DO UPDATE").
		Set("used = EXCLUDED.used").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Allowance counters ====================

func (s *Store) UsedAllowanceOf(ctx context.Context, terminal types.Address, project types.ProjectID, configuration uint64) (*big.Int, error) {
	m := new(usedAllowanceModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", counterKey(terminal, project, configuration)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return new(big.Int), nil
		}
		return nil, err
	}
	return parseBig(m.Used)
}

func (s *Store) RecordAllowanceUse(ctx context.Context, terminal types.Address, project types.ProjectID, configuration uint64, used, debit *big.Int) error {
	if err := s.adjustBalance(ctx, terminal, project, new(big.Int).Neg(debit)); err != nil {
		return err
	}

	current, err := s.UsedAllowanceOf(ctx, terminal, project, configuration)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, used)

	m := &usedAllowanceModel{
		Key:           counterKey(terminal, project, configuration),
		Terminal:      string(terminal),
		ProjectID:     int64(project),
		Configuration: int64(configuration),
		Used:          next.String(),
		UpdatedAt:     now(),
	}
	_, err = s.pg.NewInsert(m).
		OnConflict("(key) DO UPDATE").
		Set("used = EXCLUDED.used").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Held fees ====================

func (s *Store) HeldFeesOf(ctx context.Context, terminal types.Address, project types.ProjectID) ([]fees.HeldFee, error) {
	var models []heldFeeModel
	// Held fee IDs are K-sortable, so id order is creation order.
	err := s.pg.NewSelect(&models).
		Where("terminal = $1", string(terminal)).
		Where("project_id = $2", int64(project)).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]fees.HeldFee, len(models))
	for i := range models {
		f, err := fromHeldFeeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = f
	}
	return result, nil
}

func (s *Store) PushHeldFee(ctx context.Context, terminal types.Address, project types.ProjectID, fee fees.HeldFee) error {
	m := toHeldFeeModel(terminal, project, fee)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) RecordHeldFeeRefund(ctx context.Context, terminal types.Address, project types.ProjectID, credit *big.Int, remaining []fees.HeldFee) error {
	if err := s.adjustBalance(ctx, terminal, project, credit); err != nil {
		return err
	}

	_, err := s.pg.NewDelete((*heldFeeModel)(nil)).
		Where("terminal = $1", string(terminal)).
		Where("project_id = $2", int64(project)).
		Exec(ctx)
	if err != nil {
		return err
	}

	for i := range remaining {
		if err := s.PushHeldFee(ctx, terminal, project, remaining[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SettleHeldFee(ctx context.Context, terminal types.Address, project types.ProjectID, feeID id.HeldFeeID, creditProject types.ProjectID, credit *big.Int) error {
	res, err := s.pg.NewDelete((*heldFeeModel)(nil)).
		Where("id = $1", feeID.String()).
		Where("terminal = $2", string(terminal)).
		Where("project_id = $3", int64(project)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return treasury.ErrHeldFeeNotFound
	}

	if credit != nil {
		return s.adjustBalance(ctx, terminal, creditProject, credit)
	}
	return nil
}

// ==================== Feeless set ====================

func (s *Store) SetFeeless(ctx context.Context, addr types.Address, feeless bool) error {
	if !feeless {
		_, err := s.pg.NewDelete((*feelessModel)(nil)).
			Where("address = $1", string(addr)).
			Exec(ctx)
		return err
	}

	m := &feelessModel{Address: string(addr), CreatedAt: now()}
	_, err := s.pg.NewInsert(m).
		OnConflict("(address) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) IsFeeless(ctx context.Context, addr types.Address) (bool, error) {
	m := new(feelessModel)
	err := s.pg.NewSelect(m).
		Where("address = $1", string(addr)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) ListFeeless(ctx context.Context) ([]types.Address, error) {
	var models []feelessModel
	err := s.pg.NewSelect(&models).
		OrderExpr("address ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]types.Address, len(models))
	for i := range models {
		result[i] = types.Address(models[i].Address)
	}
	return result, nil
}

// ==================== Payment journal ====================

func (s *Store) AppendPayment(ctx context.Context, rec *treasurystore.PaymentRecord) error {
	m := toPaymentModel(rec)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListPayments(ctx context.Context, terminal types.Address, project types.ProjectID, opts treasurystore.ListOpts) ([]*treasurystore.PaymentRecord, error) {
	var models []paymentModel
	q := s.pg.NewSelect(&models).
		Where("terminal = $1", string(terminal)).
		Where("project_id = $2", int64(project))

	argIdx := 3
	if opts.Kind != "" {
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
		argIdx++
	}
	if !opts.Since.IsZero() {
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), opts.Since)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*treasurystore.PaymentRecord, len(models))
	for i := range models {
		rec, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// ==================== Helpers ====================

// adjustBalance applies a signed delta to a balance row, creating it on
// first use. A delta that would take the balance negative fails without
// writing.
func (s *Store) adjustBalance(ctx context.Context, terminal types.Address, project types.ProjectID, delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return nil
	}

	key := balanceKey(terminal, project)
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("key = $1", key).
		Scan(ctx)
	if err != nil && !isNoRows(err) {
		return err
	}

	current := new(big.Int)
	exists := err == nil
	if exists {
		current, err = parseBig(m.Balance)
		if err != nil {
			return err
		}
	}

	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return treasury.ErrInadequateBalance
	}

	t := now()
	if !exists {
		row := &balanceModel{
			Key:       key,
			Terminal:  string(terminal),
			ProjectID: int64(project),
			Balance:   next.String(),
			CreatedAt: t,
			UpdatedAt: t,
		}
		_, err = s.pg.NewInsert(row).
			OnConflict("(key) DO UPDATE").
			Set("balance = EXCLUDED.balance").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	}

	_, err = s.pg.NewUpdate((*balanceModel)(nil)).
		Set("balance = $1", next.String()).
		Set("updated_at = $2", t).
		Where("key = $3", key).
		Exec(ctx)
	return err
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
