// Package sqlite implements the treasury store on SQLite via Grove ORM.
//
// The engine serializes mutations per project, so each method here applies a
// straightforward read-modify-write. Balance debits stay guarded: a debit
// that would go negative fails before anything is written, and composite
// methods debit before writing their counter so a fault between statements
// can only leave the balance conservatively low, never over-distributed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/fundpipe/treasury"
	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/id"
	treasurystore "github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// compile-time interface check
var _ treasurystore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("treasury/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("treasury/sqlite: migration failed: %w", err)
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
	err := s.sdb.NewSelect(m).
		Where("key = ?", balanceKey(terminal, project)).
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
	_, err = s.sdb.NewDelete((*balanceModel)(nil)).
		Where("key = ?", balanceKey(terminal, project)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// ==================== Distribution counters ====================

func (s *Store) UsedDistributionOf(ctx context.Context, terminal types.Address, project types.ProjectID, number uint64) (*big.Int, error) {
	m := new(usedDistributionModel)
	err := s.sdb.NewSelect(m).
		Where("key = ?", counterKey(terminal, project, number)).
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

	if current.Sign() == 0 {
		m := &usedDistributionModel{
			Key:         counterKey(terminal, project, number),
			Terminal:    string(terminal),
			ProjectID:   int64(project),
			CycleNumber: int64(number),
			Used:        next.String(),
			UpdatedAt:   now(),
		}
		_, err = s.sdb.NewInsert(m).
			OnConflict("(key) DO UPDATE").
			Set("used = EXCLUDED.used").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	}

	_, err = s.sdb.NewUpdate((*usedDistributionModel)(nil)).
		Set("used = ?", next.String()).
		Set("updated_at = ?", now()).
		Where("key = ?", counterKey(terminal, project, number)).
		Exec(ctx)
	return err
}

// ==================== Allowance counters ====================

func (s *Store) UsedAllowanceOf(ctx context.Context, terminal types.Address, project types.ProjectID, configuration uint64) (*big.Int, error) {
	m := new(usedAllowanceModel)
	err := s.sdb.NewSelect(m).
		Where("key = ?", counterKey(terminal, project, configuration)).
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

	if current.Sign() == 0 {
		m := &usedAllowanceModel{
			Key:           counterKey(terminal, project, configuration),
			Terminal:      string(terminal),
			ProjectID:     int64(project),
			Configuration: int64(configuration),
			Used:          next.String(),
			UpdatedAt:     now(),
		}
		_, err = s.sdb.NewInsert(m).
			OnConflict("(key) DO UPDATE").
			Set("used = EXCLUDED.used").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	}

	_, err = s.sdb.NewUpdate((*usedAllowanceModel)(nil)).
		Set("used = ?", next.String()).
		Set("updated_at = ?", now()).
		Where("key = ?", counterKey(terminal, project, configuration)).
		Exec(ctx)
	return err
}

// ==================== Held fees ====================

func (s *Store) HeldFeesOf(ctx context.Context, terminal types.Address, project types.ProjectID) ([]fees.HeldFee, error) {
	var models []heldFeeModel
	// Held fee IDs are K-sortable, so id order is creation order.
	err := s.sdb.NewSelect(&models).
		Where("terminal = ?", string(terminal)).
		Where("project_id = ?", int64(project)).
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) RecordHeldFeeRefund(ctx context.Context, terminal types.Address, project types.ProjectID, credit *big.Int, remaining []fees.HeldFee) error {
	if err := s.adjustBalance(ctx, terminal, project, credit); err != nil {
		return err
	}

	_, err := s.sdb.NewDelete((*heldFeeModel)(nil)).
		Where("terminal = ?", string(terminal)).
		Where("project_id = ?", int64(project)).
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
	res, err := s.sdb.NewDelete((*heldFeeModel)(nil)).
		Where("id = ?", feeID.String()).
		Where("terminal = ?", string(terminal)).
		Where("project_id = ?", int64(project)).
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
		_, err := s.sdb.NewDelete((*feelessModel)(nil)).
			Where("address = ?", string(addr)).
			Exec(ctx)
		return err
	}

	m := &feelessModel{Address: string(addr), CreatedAt: now()}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(address) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) IsFeeless(ctx context.Context, addr types.Address) (bool, error) {
	m := new(feelessModel)
	err := s.sdb.NewSelect(m).
		Where("address = ?", string(addr)).
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
	err := s.sdb.NewSelect(&models).
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListPayments(ctx context.Context, terminal types.Address, project types.ProjectID, opts treasurystore.ListOpts) ([]*treasurystore.PaymentRecord, error) {
	var models []paymentModel
	q := s.sdb.NewSelect(&models).
		Where("terminal = ?", string(terminal)).
		Where("project_id = ?", int64(project))

	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if !opts.Since.IsZero() {
		q = q.Where("created_at >= ?", opts.Since)
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
	err := s.sdb.NewSelect(m).
		Where("key = ?", key).
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

	if !exists {
		t := now()
		row := &balanceModel{
			Key:       key,
			Terminal:  string(terminal),
			ProjectID: int64(project),
			Balance:   next.String(),
			CreatedAt: t,
			UpdatedAt: t,
		}
		_, err = s.sdb.NewInsert(row).
			OnConflict("(key) DO UPDATE").
			Set("balance = EXCLUDED.balance").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	}

	_, err = s.sdb.NewUpdate((*balanceModel)(nil)).
		Set("balance = ?", next.String()).
		Set("updated_at = ?", now()).
		Where("key = ?", key).
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
