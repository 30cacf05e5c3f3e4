// Package mongo implements the treasury store on MongoDB via Grove ORM.
//
// The engine serializes mutations per project, so each method here applies a
// straightforward read-modify-write. Balance debits stay guarded: a debit
// that would go negative fails without writing, and composite methods debit
// before writing their counter so a fault between statements can only leave
// the balance conservatively low, never over-distributed.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/fundpipe/treasury"
	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/id"
	treasurystore "github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// Collection name constants.
const (
	colBalances          = "treasury_balances"
	colUsedDistributions = "treasury_used_distributions"
	colUsedAllowances    = "treasury_used_allowances"
	colHeldFees          = "treasury_held_fees"
	colFeeless           = "treasury_feeless_addresses"
	colPayments          = "treasury_payments"
)

// compile-time interface check
var _ treasurystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all treasury collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("treasury/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": balanceKey(terminal, project)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("treasury/mongo: balance of: %w", err)
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
	_, err = s.mdb.NewDelete((*balanceModel)(nil)).
		Filter(bson.M{"_id": balanceKey(terminal, project)}).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("treasury/mongo: take balance: %w", err)
	}
	return balance, nil
}

// ==================== Distribution counters ====================

func (s *Store) UsedDistributionOf(ctx context.Context, terminal types.Address, project types.ProjectID, number uint64) (*big.Int, error) {
	var m usedDistributionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": counterKey(terminal, project, number)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("treasury/mongo: used distribution of: %w", err)
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

	key := counterKey(terminal, project, number)
	_, err = s.mdb.NewUpdate((*usedDistributionModel)(nil)).
		Filter(bson.M{"_id": key}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":          key,
			"terminal":     string(terminal),
			"project_id":   int64(project),
			"cycle_number": int64(number),
			"used":         next.String(),
			"updated_at":   now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: record distribution: %w", err)
	}
	return nil
}

// ==================== Allowance counters ====================

func (s *Store) UsedAllowanceOf(ctx context.Context, terminal types.Address, project types.ProjectID, configuration uint64) (*big.Int, error) {
	var m usedAllowanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": counterKey(terminal, project, configuration)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("treasury/mongo: used allowance of: %w", err)
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

	key := counterKey(terminal, project, configuration)
	_, err = s.mdb.NewUpdate((*usedAllowanceModel)(nil)).
		Filter(bson.M{"_id": key}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":           key,
			"terminal":      string(terminal),
			"project_id":    int64(project),
			"configuration": int64(configuration),
			"used":          next.String(),
			"updated_at":    now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: record allowance use: %w", err)
	}
	return nil
}

// ==================== Held fees ====================

func (s *Store) HeldFeesOf(ctx context.Context, terminal types.Address, project types.ProjectID) ([]fees.HeldFee, error) {
	var models []heldFeeModel
	// Held fee IDs are K-sortable, so _id order is creation order.
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"terminal": string(terminal), "project_id": int64(project)}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("treasury/mongo: held fees of: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: push held fee: %w", err)
	}
	return nil
}

func (s *Store) RecordHeldFeeRefund(ctx context.Context, terminal types.Address, project types.ProjectID, credit *big.Int, remaining []fees.HeldFee) error {
	if err := s.adjustBalance(ctx, terminal, project, credit); err != nil {
		return err
	}

	_, err := s.mdb.NewDelete((*heldFeeModel)(nil)).
		Filter(bson.M{"terminal": string(terminal), "project_id": int64(project)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: clear held fees: %w", err)
	}

	for i := range remaining {
		if err := s.PushHeldFee(ctx, terminal, project, remaining[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SettleHeldFee(ctx context.Context, terminal types.Address, project types.ProjectID, feeID id.HeldFeeID, creditProject types.ProjectID, credit *big.Int) error {
	res, err := s.mdb.NewDelete((*heldFeeModel)(nil)).
		Filter(bson.M{
			"_id":        feeID.String(),
			"terminal":   string(terminal),
			"project_id": int64(project),
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: settle held fee: %w", err)
	}
	if res.DeletedCount() == 0 {
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
		_, err := s.mdb.NewDelete((*feelessModel)(nil)).
			Filter(bson.M{"_id": string(addr)}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("treasury/mongo: unset feeless: %w", err)
		}
		return nil
	}

	_, err := s.mdb.NewUpdate((*feelessModel)(nil)).
		Filter(bson.M{"_id": string(addr)}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":        string(addr),
			"created_at": now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: set feeless: %w", err)
	}
	return nil
}

func (s *Store) IsFeeless(ctx context.Context, addr types.Address) (bool, error) {
	var m feelessModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": string(addr)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return false, nil
		}
		return false, fmt.Errorf("treasury/mongo: is feeless: %w", err)
	}
	return true, nil
}

func (s *Store) ListFeeless(ctx context.Context) ([]types.Address, error) {
	var models []feelessModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("treasury/mongo: list feeless: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: append payment: %w", err)
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, terminal types.Address, project types.ProjectID, opts treasurystore.ListOpts) ([]*treasurystore.PaymentRecord, error) {
	var models []paymentModel

	filter := bson.M{"terminal": string(terminal), "project_id": int64(project)}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if !opts.Since.IsZero() {
		filter["created_at"] = bson.M{"$gte": opts.Since}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("treasury/mongo: list payments: %w", err)
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

// adjustBalance applies a signed delta to a balance document, creating it on
// first use. A delta that would take the balance negative fails without
// writing.
func (s *Store) adjustBalance(ctx context.Context, terminal types.Address, project types.ProjectID, delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return nil
	}

	key := balanceKey(terminal, project)
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": key}).
		Scan(ctx)
	if err != nil && !isNoDocuments(err) {
		return fmt.Errorf("treasury/mongo: read balance: %w", err)
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
	update := bson.M{"$set": bson.M{
		"_id":        key,
		"terminal":   string(terminal),
		"project_id": int64(project),
		"balance":    next.String(),
		"updated_at": t,
	}}
	if !exists {
		update["$setOnInsert"] = bson.M{"created_at": t}
	}

	_, err = s.mdb.NewUpdate((*balanceModel)(nil)).
		Filter(bson.M{"_id": key}).
		SetUpdate(update).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("treasury/mongo: write balance: %w", err)
	}
	return nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks for the mongo no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all treasury collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colBalances: {
			{Keys: bson.D{{Key: "terminal", Value: 1}, {Key: "project_id", Value: 1}}},
		},
		colUsedDistributions: {
			{Keys: bson.D{{Key: "terminal", Value: 1}, {Key: "project_id", Value: 1}, {Key: "cycle_number", Value: 1}}},
		},
		colUsedAllowances: {
			{Keys: bson.D{{Key: "terminal", Value: 1}, {Key: "project_id", Value: 1}, {Key: "configuration", Value: 1}}},
		},
		colHeldFees: {
			{Keys: bson.D{{Key: "terminal", Value: 1}, {Key: "project_id", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colFeeless: {},
		colPayments: {
			{Keys: bson.D{{Key: "terminal", Value: 1}, {Key: "project_id", Value: 1}, {Key: "_id", Value: 1}}},
			{
				Keys:    bson.D{{Key: "terminal", Value: 1}, {Key: "project_id", Value: 1}, {Key: "kind", Value: 1}},
				Options: options.Index().SetSparse(false),
			},
		},
	}
}
