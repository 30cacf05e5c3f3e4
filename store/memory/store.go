// Package memory provides an in-memory store, used in tests and for
// single-process embedding where persistence is the host's problem.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/fundpipe/treasury"
	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/id"
	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Balance storage, keyed by terminal:project
	balances map[string]*big.Int

	// Used distribution counters, keyed by terminal:project:number
	usedDistributions map[string]*big.Int

	// Used allowance counters, keyed by terminal:project:configuration
	usedAllowances map[string]*big.Int

	// Held fee queues, oldest first, keyed by terminal:project
	heldFees map[string][]fees.HeldFee

	// Feeless address set
	feeless map[types.Address]bool

	// Payment journal, append order
	payments []store.PaymentRecord
}

func New() *Store {
	return &Store{
		balances:          make(map[string]*big.Int),
		usedDistributions: make(map[string]*big.Int),
		usedAllowances:    make(map[string]*big.Int),
		heldFees:          make(map[string][]fees.HeldFee),
		feeless:           make(map[types.Address]bool),
		payments:          make([]store.PaymentRecord, 0),
	}
}

func balanceKey(terminal types.Address, project types.ProjectID) string {
	return fmt.Sprintf("%s:%d", terminal, project)
}

func counterKey(terminal types.Address, project types.ProjectID, n uint64) string {
	return fmt.Sprintf("%s:%d:%d", terminal, project, n)
}

// Balance methods

func (s *Store) BalanceOf(_ context.Context, terminal types.Address, project types.ProjectID) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[balanceKey(terminal, project)]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (s *Store) AddBalance(_ context.Context, terminal types.Address, project types.ProjectID, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addLocked(balanceKey(terminal, project), amount)
}

func (s *Store) SubtractBalance(_ context.Context, terminal types.Address, project types.ProjectID, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.subtractLocked(balanceKey(terminal, project), amount)
}

func (s *Store) TakeBalance(_ context.Context, terminal types.Address, project types.ProjectID) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey(terminal, project)
	b, ok := s.balances[key]
	if !ok {
		return new(big.Int), nil
	}
	delete(s.balances, key)
	return b, nil
}

// Distribution counter methods

func (s *Store) UsedDistributionOf(_ context.Context, terminal types.Address, project types.ProjectID, number uint64) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.usedDistributions[counterKey(terminal, project, number)]; ok {
		return new(big.Int).Set(u), nil
	}
	return new(big.Int), nil
}

func (s *Store) RecordDistribution(_ context.Context, terminal types.Address, project types.ProjectID, number uint64, used, debit *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.subtractLocked(balanceKey(terminal, project), debit); err != nil {
		return err
	}
	s.addCounterLocked(s.usedDistributions, counterKey(terminal, project, number), used)
	return nil
}

// Allowance counter methods

func (s *Store) UsedAllowanceOf(_ context.Context, terminal types.Address, project types.ProjectID, configuration uint64) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.usedAllowances[counterKey(terminal, project, configuration)]; ok {
		return new(big.Int).Set(u), nil
	}
	return new(big.Int), nil
}

func (s *Store) RecordAllowanceUse(_ context.Context, terminal types.Address, project types.ProjectID, configuration uint64, used, debit *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.subtractLocked(balanceKey(terminal, project), debit); err != nil {
		return err
	}
	s.addCounterLocked(s.usedAllowances, counterKey(terminal, project, configuration), used)
	return nil
}

// Held fee methods

func (s *Store) HeldFeesOf(_ context.Context, terminal types.Address, project types.ProjectID) ([]fees.HeldFee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queue := s.heldFees[balanceKey(terminal, project)]
	out := make([]fees.HeldFee, len(queue))
	for i, f := range queue {
		out[i] = f
		out[i].Amount = new(big.Int).Set(f.Amount)
	}
	return out, nil
}

func (s *Store) PushHeldFee(_ context.Context, terminal types.Address, project types.ProjectID, fee fees.HeldFee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey(terminal, project)
	fee.Amount = new(big.Int).Set(fee.Amount)
	s.heldFees[key] = append(s.heldFees[key], fee)
	return nil
}

func (s *Store) RecordHeldFeeRefund(_ context.Context, terminal types.Address, project types.ProjectID, credit *big.Int, remaining []fees.HeldFee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey(terminal, project)
	if err := s.addLocked(key, credit); err != nil {
		return err
	}

	queue := make([]fees.HeldFee, len(remaining))
	for i, f := range remaining {
		queue[i] = f
		queue[i].Amount = new(big.Int).Set(f.Amount)
	}
	s.heldFees[key] = queue
	return nil
}

func (s *Store) SettleHeldFee(_ context.Context, terminal types.Address, project types.ProjectID, feeID id.HeldFeeID, creditProject types.ProjectID, credit *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey(terminal, project)
	queue := s.heldFees[key]
	for i, f := range queue {
		if f.ID.String() == feeID.String() {
			if credit != nil {
				if err := s.addLocked(balanceKey(terminal, creditProject), credit); err != nil {
					return err
				}
			}
			s.heldFees[key] = append(queue[:i:i], queue[i+1:]...)
			return nil
		}
	}
	return treasury.ErrHeldFeeNotFound
}

// Feeless address set

func (s *Store) SetFeeless(_ context.Context, addr types.Address, feeless bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if feeless {
		s.feeless[addr] = true
	} else {
		delete(s.feeless, addr)
	}
	return nil
}

func (s *Store) IsFeeless(_ context.Context, addr types.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.feeless[addr], nil
}

func (s *Store) ListFeeless(_ context.Context) ([]types.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.Address, 0, len(s.feeless))
	for addr := range s.feeless {
		result = append(result, addr)
	}
	return result, nil
}

// Payment journal

func (s *Store) AppendPayment(_ context.Context, rec *store.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rec
	copied.Amount = new(big.Int).Set(rec.Amount)
	s.payments = append(s.payments, copied)
	return nil
}

func (s *Store) ListPayments(_ context.Context, terminal types.Address, project types.ProjectID, opts store.ListOpts) ([]*store.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.PaymentRecord, 0)
	for i := range s.payments {
		rec := s.payments[i]
		if rec.Terminal != terminal || rec.ProjectID != project {
			continue
		}
		if opts.Kind != "" && rec.Kind != opts.Kind {
			continue
		}
		if !opts.Since.IsZero() && rec.CreatedAt.Before(opts.Since) {
			continue
		}
		rec.Amount = new(big.Int).Set(rec.Amount)
		result = append(result, &rec)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result, nil
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions. Callers hold s.mu.

func (s *Store) addLocked(key string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	b, ok := s.balances[key]
	if !ok {
		b = new(big.Int)
	}
	next := new(big.Int).Add(b, amount)
	if next.Sign() < 0 {
		return treasury.ErrInadequateBalance
	}
	s.balances[key] = next
	return nil
}

func (s *Store) subtractLocked(key string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	b, ok := s.balances[key]
	if !ok || b.Cmp(amount) < 0 {
		return treasury.ErrInadequateBalance
	}
	b.Sub(b, amount)
	return nil
}

func (s *Store) addCounterLocked(counters map[string]*big.Int, key string, amount *big.Int) {
	c, ok := counters[key]
	if !ok {
		c = new(big.Int)
		counters[key] = c
	}
	c.Add(c, amount)
}
