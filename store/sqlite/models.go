package sqlite

import (
	"fmt"
	"math/big"
	"time"

	"github.com/xraph/grove"

	"github.com/fundpipe/treasury/fees"
	"github.com/fundpipe/treasury/id"
	"github.com/fundpipe/treasury/store"
	"github.com/fundpipe/treasury/types"
)

// Balances, counters and amounts are stored as decimal strings so values
// past int64 range survive the round trip.

type balanceModel struct {
	grove.BaseModel `grove:"table:treasury_balances"`

	Key       string    `grove:"key,pk"`
	Terminal  string    `grove:"terminal"`
	ProjectID int64     `grove:"project_id"`
	Balance   string    `grove:"balance"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

type usedDistributionModel struct {
	grove.BaseModel `grove:"table:treasury_used_distributions"`

	Key         string    `grove:"key,pk"`
	Terminal    string    `grove:"terminal"`
	ProjectID   int64     `grove:"project_id"`
	CycleNumber int64     `grove:"cycle_number"`
	Used        string    `grove:"used"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

type usedAllowanceModel struct {
	grove.BaseModel `grove:"table:treasury_used_allowances"`

	Key           string    `grove:"key,pk"`
	Terminal      string    `grove:"terminal"`
	ProjectID     int64     `grove:"project_id"`
	Configuration int64     `grove:"configuration"`
	Used          string    `grove:"used"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

type heldFeeModel struct {
	grove.BaseModel `grove:"table:treasury_held_fees"`

	ID          string    `grove:"id,pk"`
	Terminal    string    `grove:"terminal"`
	ProjectID   int64     `grove:"project_id"`
	Amount      string    `grove:"amount"`
	FeeRate     int64     `grove:"fee_rate"`
	Discount    int64     `grove:"discount"`
	Beneficiary string    `grove:"beneficiary"`
	CreatedAt   time.Time `grove:"created_at"`
}

type feelessModel struct {
	grove.BaseModel `grove:"table:treasury_feeless_addresses"`

	Address   string    `grove:"address,pk"`
	CreatedAt time.Time `grove:"created_at"`
}

type paymentModel struct {
	grove.BaseModel `grove:"table:treasury_payments"`

	ID          string    `grove:"id,pk"`
	Terminal    string    `grove:"terminal"`
	ProjectID   int64     `grove:"project_id"`
	Kind        string    `grove:"kind"`
	Payer       string    `grove:"payer"`
	Beneficiary string    `grove:"beneficiary"`
	Amount      string    `grove:"amount"`
	Currency    string    `grove:"currency"`
	Memo        string    `grove:"memo"`
	CreatedAt   time.Time `grove:"created_at"`
}

func balanceKey(terminal types.Address, project types.ProjectID) string {
	return fmt.Sprintf("%s:%d", terminal, project)
}

func counterKey(terminal types.Address, project types.ProjectID, n uint64) string {
	return fmt.Sprintf("%s:%d:%d", terminal, project, n)
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("treasury/sqlite: invalid stored amount %q", s)
	}
	return v, nil
}

func toHeldFeeModel(terminal types.Address, project types.ProjectID, f fees.HeldFee) *heldFeeModel {
	return &heldFeeModel{
		ID:          f.ID.String(),
		Terminal:    string(terminal),
		ProjectID:   int64(project),
		Amount:      f.Amount.String(),
		FeeRate:     int64(f.FeeRate),
		Discount:    int64(f.Discount),
		Beneficiary: string(f.Beneficiary),
		CreatedAt:   f.CreatedAt,
	}
}

func fromHeldFeeModel(m *heldFeeModel) (fees.HeldFee, error) {
	feeID, err := id.ParseHeldFeeID(m.ID)
	if err != nil {
		return fees.HeldFee{}, err
	}
	amount, err := parseBig(m.Amount)
	if err != nil {
		return fees.HeldFee{}, err
	}
	return fees.HeldFee{
		ID:          feeID,
		ProjectID:   types.ProjectID(m.ProjectID),
		Amount:      amount,
		FeeRate:     uint64(m.FeeRate),
		Discount:    uint64(m.Discount),
		Beneficiary: types.Address(m.Beneficiary),
		CreatedAt:   m.CreatedAt,
	}, nil
}

func toPaymentModel(rec *store.PaymentRecord) *paymentModel {
	return &paymentModel{
		ID:          rec.ID.String(),
		Terminal:    string(rec.Terminal),
		ProjectID:   int64(rec.ProjectID),
		Kind:        string(rec.Kind),
		Payer:       string(rec.Payer),
		Beneficiary: string(rec.Beneficiary),
		Amount:      rec.Amount.String(),
		Currency:    string(rec.Currency),
		Memo:        rec.Memo,
		CreatedAt:   rec.CreatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*store.PaymentRecord, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := parseBig(m.Amount)
	if err != nil {
		return nil, err
	}
	return &store.PaymentRecord{
		ID:          payID,
		Terminal:    types.Address(m.Terminal),
		ProjectID:   types.ProjectID(m.ProjectID),
		Kind:        store.PaymentKind(m.Kind),
		Payer:       types.Address(m.Payer),
		Beneficiary: types.Address(m.Beneficiary),
		Amount:      amount,
		Currency:    types.Currency(m.Currency),
		Memo:        m.Memo,
		CreatedAt:   m.CreatedAt,
	}, nil
}
