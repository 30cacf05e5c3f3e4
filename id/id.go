// Package id defines TypeID-based identity types for all treasury entities.
//
// Every persisted record uses a single ID struct with a prefix that identifies
// the entity type. IDs are K-sortable (UUIDv7-based), globally unique,
// and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all treasury entity types.
const (
	PrefixPayment      Prefix = "pay"  // Recorded payment journal entry
	PrefixHeldFee      Prefix = "fee"  // Held (deferred) fee entry
	PrefixPayout       Prefix = "pout" // Payout transfer produced by a distribution
	PrefixDistribution Prefix = "dist" // Distribution run
	PrefixRedemption   Prefix = "rdm"  // Token redemption
	PrefixMigration    Prefix = "mig"  // Balance migration hand-off
)

// ID is the primary identifier type for all treasury entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "fee_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// PaymentID is a type-safe identifier for payment records (prefix: "pay").
type PaymentID = ID

// HeldFeeID is a type-safe identifier for held fees (prefix: "fee").
type HeldFeeID = ID

// PayoutID is a type-safe identifier for payout transfers (prefix: "pout").
type PayoutID = ID

// DistributionID is a type-safe identifier for distribution runs (prefix: "dist").
type DistributionID = ID

// RedemptionID is a type-safe identifier for redemptions (prefix: "rdm").
type RedemptionID = ID

// MigrationID is a type-safe identifier for migrations (prefix: "mig").
type MigrationID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewPaymentID generates a new unique payment record ID.
func NewPaymentID() ID { return New(PrefixPayment) }

// NewHeldFeeID generates a new unique held fee ID.
func NewHeldFeeID() ID { return New(PrefixHeldFee) }

// NewPayoutID generates a new unique payout transfer ID.
func NewPayoutID() ID { return New(PrefixPayout) }

// NewDistributionID generates a new unique distribution run ID.
func NewDistributionID() ID { return New(PrefixDistribution) }

// NewRedemptionID generates a new unique redemption ID.
func NewRedemptionID() ID { return New(PrefixRedemption) }

// NewMigrationID generates a new unique migration ID.
func NewMigrationID() ID { return New(PrefixMigration) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParsePaymentID parses a string and validates the "pay" prefix.
func ParsePaymentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayment) }

// ParseHeldFeeID parses a string and validates the "fee" prefix.
func ParseHeldFeeID(s string) (ID, error) { return ParseWithPrefix(s, PrefixHeldFee) }

// ParsePayoutID parses a string and validates the "pout" prefix.
func ParsePayoutID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayout) }

// ParseDistributionID parses a string and validates the "dist" prefix.
func ParseDistributionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDistribution) }

// ParseRedemptionID parses a string and validates the "rdm" prefix.
func ParseRedemptionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRedemption) }

// ParseMigrationID parses a string and validates the "mig" prefix.
func ParseMigrationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixMigration) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
