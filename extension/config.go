package extension

// Config holds the Treasury extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.treasury" or "treasury" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Terminal is this engine's terminal address.
	Terminal string `json:"terminal" mapstructure:"terminal" yaml:"terminal"`

	// Token is the asset the terminal manages. Empty means the chain's
	// native token.
	Token string `json:"token" mapstructure:"token" yaml:"token"`

	// Currency is the terminal's accounting currency (default: "eth").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// Decimals is the terminal's fixed-point precision (default: 18).
	Decimals uint32 `json:"decimals" mapstructure:"decimals" yaml:"decimals"`

	// BaseWeightCurrency is the currency funding cycle weights are quoted
	// in. Defaults to Currency.
	BaseWeightCurrency string `json:"base_weight_currency" mapstructure:"base_weight_currency" yaml:"base_weight_currency"`

	// ProtocolProjectID is the project that collects protocol fees
	// (default: 1).
	ProtocolProjectID uint64 `json:"protocol_project_id" mapstructure:"protocol_project_id" yaml:"protocol_project_id"`

	// FeeRate is the protocol fee rate in parts per billion of fees.MaxFee
	// (default: 25000000, i.e. 2.5%).
	FeeRate uint64 `json:"fee_rate" mapstructure:"fee_rate" yaml:"fee_rate"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:          "eth",
		Decimals:          18,
		ProtocolProjectID: 1,
		FeeRate:           25_000_000,
	}
}
