package extension

import (
	treasury "github.com/fundpipe/treasury"
	"github.com/fundpipe/treasury/plugin"
	"github.com/fundpipe/treasury/store"
)

// Option configures the Treasury Forge extension.
type Option func(*Extension)

// WithStore sets the store for the treasury engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTreasuryOption passes a treasury.Option through to the underlying engine.
func WithTreasuryOption(opt treasury.Option) Option {
	return func(e *Extension) {
		e.treasuryOpts = append(e.treasuryOpts, opt)
	}
}

// WithPlugin registers a treasury plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.treasuryOpts = append(e.treasuryOpts, treasury.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithTerminal sets the terminal address, token and currency.
func WithTerminal(address, token, currency string) Option {
	return func(e *Extension) {
		e.config.Terminal = address
		e.config.Token = token
		e.config.Currency = currency
	}
}

// WithProtocolProjectID sets the project that collects protocol fees.
func WithProtocolProjectID(projectID uint64) Option {
	return func(e *Extension) { e.config.ProtocolProjectID = projectID }
}

// WithFeeRate sets the protocol fee rate in parts per billion.
func WithFeeRate(rate uint64) Option {
	return func(e *Extension) { e.config.FeeRate = rate }
}
