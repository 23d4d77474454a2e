package extension

import (
	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/plugin"
	"github.com/xraph/dcolock/store"
	"github.com/xraph/dcolock/token"
)

// Option configures the DCOLock Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithToken sets the token the ledger holds its inventory in.
func WithToken(t token.Token) Option {
	return func(e *Extension) {
		e.token = t
	}
}

// WithLedgerOption passes a dcolock.Option through to the underlying ledger.
func WithLedgerOption(opt dcolock.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, dcolock.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithSaleConfig sets the ledger configuration.
func WithSaleConfig(cfg dcolock.Config) Option {
	return func(e *Extension) { e.config.Sale = cfg }
}

// WithDisableMigrate prevents the ledger from starting with the application.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
