package extension

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock"
)

// Config holds the DCOLock extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.dcolock" or "dcolock" keys).
type Config struct {
	// DisableMigrate prevents the ledger from starting (and migrating its
	// store) when the application starts.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Vault is the address of the sale contract's token account. It is used
	// by the in-memory token when no token is provided programmatically.
	Vault common.Address `json:"vault" mapstructure:"vault" yaml:"vault"`

	// Sale is the ledger configuration.
	Sale dcolock.Config `json:"sale" mapstructure:"sale" yaml:"sale"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Sale: dcolock.DefaultConfig(),
	}
}
