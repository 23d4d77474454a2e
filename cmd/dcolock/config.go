package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/types"
)

type configContextKey struct{}

// Config drives the simulation commands.
type Config struct {
	// Vault is the token account of the simulated sale contract.
	Vault common.Address `yaml:"vault"  envconfig:"VAULT"`
	// Supply is minted to the vault before a simulation starts.
	Supply types.Amount `yaml:"supply" envconfig:"SUPPLY"`

	Sale dcolock.Config `yaml:"sale" ignored:"true"`
	// SaleEnd and Owner may also come from the environment.
	SaleEnd string         `yaml:"-" envconfig:"SALE_END"`
	Owner   common.Address `yaml:"-" envconfig:"OWNER"`
}

// Default simulation values.
var (
	DefaultVault  = common.HexToAddress("0x000000000000000000000000000000000000d0c0")
	DefaultSupply = types.MustParseAmount("1000000000000000000000000")
)

func defaultConfig() *Config {
	return &Config{
		Vault:  DefaultVault,
		Supply: DefaultSupply,
		Sale:   dcolock.DefaultConfig(),
	}
}

// LoadConfig reads configFile as YAML when given and then applies
// DCOLOCK_* environment overrides.
func LoadConfig(configFile string) (*Config, error) {
	cfg := defaultConfig()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process("dcolock", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.applyOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyOverrides() error {
	if c.SaleEnd != "" {
		if err := c.Sale.SaleEnd.UnmarshalText([]byte(c.SaleEnd)); err != nil {
			return fmt.Errorf("invalid DCOLOCK_SALE_END: %w", err)
		}
	}
	if c.Owner != (common.Address{}) {
		c.Sale.Owner = c.Owner
	}
	return nil
}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey{}, cfg)
}

// FromContext returns the config stored by WithConfig, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configContextKey{}).(*Config)
	return cfg
}
