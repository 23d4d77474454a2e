// Package extension provides the Forge extension adapter for DCOLock.
//
// It implements the forge.Extension interface to integrate the sale ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.dcolock" or "dcolock" keys.
package extension

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/store"
	"github.com/xraph/dcolock/store/memory"
	"github.com/xraph/dcolock/token"
	tokenmem "github.com/xraph/dcolock/token/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "dcolock"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Tiered-price token sale and vesting ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the DCOLock ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *dcolock.Ledger
	store      store.Store
	token      token.Token
	ledgerOpts []dcolock.Option
}

// New creates a new DCOLock Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying ledger.
// This is nil until Register is called.
func (e *Extension) Engine() *dcolock.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Fall back to in-memory backends when none were provided.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.token == nil {
		e.token = tokenmem.New(e.config.Vault)
	}

	eng, err := dcolock.New(e.store, e.token, e.buildLedgerOpts()...)
	if err != nil {
		return err
	}
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*dcolock.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("dcolock: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("dcolock: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs dcolock.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []dcolock.Option {
	opts := make([]dcolock.Option, 0, len(e.ledgerOpts)+1)
	opts = append(opts, dcolock.WithConfig(e.config.Sale))

	// Pass-through options come last so they can override the config.
	opts = append(opts, e.ledgerOpts...)
	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("dcolock: configuration is required but not found in config files; " +
				"ensure 'extensions.dcolock' or 'dcolock' key exists in your config")
		}
		e.config = programmaticConfig
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("dcolock: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("vault", e.config.Vault.Hex()),
		forge.F("sale_end", e.config.Sale.SaleEnd),
		forge.F("initial_price", e.config.Sale.InitialPrice.String()),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.dcolock", "dcolock"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("dcolock: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("dcolock: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps. Pricing
// defaults are applied by dcolock.New.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.Vault == (common.Address{}) {
		yamlConfig.Vault = programmaticConfig.Vault
	}

	y, p := &yamlConfig.Sale, programmaticConfig.Sale
	if y.SaleEnd.IsZero() {
		y.SaleEnd = p.SaleEnd
	}
	if y.SevenMonthMark.IsZero() {
		y.SevenMonthMark = p.SevenMonthMark
	}
	if y.OneYearMark.IsZero() {
		y.OneYearMark = p.OneYearMark
	}
	if y.Owner == (common.Address{}) {
		y.Owner = p.Owner
	}
	if y.Charity == (common.Address{}) {
		y.Charity = p.Charity
	}
	if len(y.Releasers) == 0 {
		y.Releasers = p.Releasers
	}
	if len(y.WalletSuppliers) == 0 {
		y.WalletSuppliers = p.WalletSuppliers
	}
	if y.TokenDecimals == 0 {
		y.TokenDecimals = p.TokenDecimals
	}
	if y.UsdNormalizer.IsZero() {
		y.UsdNormalizer = p.UsdNormalizer
	}
	if y.InitialPrice.IsZero() {
		y.InitialPrice = p.InitialPrice
	}
	if y.Threshold.IsZero() {
		y.Threshold = p.Threshold
	}
	if y.IncrementThreshold.IsZero() {
		y.IncrementThreshold = p.IncrementThreshold
	}
	if y.Schedule.BaseStep.IsZero() && len(y.Schedule.Checkpoints) == 0 {
		y.Schedule = p.Schedule
	}
	if y.PluginTimeout == 0 {
		y.PluginTimeout = p.PluginTimeout
	}

	return yamlConfig
}
