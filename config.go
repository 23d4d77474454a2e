package dcolock

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/types"
)

// Config holds the parameters a sale starts with. Once the initial state has
// been persisted, pricing and lifecycle values come from the store and these
// fields only seed a fresh ledger.
type Config struct {
	// TokenDecimals is the decimal scale of the sold token (default: 18).
	TokenDecimals uint8 `json:"token_decimals" mapstructure:"token_decimals" yaml:"token_decimals"`

	// UsdNormalizer divides totalUsdGathered before it is compared with the
	// threshold (default: 1_000_000).
	UsdNormalizer types.Amount `json:"usd_normalizer" mapstructure:"usd_normalizer" yaml:"usd_normalizer"`

	// InitialPrice is the starting token price (default: 500).
	InitialPrice types.Amount `json:"initial_price" mapstructure:"initial_price" yaml:"initial_price"`

	// Threshold is the first normalized amount that triggers a price step.
	Threshold types.Amount `json:"threshold" mapstructure:"threshold" yaml:"threshold"`

	// IncrementThreshold is added to Threshold on every price step.
	IncrementThreshold types.Amount `json:"increment_threshold" mapstructure:"increment_threshold" yaml:"increment_threshold"`

	// Schedule holds the repricing steps and checkpoints.
	Schedule sale.Schedule `json:"schedule" mapstructure:"schedule" yaml:"schedule"`

	// SaleEnd is the last instant allocations are accepted.
	SaleEnd time.Time `json:"sale_end" mapstructure:"sale_end" yaml:"sale_end"`

	// SevenMonthMark and OneYearMark release the two tranches. Zero values
	// are derived from SaleEnd.
	SevenMonthMark time.Time `json:"seven_month_mark" mapstructure:"seven_month_mark" yaml:"seven_month_mark"`
	OneYearMark    time.Time `json:"one_year_mark"    mapstructure:"one_year_mark"    yaml:"one_year_mark"`

	Charity         common.Address   `json:"charity"          mapstructure:"charity"          yaml:"charity"`
	Owner           common.Address   `json:"owner"            mapstructure:"owner"            yaml:"owner"`
	Releasers       []common.Address `json:"releasers"        mapstructure:"releasers"        yaml:"releasers"`
	WalletSuppliers []common.Address `json:"wallet_suppliers" mapstructure:"wallet_suppliers" yaml:"wallet_suppliers"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`
}

// Default sale parameters.
const (
	DefaultTokenDecimals      = 18
	DefaultUsdNormalizer      = 1_000_000
	DefaultInitialPrice       = 500
	DefaultThreshold          = 100_000
	DefaultIncrementThreshold = 100_000
	DefaultPluginTimeout      = 5 * time.Second
)

// DefaultConfig returns a Config with the reference sale parameters. SaleEnd
// and Owner have no sensible default and must be set.
func DefaultConfig() Config {
	return Config{
		TokenDecimals:      DefaultTokenDecimals,
		UsdNormalizer:      types.NewAmount(DefaultUsdNormalizer),
		InitialPrice:       types.NewAmount(DefaultInitialPrice),
		Threshold:          types.NewAmount(DefaultThreshold),
		IncrementThreshold: types.NewAmount(DefaultIncrementThreshold),
		Schedule:           sale.DefaultSchedule(),
		PluginTimeout:      DefaultPluginTimeout,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig and derives the
// vesting marks.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TokenDecimals == 0 {
		c.TokenDecimals = d.TokenDecimals
	}
	if c.UsdNormalizer.IsZero() {
		c.UsdNormalizer = d.UsdNormalizer
	}
	if c.InitialPrice.IsZero() {
		c.InitialPrice = d.InitialPrice
	}
	if c.Threshold.IsZero() {
		c.Threshold = d.Threshold
	}
	if c.IncrementThreshold.IsZero() {
		c.IncrementThreshold = d.IncrementThreshold
	}
	if c.Schedule.BaseStep.IsZero() && len(c.Schedule.Checkpoints) == 0 {
		c.Schedule = d.Schedule
	}
	if c.PluginTimeout == 0 {
		c.PluginTimeout = d.PluginTimeout
	}
	if !c.SaleEnd.IsZero() {
		if c.SevenMonthMark.IsZero() {
			c.SevenMonthMark = c.SaleEnd.AddDate(0, 7, 0)
		}
		if c.OneYearMark.IsZero() {
			c.OneYearMark = c.SaleEnd.AddDate(1, 0, 0)
		}
	}
	return c
}

// Validate reports the first problem that would make the sale unusable.
func (c Config) Validate() error {
	switch {
	case c.TokenDecimals > 77:
		return fmt.Errorf("%w: token decimals %d exceed 256-bit range", ErrInvalidConfig, c.TokenDecimals)
	case c.UsdNormalizer.IsZero():
		return fmt.Errorf("%w: usd normalizer must be positive", ErrInvalidConfig)
	case c.InitialPrice.IsZero():
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidPrice)
	case c.Threshold.IsZero():
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidThreshold)
	case c.IncrementThreshold.IsZero():
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidIncrementThreshold)
	case c.SaleEnd.IsZero():
		return fmt.Errorf("%w: sale end is required", ErrInvalidConfig)
	case c.SevenMonthMark.After(c.OneYearMark):
		return fmt.Errorf("%w: seven-month mark %s after one-year mark %s",
			ErrInvalidConfig, c.SevenMonthMark.Format(time.RFC3339), c.OneYearMark.Format(time.RFC3339))
	case c.Owner == (common.Address{}):
		return fmt.Errorf("%w: owner is required", ErrInvalidConfig)
	}
	if err := c.Schedule.Validate(c.InitialPrice); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// initialState builds the state of a fresh sale.
func (c Config) initialState(now time.Time) *sale.State {
	return &sale.State{
		Entity:             types.NewEntity(now),
		SchemaVersion:      sale.SchemaVersion,
		TokenPrice:         c.InitialPrice,
		PriceStep:          c.Schedule.StepAt(c.InitialPrice),
		Threshold:          c.Threshold,
		IncrementThreshold: c.IncrementThreshold,
		SaleEndTime:        c.SaleEnd.UTC(),
		SevenMonthMark:     c.SevenMonthMark.UTC(),
		OneYearMark:        c.OneYearMark.UTC(),
		Charity:            c.Charity,
	}
}
