package sale

import (
	"errors"
	"fmt"
	"slices"

	"github.com/xraph/dcolock/types"
)

// Checkpoint switches the price step once the token price lands exactly on Price.
type Checkpoint struct {
	Price types.Amount `json:"price" yaml:"price" mapstructure:"price"`
	Step  types.Amount `json:"step"  yaml:"step"  mapstructure:"step"`
}

// Schedule describes the piecewise-linear price curve.
type Schedule struct {
	BaseStep    types.Amount `json:"base_step"   yaml:"base_step"   mapstructure:"base_step"`
	Checkpoints []Checkpoint `json:"checkpoints" yaml:"checkpoints" mapstructure:"checkpoints"`
}

// Default pricing constants.
var (
	DefaultBaseStep = types.NewAmount(5)

	DefaultCheckpoints = []Checkpoint{
		{Price: types.NewAmount(1000), Step: types.NewAmount(10)},
		{Price: types.NewAmount(2000), Step: types.NewAmount(20)},
		{Price: types.NewAmount(5000), Step: types.NewAmount(50)},
		{Price: types.NewAmount(10000), Step: types.NewAmount(100)},
	}
)

// DefaultSchedule returns the default curve.
func DefaultSchedule() Schedule {
	return Schedule{
		BaseStep:    DefaultBaseStep,
		Checkpoints: slices.Clone(DefaultCheckpoints),
	}
}

// StepAt returns the step in force at price: the step of the highest
// checkpoint not above price, or BaseStep below the first checkpoint.
func (s Schedule) StepAt(price types.Amount) types.Amount {
	step := s.BaseStep
	for _, cp := range s.Checkpoints {
		if price.Lt(cp.Price) {
			break
		}
		step = cp.Step
	}
	return step
}

// Landing returns the checkpoint step if price equals a checkpoint exactly.
func (s Schedule) Landing(price types.Amount) (types.Amount, bool) {
	for _, cp := range s.Checkpoints {
		if cp.Price.Eq(price) {
			return cp.Step, true
		}
	}
	return types.Amount{}, false
}

// Validate checks that the schedule is usable starting from initial: steps
// are positive, checkpoints strictly increase, and every checkpoint above
// initial is reached exactly by stepping.
func (s Schedule) Validate(initial types.Amount) error {
	if s.BaseStep.IsZero() {
		return errors.New("sale: base step must be positive")
	}

	price, step := initial, s.StepAt(initial)
	var prev types.Amount
	for i, cp := range s.Checkpoints {
		if cp.Step.IsZero() {
			return fmt.Errorf("sale: checkpoint %d has zero step", i)
		}
		if i > 0 && !cp.Price.Gt(prev) {
			return fmt.Errorf("sale: checkpoint %d price %s not above %s", i, cp.Price, prev)
		}
		prev = cp.Price

		if !cp.Price.Gt(price) {
			continue
		}
		gap, _ := cp.Price.Sub(price)
		if !gap.Mod(step).IsZero() {
			return fmt.Errorf("sale: checkpoint %s unreachable from %s in steps of %s", cp.Price, price, step)
		}
		price, step = cp.Price, cp.Step
	}
	return nil
}
