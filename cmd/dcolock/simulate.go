package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/store/memory"
	tokenmem "github.com/xraph/dcolock/token/memory"
	"github.com/xraph/dcolock/types"
)

// Scenario is a scripted sequence of ledger calls replayed against an
// in-memory sale with a mock clock.
type Scenario struct {
	Start time.Time `yaml:"start"`
	Steps []Step    `yaml:"steps"`
}

// Step is one ledger call. At moves the clock to an absolute time and
// Advance moves it forward; both are applied before the call.
type Step struct {
	At      time.Time      `yaml:"at"`
	Advance time.Duration  `yaml:"advance"`
	Caller  common.Address `yaml:"caller"`
	Op      string         `yaml:"op"`

	Account  common.Address `yaml:"account"`
	Amount   types.Amount   `yaml:"amount"`
	Donation types.Amount   `yaml:"donation"`
	Role     access.Role    `yaml:"role"`
}

// StepResult is what a step produced.
type StepResult struct {
	Index  int       `json:"index"`
	Op     string    `json:"op"`
	At     time.Time `json:"at"`
	Result any       `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Report is the outcome of a simulation.
type Report struct {
	Steps  []StepResult   `json:"steps"`
	State  any            `json:"state"`
	Events []*event.Event `json:"events"`
}

// LoadScenario parses a YAML scenario.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("error parsing scenario: %w", err)
	}
	return &sc, nil
}

// Simulate replays sc against a fresh ledger configured by cfg. A failing
// step is recorded in the report and does not stop the run.
func Simulate(ctx context.Context, cfg *Config, sc *Scenario, logger *slog.Logger) (*Report, error) {
	clk := clock.NewMock()
	start := sc.Start
	if start.IsZero() {
		start = cfg.Sale.SaleEnd.AddDate(0, -1, 0)
	}
	clk.Set(start)

	tok := tokenmem.New(cfg.Vault)
	if err := tok.Mint(cfg.Vault, cfg.Supply); err != nil {
		return nil, err
	}

	l, err := dcolock.New(memory.New(), tok,
		dcolock.WithConfig(cfg.Sale),
		dcolock.WithClock(clk),
		dcolock.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := l.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = l.Stop() }()

	report := &Report{}
	for i, step := range sc.Steps {
		if !step.At.IsZero() {
			clk.Set(step.At)
		}
		if step.Advance > 0 {
			clk.Add(step.Advance)
		}

		res := StepResult{Index: i, Op: step.Op, At: clk.Now().UTC()}
		out, err := runStep(dcolock.WithCaller(ctx, step.Caller), l, step)
		if err != nil {
			res.Error = err.Error()
			logger.Debug("step failed", "index", i, "op", step.Op, "error", err)
		} else {
			res.Result = out
		}
		report.Steps = append(report.Steps, res)
	}

	if report.State, err = l.State(ctx); err != nil {
		return nil, err
	}
	if report.Events, err = l.Events(ctx, event.ListOpts{}); err != nil {
		return nil, err
	}
	return report, nil
}

func runStep(ctx context.Context, l *dcolock.Ledger, s Step) (any, error) {
	switch s.Op {
	case "allocate":
		return l.Allocate(ctx, s.Account, s.Amount, s.Donation)
	case "lock":
		return l.LockTokens(ctx, s.Account, s.Amount)
	case "claim":
		return l.Claim(ctx)
	case "withdraw":
		return nil, l.Withdraw(ctx, s.Amount)
	case "withdraw_all":
		return l.WithdrawAll(ctx)
	case "flush_donations":
		return l.FlushDonations(ctx)
	case "deposit":
		return nil, l.Deposit(ctx, s.Amount)
	case "set_threshold":
		return nil, l.SetThreshold(ctx, s.Amount)
	case "set_increment_threshold":
		return nil, l.SetIncrementThreshold(ctx, s.Amount)
	case "set_price":
		return nil, l.SetTokenPrice(ctx, s.Amount)
	case "set_charity":
		return nil, l.SetCharity(ctx, s.Account)
	case "grant_role":
		return nil, l.GrantRole(ctx, s.Role, s.Account)
	case "revoke_role":
		return nil, l.RevokeRole(ctx, s.Role, s.Account)
	case "available":
		return l.Available(ctx)
	case "claimable":
		amount, tranches, err := l.Claimable(ctx, s.Account)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amount": amount, "tranches": tranches.String()}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", s.Op)
	}
}

func simulateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Replay a scenario against an in-memory sale and print the report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := FromContext(cmd.Context())
			if cfg == nil {
				return fmt.Errorf("no config found in context")
			}
			logger := commonRun()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			sc, err := LoadScenario(f)
			if err != nil {
				return err
			}
			report, err := Simulate(cmd.Context(), cfg, sc, logger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	return cmd
}
