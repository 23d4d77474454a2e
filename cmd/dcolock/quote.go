package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/store/memory"
	tokenmem "github.com/xraph/dcolock/token/memory"
	"github.com/xraph/dcolock/types"
)

// QuoteResult is the token amount a purchase and donation convert to.
type QuoteResult struct {
	Price          types.Amount `json:"price"`
	PurchaseTokens types.Amount `json:"purchase_tokens"`
	DonationTokens types.Amount `json:"donation_tokens"`
}

// Quote prices a purchase on a fresh sale configured by cfg.
func Quote(ctx context.Context, cfg *Config, purchase, donation types.Amount) (*QuoteResult, error) {
	tok := tokenmem.New(cfg.Vault)
	if err := tok.Mint(cfg.Vault, cfg.Supply); err != nil {
		return nil, err
	}
	// Pricing does not depend on the lifecycle or the roles, so a bare
	// config only needs placeholders to pass validation.
	sc := cfg.Sale
	if sc.SaleEnd.IsZero() {
		sc.SaleEnd = time.Now().UTC().AddDate(1, 0, 0)
	}
	if sc.Owner == (common.Address{}) {
		sc.Owner = cfg.Vault
	}
	clk := clock.NewMock()
	clk.Set(sc.SaleEnd.AddDate(0, -1, 0))

	l, err := dcolock.New(memory.New(), tok,
		dcolock.WithConfig(sc),
		dcolock.WithClock(clk),
	)
	if err != nil {
		return nil, err
	}
	if err := l.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = l.Stop() }()

	price, err := l.TokenPrice(ctx)
	if err != nil {
		return nil, err
	}
	buy, gift, err := l.Quote(ctx, purchase, donation)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{Price: price, PurchaseTokens: buy, DonationTokens: gift}, nil
}

func quoteCommand() *cobra.Command {
	var purchase, donation string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Convert reference-currency amounts into tokens at the configured price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := FromContext(cmd.Context())
			if cfg == nil {
				return fmt.Errorf("no config found in context")
			}
			commonRun()

			p, err := types.ParseAmount(purchase)
			if err != nil {
				return err
			}
			d, err := types.ParseAmount(donation)
			if err != nil {
				return err
			}
			res, err := Quote(cmd.Context(), cfg, p, d)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&purchase, "purchase", "0", "purchase amount in reference units")
	cmd.Flags().StringVar(&donation, "donation", "0", "donation amount in reference units")
	return cmd
}
