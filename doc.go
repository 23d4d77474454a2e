// Package dcolock provides a tiered-price token sale ledger with two-tranche
// vesting, for simulating and bookkeeping a DCOLock sale off-chain.
//
// dcolock is designed as a library, not a service. It provides:
//
//   - Tiered repricing driven by the reference currency gathered
//   - Per-buyer locks split into a seven-month and a one-year tranche
//   - Owner withdrawal of unallocated inventory after the sale
//   - Donation earmarking and bulk flushes to a charity
//   - Role-gated operations (owner, releaser, wallet supplier)
//   - An append-only event log and plugin hooks for audit and metrics
//
// # Quick Start
//
// Create a ledger with a store and a token:
//
//	import (
//	    "github.com/xraph/dcolock"
//	    "github.com/xraph/dcolock/store/memory"
//	    tokenmem "github.com/xraph/dcolock/token/memory"
//	)
//
//	cfg := dcolock.DefaultConfig()
//	cfg.SaleEnd = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
//	cfg.Owner = owner
//	cfg.Releasers = []common.Address{releaser}
//
//	l, err := dcolock.New(memory.New(), tokenmem.New(vault), dcolock.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Callers
//
// Operations read the calling account from the context:
//
//	ctx = dcolock.WithCaller(ctx, releaser)
//	alloc, err := l.Allocate(ctx, buyer, dcolock.NewAmount(1_000_000), dcolock.Amount{})
//
//	ctx = dcolock.WithCaller(ctx, buyer)
//	claim, err := l.Claim(ctx)
//
// # Atomicity
//
// Each operation validates on copies, commits one changeset, then runs its
// token transfer. A failed transfer restores the previous state. Any ledger
// call made while a transfer is running fails with ErrReentrantCall,
// whatever context it carries.
//
// All amounts are unsigned 256-bit integers. Arithmetic overflow fails the
// call with ErrOverflowDetected.
package dcolock
