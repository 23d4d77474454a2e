package dcolock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/id"
	"github.com/xraph/dcolock/plugin"
	"github.com/xraph/dcolock/sale"
	"github.com/xraph/dcolock/store"
	"github.com/xraph/dcolock/token"
	"github.com/xraph/dcolock/types"
	"github.com/xraph/dcolock/vesting"
)

// Operation names reported to tracing and to plugins on failure.
const (
	OpAllocate              = "allocate"
	OpLockTokens            = "lock_tokens"
	OpClaim                 = "claim"
	OpWithdraw              = "withdraw"
	OpWithdrawAll           = "withdraw_all"
	OpFlushDonations        = "flush_donations"
	OpDeposit               = "deposit"
	OpSetThreshold          = "set_threshold"
	OpSetIncrementThreshold = "set_increment_threshold"
	OpSetTokenPrice         = "set_token_price"
	OpSetCharity            = "set_charity"
	OpGrantRole             = "grant_role"
	OpRevokeRole            = "revoke_role"
)

const tracerName = "github.com/xraph/dcolock"

// Ledger is the sale and vesting engine. Every state-changing operation runs
// under one mutex and commits a single changeset to the store.
type Ledger struct {
	mu sync.Mutex

	store   store.Store
	token   token.Token
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   clock.Clock
	tracer  trace.Tracer

	config        Config
	pluginTimeout time.Duration
	scale         types.Amount

	state   *sale.State
	roles   *access.Set
	started bool

	// inFlight is set while a token transfer runs with mu held.
	inFlight atomic.Bool
}

// New creates a Ledger over s that moves inventory with tok.
func New(s store.Store, tok token.Token, opts ...Option) (*Ledger, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if tok == nil {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}

	l := &Ledger{
		store:   s,
		token:   tok,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		clock:   clock.New(),
		tracer:  otel.Tracer(tracerName),
		config:  DefaultConfig(),
		roles:   access.NewSet(),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.config = l.config.withDefaults()
	if err := l.config.Validate(); err != nil {
		return nil, err
	}
	if l.pluginTimeout == 0 {
		l.pluginTimeout = l.config.PluginTimeout
	}
	l.plugins.WithTimeout(l.pluginTimeout)
	l.scale = types.Pow10(l.config.TokenDecimals)

	return l, nil
}

// Config returns the resolved configuration.
func (l *Ledger) Config() Config { return l.config }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Start migrates the store and loads the persisted sale, creating it from
// the configuration on first use.
func (l *Ledger) Start(ctx context.Context) error {
	l.mu.Lock()

	if err := l.store.Migrate(ctx); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("dcolock: migrate: %w", err)
	}

	boot, err := l.load(ctx)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.started = true
	state := l.state.Clone()
	l.mu.Unlock()

	l.plugins.EmitInit(ctx, state)
	for _, evt := range boot {
		l.plugins.Emit(ctx, evt, nil)
	}

	l.logger.Info("dcolock started",
		"token_price", state.TokenPrice.String(),
		"token_sold", state.TokenSold.String(),
		"sale_end", state.SaleEndTime,
		"plugins", l.plugins.Count(),
	)
	return nil
}

// load reads the state and grants, or bootstraps them. It returns the
// events of a bootstrap, if one happened.
func (l *Ledger) load(ctx context.Context) ([]*event.Event, error) {
	st, err := l.store.GetState(ctx)
	switch {
	case err == nil:
		grants, err := l.store.ListGrants(ctx)
		if err != nil {
			return nil, fmt.Errorf("dcolock: load grants: %w", err)
		}
		l.state = st
		l.roles = access.NewSet(grants...)
		return nil, nil
	case !errors.Is(err, ErrStateNotFound):
		return nil, fmt.Errorf("dcolock: load state: %w", err)
	}

	now := l.clock.Now().UTC()
	t := &txn{now: now, state: l.config.initialState(now)}

	seed := func(role access.Role, accounts ...common.Address) {
		for _, a := range accounts {
			if a == (common.Address{}) || t.hasGrant(role, a) {
				continue
			}
			t.grant(role, a, l.config.Owner)
		}
	}
	seed(access.RoleOwner, l.config.Owner)
	seed(access.RoleReleaser, l.config.Releasers...)
	seed(access.RoleWalletSupplier, l.config.WalletSuppliers...)

	if err := l.store.Commit(ctx, t.changeset()); err != nil {
		return nil, fmt.Errorf("dcolock: bootstrap: %w", err)
	}
	l.state = t.state
	l.roles = access.NewSet(t.grants...)

	boot := make([]*event.Event, 0, len(t.emitted))
	for _, e := range t.emitted {
		boot = append(boot, e.evt)
	}
	return boot, nil
}

// Stop notifies plugins and closes the store.
func (l *Ledger) Stop() error {
	l.mu.Lock()
	l.started = false
	l.mu.Unlock()

	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

type guardKey struct{}

// guard marks ctx as belonging to an operation with a transfer in flight.
func guard(ctx context.Context) context.Context {
	return context.WithValue(ctx, guardKey{}, true)
}

func guarded(ctx context.Context) bool {
	v, _ := ctx.Value(guardKey{}).(bool)
	return v
}

type emission struct {
	evt  *event.Event
	lock *vesting.Lock
}

// txn accumulates the effects of one operation on copies of the ledger state.
type txn struct {
	ctx   context.Context // guarded, for token calls
	now   time.Time
	state *sale.State

	locks   []*vesting.Lock
	prior   []*vesting.Lock
	grants  []*access.Grant
	revoked []*access.Grant
	emitted []emission

	// transfer runs after the commit. Its failure rolls the commit back.
	transfer func(ctx context.Context) error
}

func (t *txn) emit(typ event.Type, lock *vesting.Lock) *event.Event {
	evt := event.New(typ, t.state.NextSeq(), t.now)
	t.emitted = append(t.emitted, emission{evt: evt, lock: lock})
	return evt
}

// put stages lock for the commit. prior is its stored version, nil for a
// new lock.
func (t *txn) put(lock, prior *vesting.Lock) {
	if prior == nil {
		lock.Entity = types.NewEntity(t.now)
	} else {
		lock.Touch(t.now)
		t.prior = append(t.prior, prior)
	}
	t.locks = append(t.locks, lock)
}

func (t *txn) grant(role access.Role, account, by common.Address) *access.Grant {
	g := &access.Grant{
		Entity:    types.NewEntity(t.now),
		ID:        id.NewGrantID(),
		Role:      role,
		Account:   account,
		GrantedBy: by,
	}
	t.grants = append(t.grants, g)
	evt := t.emit(event.TypeRoleGranted, nil)
	evt.Account = account
	evt.Role = role
	return g
}

func (t *txn) hasGrant(role access.Role, account common.Address) bool {
	for _, g := range t.grants {
		if g.Role == role && g.Account == account {
			return true
		}
	}
	return false
}

func (t *txn) changeset() *store.Changeset {
	t.state.Touch(t.now)
	cs := &store.Changeset{
		State:   t.state,
		Locks:   t.locks,
		Grants:  t.grants,
		Revoked: t.revoked,
	}
	for _, e := range t.emitted {
		cs.Events = append(cs.Events, e.evt)
	}
	return cs
}

// run executes fn as one atomic operation. fn validates and stages effects
// on a txn; nothing is written unless it returns nil. Plugins are notified
// after the ledger lock is released.
func (l *Ledger) run(ctx context.Context, op string, fn func(*txn) error) error {
	ctx, span := l.tracer.Start(ctx, "dcolock."+op,
		trace.WithAttributes(attribute.String("dcolock.operation", op)))
	defer span.End()

	if caller, ok := access.CallerFrom(ctx); ok {
		span.SetAttributes(attribute.String("dcolock.caller", caller.Hex()))
	}

	emitted, err := l.apply(ctx, op, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Debug("dcolock: operation rejected", "op", op, "error", err)
		l.plugins.EmitOperationFailed(ctx, op, err)
		return err
	}

	span.SetAttributes(attribute.Int("dcolock.events", len(emitted)))
	l.logger.Debug("dcolock: operation applied", "op", op, "events", len(emitted))
	for _, e := range emitted {
		var lock *vesting.Lock
		if e.lock != nil {
			lock = e.lock.Clone()
		}
		l.plugins.Emit(ctx, e.evt, lock)
	}
	return nil
}

func (l *Ledger) apply(ctx context.Context, op string, fn func(*txn) error) ([]emission, error) {
	if guarded(ctx) || l.inFlight.Load() {
		return nil, ErrReentrantCall
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil, ErrNotStarted
	}

	t := &txn{
		ctx:   guard(ctx),
		now:   l.clock.Now().UTC(),
		state: l.state.Clone(),
	}
	if err := fn(t); err != nil {
		return nil, err
	}

	if err := l.store.Commit(ctx, t.changeset()); err != nil {
		return nil, fmt.Errorf("dcolock: %s: commit: %w", op, err)
	}

	if t.transfer != nil {
		if err := l.transfer(t); err != nil {
			l.rollback(ctx, op, t)
			return nil, fmt.Errorf("dcolock: %s: transfer: %w", op, err)
		}
	}

	l.state = t.state
	for _, g := range t.revoked {
		l.roles.Remove(g.Role, g.Account)
	}
	for _, g := range t.grants {
		l.roles.Add(g)
	}
	return t.emitted, nil
}

func (l *Ledger) transfer(t *txn) error {
	l.inFlight.Store(true)
	defer l.inFlight.Store(false)
	return t.transfer(t.ctx)
}

// rollback restores the state and locks committed before t and retracts t's
// events. Operations that transfer never create locks, so restoring the
// prior versions is enough.
func (l *Ledger) rollback(ctx context.Context, op string, t *txn) {
	cs := &store.Changeset{
		State: l.state.Clone(),
		Locks: t.prior,
	}
	for _, e := range t.emitted {
		cs.Retract = append(cs.Retract, e.evt.ID)
	}
	if err := l.store.Commit(ctx, cs); err != nil {
		l.logger.Error("dcolock: rollback failed, store diverges from ledger",
			"op", op,
			"error", err,
		)
	}
}

// view runs fn under the ledger lock for a consistent read.
func (l *Ledger) view(ctx context.Context, fn func(ctx context.Context) error) error {
	if guarded(ctx) || l.inFlight.Load() {
		return ErrReentrantCall
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return ErrNotStarted
	}
	return fn(guard(ctx))
}

// ──────────────────────────────────────────────────
// Shared checks
// ──────────────────────────────────────────────────

// authorize returns the caller carried by ctx if it holds role.
func (l *Ledger) authorize(ctx context.Context, role access.Role) (common.Address, error) {
	caller, _ := access.CallerFrom(ctx)
	if caller == (common.Address{}) || !l.roles.Has(role, caller) {
		return caller, &RoleError{Role: role, Account: caller}
	}
	return caller, nil
}

// balance returns the tokens held by the ledger.
func (l *Ledger) balance(ctx context.Context) (types.Amount, error) {
	b, err := l.token.BalanceOf(ctx, l.token.Address())
	if err != nil {
		return types.Amount{}, fmt.Errorf("dcolock: balance: %w", err)
	}
	return b, nil
}

// lock returns the stored lock of account, or nil if none exists.
func (l *Ledger) lock(ctx context.Context, account common.Address) (*vesting.Lock, error) {
	lk, err := l.store.GetLock(ctx, account)
	if errors.Is(err, ErrLockNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dcolock: load lock: %w", err)
	}
	return lk, nil
}

// tokensFor converts a reference-currency amount at the current price.
func (l *Ledger) tokensFor(st *sale.State, ref types.Amount) (types.Amount, error) {
	if ref.IsZero() {
		return types.Amount{}, nil
	}
	tokens, overflow := ref.MulDiv(l.scale, st.TokenPrice)
	if overflow {
		return types.Amount{}, amountErr(ErrOverflowDetected, "ref_amount", ref, st.TokenPrice)
	}
	return tokens, nil
}

func add(field string, a, b types.Amount) (types.Amount, error) {
	sum, overflow := a.Add(b)
	if overflow {
		return types.Amount{}, amountErr(ErrOverflowDetected, field, a, b)
	}
	return sum, nil
}
