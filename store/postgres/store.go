package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/sale"
	dcostore "github.com/xraph/dcolock/store"
	"github.com/xraph/dcolock/vesting"
)

// compile-time interface check
var _ dcostore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("dcolock/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("dcolock/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Sale state ====================

func (s *Store) GetState(ctx context.Context) (*sale.State, error) {
	m := new(stateModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", stateKey).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dcolock.ErrStateNotFound
		}
		return nil, err
	}
	return fromStateModel(m)
}

func (s *Store) putState(ctx context.Context, st *sale.State) error {
	m := toStateModel(st)
	m.UpdatedAt = now()
	_, err := s.pg.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("schema_version = EXCLUDED.schema_version").
		Set("token_price = EXCLUDED.token_price").
		Set("price_step = EXCLUDED.price_step").
		Set("threshold = EXCLUDED.threshold").
		Set("increment_threshold = EXCLUDED.increment_threshold").
		Set("token_sold = EXCLUDED.token_sold").
		Set("total_usd_gathered = EXCLUDED.total_usd_gathered").
		Set("total_donated = EXCLUDED.total_donated").
		Set("total_claimed = EXCLUDED.total_claimed").
		Set("total_flushed = EXCLUDED.total_flushed").
		Set("owner_withdrawn = EXCLUDED.owner_withdrawn").
		Set("total_donations = EXCLUDED.total_donations").
		Set("sale_end_time = EXCLUDED.sale_end_time").
		Set("seven_month_mark = EXCLUDED.seven_month_mark").
		Set("one_year_mark = EXCLUDED.one_year_mark").
		Set("charity = EXCLUDED.charity").
		Set("event_seq = EXCLUDED.event_seq").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Vesting locks ====================

func (s *Store) GetLock(ctx context.Context, account common.Address) (*vesting.Lock, error) {
	m := new(lockModel)
	err := s.pg.NewSelect(m).
		Where("account = $1", account.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dcolock.ErrLockNotFound
		}
		return nil, err
	}
	return fromLockModel(m)
}

func (s *Store) ListLocks(ctx context.Context, opts vesting.ListOpts) ([]*vesting.Lock, error) {
	var models []lockModel
	q := s.pg.NewSelect(&models)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, account ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*vesting.Lock, len(models))
	for i := range models {
		l, err := fromLockModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

func (s *Store) putLock(ctx context.Context, l *vesting.Lock) error {
	m := toLockModel(l)
	m.UpdatedAt = now()
	_, err := s.pg.NewInsert(m).
		OnConflict("(account) DO UPDATE").
		Set("total_amount = EXCLUDED.total_amount").
		Set("seven_month_amount = EXCLUDED.seven_month_amount").
		Set("one_year_amount = EXCLUDED.one_year_amount").
		Set("seven_month_claimed = EXCLUDED.seven_month_claimed").
		Set("one_year_claimed = EXCLUDED.one_year_claimed").
		Set("lock_timestamp = EXCLUDED.lock_timestamp").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Role grants ====================

func (s *Store) ListGrants(ctx context.Context) ([]*access.Grant, error) {
	var models []grantModel
	err := s.pg.NewSelect(&models).
		OrderExpr("created_at ASC, role ASC, account ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*access.Grant, len(models))
	for i := range models {
		g, err := fromGrantModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = g
	}
	return result, nil
}

func (s *Store) putGrant(ctx context.Context, g *access.Grant) error {
	_, err := s.pg.NewInsert(toGrantModel(g)).
		OnConflict("(role, account) DO UPDATE").
		Set("granted_by = EXCLUDED.granted_by").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) deleteGrant(ctx context.Context, g *access.Grant) error {
	_, err := s.pg.NewDelete((*grantModel)(nil)).
		Where("role = $1", string(g.Role)).
		Where("account = $2", g.Account.Hex()).
		Exec(ctx)
	return err
}

// ==================== Event log ====================

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models).Where("seq > $1", int64(opts.AfterSequence))

	argIdx := 1
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.Type))
	}
	if opts.Account != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("account = $%d", argIdx), opts.Account.Hex())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("seq ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Commit ====================

// Commit writes the changeset in order: state, locks, revocations, grants,
// retractions, then events. The writes are separate statements: a failure
// part way leaves the earlier writes in place.
func (s *Store) Commit(ctx context.Context, cs *dcostore.Changeset) error {
	if cs.State != nil {
		if err := s.putState(ctx, cs.State); err != nil {
			return fmt.Errorf("dcolock/postgres: commit state: %w", err)
		}
	}
	for _, l := range cs.Locks {
		if err := s.putLock(ctx, l); err != nil {
			return fmt.Errorf("dcolock/postgres: commit lock %s: %w", l.Account.Hex(), err)
		}
	}
	for _, g := range cs.Revoked {
		if err := s.deleteGrant(ctx, g); err != nil {
			return fmt.Errorf("dcolock/postgres: revoke grant %s: %w", g.Role, err)
		}
	}
	for _, g := range cs.Grants {
		if err := s.putGrant(ctx, g); err != nil {
			return fmt.Errorf("dcolock/postgres: commit grant %s: %w", g.Role, err)
		}
	}
	for _, eid := range cs.Retract {
		_, err := s.pg.NewDelete((*eventModel)(nil)).
			Where("id = $1", eid.String()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("dcolock/postgres: retract event %s: %w", eid, err)
		}
	}
	if len(cs.Events) > 0 {
		models := make([]eventModel, len(cs.Events))
		for i, e := range cs.Events {
			models[i] = *toEventModel(e)
		}
		if _, err := s.pg.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("dcolock/postgres: commit events: %w", err)
		}
	}
	return nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
