package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/dcolock"
	"github.com/xraph/dcolock/access"
	"github.com/xraph/dcolock/event"
	"github.com/xraph/dcolock/sale"
	dcostore "github.com/xraph/dcolock/store"
	"github.com/xraph/dcolock/vesting"
)

// Collection name constants.
const (
	colState  = "dcolock_state"
	colLocks  = "dcolock_locks"
	colGrants = "dcolock_grants"
	colEvents = "dcolock_events"
)

// compile-time interface check
var _ dcostore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all dcolock collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("dcolock/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m stateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": stateKey}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, dcolock.ErrStateNotFound
		}
		return nil, fmt.Errorf("dcolock/mongo: get state: %w", err)
	}
	return fromStateModel(&m)
}

func (s *Store) putState(ctx context.Context, st *sale.State) error {
	m := toStateModel(st)
	m.UpdatedAt = now()

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": stateKey}).
		SetUpdate(bson.M{"$set": bson.M{
			"schema_version":      m.SchemaVersion,
			"token_price":         m.TokenPrice,
			"price_step":          m.PriceStep,
			"threshold":           m.Threshold,
			"increment_threshold": m.IncrementThreshold,
			"token_sold":          m.TokenSold,
			"total_usd_gathered":  m.TotalUsdGathered,
			"total_donated":       m.TotalDonated,
			"total_claimed":       m.TotalClaimed,
			"total_flushed":       m.TotalFlushed,
			"owner_withdrawn":     m.OwnerWithdrawn,
			"total_donations":     m.TotalDonations,
			"sale_end_time":       m.SaleEndTime,
			"seven_month_mark":    m.SevenMonthMark,
			"one_year_mark":       m.OneYearMark,
			"charity":             m.Charity,
			"event_seq":           m.EventSeq,
			"created_at":          m.CreatedAt,
			"updated_at":          m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	return err
}

// ==================== Vesting locks ====================

func (s *Store) GetLock(ctx context.Context, account common.Address) (*vesting.Lock, error) {
	var m lockModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, dcolock.ErrLockNotFound
		}
		return nil, fmt.Errorf("dcolock/mongo: get lock: %w", err)
	}
	return fromLockModel(&m)
}

func (s *Store) ListLocks(ctx context.Context, opts vesting.ListOpts) ([]*vesting.Lock, error) {
	var models []lockModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dcolock/mongo: list locks: %w", err)
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

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Account}).
		SetUpdate(bson.M{"$set": bson.M{
			"id":                  m.ID,
			"total_amount":        m.TotalAmount,
			"seven_month_amount":  m.SevenMonthAmount,
			"one_year_amount":     m.OneYearAmount,
			"seven_month_claimed": m.SevenMonthClaimed,
			"one_year_claimed":    m.OneYearClaimed,
			"lock_timestamp":      m.LockTimestamp,
			"created_at":          m.CreatedAt,
			"updated_at":          m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	return err
}

// ==================== Role grants ====================

func (s *Store) ListGrants(ctx context.Context) ([]*access.Grant, error) {
	var models []grantModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "role", Value: 1}, {Key: "account", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("dcolock/mongo: list grants: %w", err)
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
	m := toGrantModel(g)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"role": m.Role, "account": m.Account}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"granted_by": m.GrantedBy,
				"updated_at": m.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"created_at": m.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	return err
}

func (s *Store) deleteGrant(ctx context.Context, g *access.Grant) error {
	_, err := s.mdb.NewDelete((*grantModel)(nil)).
		Filter(bson.M{"role": string(g.Role), "account": g.Account.Hex()}).
		Exec(ctx)
	return err
}

// ==================== Event log ====================

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{"seq": bson.M{"$gt": int64(opts.AfterSequence)}}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.Account != (common.Address{}) {
		filter["account"] = opts.Account.Hex()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "seq", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dcolock/mongo: list events: %w", err)
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
			return fmt.Errorf("dcolock/mongo: commit state: %w", err)
		}
	}
	for _, l := range cs.Locks {
		if err := s.putLock(ctx, l); err != nil {
			return fmt.Errorf("dcolock/mongo: commit lock %s: %w", l.Account.Hex(), err)
		}
	}
	for _, g := range cs.Revoked {
		if err := s.deleteGrant(ctx, g); err != nil {
			return fmt.Errorf("dcolock/mongo: revoke grant %s: %w", g.Role, err)
		}
	}
	for _, g := range cs.Grants {
		if err := s.putGrant(ctx, g); err != nil {
			return fmt.Errorf("dcolock/mongo: commit grant %s: %w", g.Role, err)
		}
	}
	if len(cs.Retract) > 0 {
		ids := make([]string, len(cs.Retract))
		for i, eid := range cs.Retract {
			ids[i] = eid.String()
		}
		_, err := s.mdb.NewDelete((*eventModel)(nil)).
			Filter(bson.M{"_id": bson.M{"$in": ids}}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("dcolock/mongo: retract events: %w", err)
		}
	}
	for _, e := range cs.Events {
		if _, err := s.mdb.NewInsert(toEventModel(e)).Exec(ctx); err != nil {
			return fmt.Errorf("dcolock/mongo: commit event %d: %w", e.Sequence, err)
		}
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all dcolock collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colState: {},
		colLocks: {
			{
				Keys:    bson.D{{Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colGrants: {
			{
				Keys:    bson.D{{Key: "role", Value: 1}, {Key: "account", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colEvents: {
			{
				Keys:    bson.D{{Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "account", Value: 1}, {Key: "seq", Value: 1}}},
		},
	}
}
