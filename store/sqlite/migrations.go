package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the dcolock store.
var Migrations = migrate.NewGroup("dcolock")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_dcolock_state",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dcolock_state (
    id                  TEXT PRIMARY KEY,
    schema_version      INTEGER NOT NULL DEFAULT 1,
    token_price         TEXT NOT NULL DEFAULT '0',
    price_step          TEXT NOT NULL DEFAULT '0',
    threshold           TEXT NOT NULL DEFAULT '0',
    increment_threshold TEXT NOT NULL DEFAULT '0',
    token_sold          TEXT NOT NULL DEFAULT '0',
    total_usd_gathered  TEXT NOT NULL DEFAULT '0',
    total_donated       TEXT NOT NULL DEFAULT '0',
    total_claimed       TEXT NOT NULL DEFAULT '0',
    total_flushed       TEXT NOT NULL DEFAULT '0',
    owner_withdrawn     TEXT NOT NULL DEFAULT '0',
    total_donations     TEXT NOT NULL DEFAULT '0',
    sale_end_time       TEXT NOT NULL,
    seven_month_mark    TEXT NOT NULL,
    one_year_mark       TEXT NOT NULL,
    charity             TEXT NOT NULL DEFAULT '',
    event_seq           INTEGER NOT NULL DEFAULT 0,
    created_at          TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dcolock_state`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dcolock_locks",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dcolock_locks (
    account             TEXT PRIMARY KEY,
    id                  TEXT NOT NULL,
    total_amount        TEXT NOT NULL DEFAULT '0',
    seven_month_amount  TEXT NOT NULL DEFAULT '0',
    one_year_amount     TEXT NOT NULL DEFAULT '0',
    seven_month_claimed TEXT NOT NULL DEFAULT '0',
    one_year_claimed    TEXT NOT NULL DEFAULT '0',
    lock_timestamp      TEXT NOT NULL,
    created_at          TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_dcolock_locks_id ON dcolock_locks (id);
CREATE INDEX IF NOT EXISTS idx_dcolock_locks_created ON dcolock_locks (created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dcolock_locks`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dcolock_grants",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dcolock_grants (
    id         TEXT PRIMARY KEY,
    role       TEXT NOT NULL,
    account    TEXT NOT NULL,
    granted_by TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_dcolock_grants_role_account ON dcolock_grants (role, account);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dcolock_grants`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_dcolock_events",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dcolock_events (
    id         TEXT PRIMARY KEY,
    seq        INTEGER NOT NULL,
    type       TEXT NOT NULL,
    account    TEXT NOT NULL DEFAULT '',
    amount     TEXT NOT NULL DEFAULT '0',
    ref_amount TEXT NOT NULL DEFAULT '0',
    price      TEXT NOT NULL DEFAULT '0',
    threshold  TEXT NOT NULL DEFAULT '0',
    stage      INTEGER NOT NULL DEFAULT 0,
    tranches   INTEGER NOT NULL DEFAULT 0,
    role       TEXT NOT NULL DEFAULT '',
    timestamp  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_dcolock_events_seq ON dcolock_events (seq);
CREATE INDEX IF NOT EXISTS idx_dcolock_events_type ON dcolock_events (type, seq);
CREATE INDEX IF NOT EXISTS idx_dcolock_events_account ON dcolock_events (account, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS dcolock_events`)
				return err
			},
		},
	)
}
