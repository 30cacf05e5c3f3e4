package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the treasury store (SQLite).
var Migrations = migrate.NewGroup("treasury")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_treasury_balances",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_balances (
    key        TEXT PRIMARY KEY,
    terminal   TEXT NOT NULL DEFAULT '',
    project_id INTEGER NOT NULL DEFAULT 0,
    balance    TEXT NOT NULL DEFAULT '0',
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_treasury_balances_terminal ON treasury_balances (terminal, project_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_used_distributions",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_used_distributions (
    key          TEXT PRIMARY KEY,
    terminal     TEXT NOT NULL DEFAULT '',
    project_id   INTEGER NOT NULL DEFAULT 0,
    cycle_number INTEGER NOT NULL DEFAULT 0,
    used         TEXT NOT NULL DEFAULT '0',
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_treasury_used_dist_project ON treasury_used_distributions (terminal, project_id, cycle_number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_used_distributions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_used_allowances",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_used_allowances (
    key           TEXT PRIMARY KEY,
    terminal      TEXT NOT NULL DEFAULT '',
    project_id    INTEGER NOT NULL DEFAULT 0,
    configuration INTEGER NOT NULL DEFAULT 0,
    used          TEXT NOT NULL DEFAULT '0',
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_treasury_used_allow_project ON treasury_used_allowances (terminal, project_id, configuration);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_used_allowances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_held_fees",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_held_fees (
    id          TEXT PRIMARY KEY,
    terminal    TEXT NOT NULL DEFAULT '',
    project_id  INTEGER NOT NULL DEFAULT 0,
    amount      TEXT NOT NULL DEFAULT '0',
    fee_rate    INTEGER NOT NULL DEFAULT 0,
    discount    INTEGER NOT NULL DEFAULT 0,
    beneficiary TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_treasury_held_fees_project ON treasury_held_fees (terminal, project_id, id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_held_fees`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_feeless_addresses",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_feeless_addresses (
    address    TEXT PRIMARY KEY,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_feeless_addresses`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_treasury_payments",
			Version: "20250101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS treasury_payments (
    id          TEXT PRIMARY KEY,
    terminal    TEXT NOT NULL DEFAULT '',
    project_id  INTEGER NOT NULL DEFAULT 0,
    kind        TEXT NOT NULL DEFAULT '',
    payer       TEXT NOT NULL DEFAULT '',
    beneficiary TEXT NOT NULL DEFAULT '',
    amount      TEXT NOT NULL DEFAULT '0',
    currency    TEXT NOT NULL DEFAULT '',
    memo        TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_treasury_payments_project ON treasury_payments (terminal, project_id, id);
CREATE INDEX IF NOT EXISTS idx_treasury_payments_kind ON treasury_payments (terminal, project_id, kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS treasury_payments`)
				return err
			},
		},
	)
}
