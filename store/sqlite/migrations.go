package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the authcore store.
var Migrations = migrate.NewGroup("authcore")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_authcore_subscriptions",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authcore_subscriptions (
    id           TEXT PRIMARY KEY,
    subscriber   TEXT NOT NULL DEFAULT '',
    provider     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'draft',
    terms        TEXT NOT NULL DEFAULT '{}',
    start_at     DATETIME,
    end_at       DATETIME,
    signed_at    DATETIME,
    activated_at DATETIME,
    cancelled_at DATETIME,
    expired_at   DATETIME,
    last_paid_at DATETIME,
    history      TEXT NOT NULL DEFAULT '[]',
    created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_authcore_subs_subscriber ON authcore_subscriptions (subscriber);
CREATE INDEX IF NOT EXISTS idx_authcore_subs_provider ON authcore_subscriptions (provider);
CREATE INDEX IF NOT EXISTS idx_authcore_subs_status ON authcore_subscriptions (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authcore_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_authcore_requests",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authcore_requests (
    id          TEXT PRIMARY KEY,
    from_peer   TEXT NOT NULL DEFAULT '',
    to_peer     TEXT NOT NULL DEFAULT '',
    amount      TEXT NOT NULL DEFAULT '{}',
    method_id   TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    expires_at  DATETIME,
    status      TEXT NOT NULL DEFAULT 'pending',
    reason      TEXT NOT NULL DEFAULT '',
    decided_at  DATETIME,
    paid_at     DATETIME,
    proof_ref   TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_authcore_requests_from ON authcore_requests (from_peer, status);
CREATE INDEX IF NOT EXISTS idx_authcore_requests_to ON authcore_requests (to_peer, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authcore_requests`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_authcore_receipts",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authcore_receipts (
    id              TEXT PRIMARY KEY,
    request_id      TEXT NOT NULL DEFAULT '',
    subscription_id TEXT NOT NULL DEFAULT '',
    payer           TEXT NOT NULL DEFAULT '',
    payee           TEXT NOT NULL DEFAULT '',
    amount          TEXT NOT NULL DEFAULT '{}',
    method_id       TEXT NOT NULL DEFAULT '',
    proof_ref       TEXT NOT NULL DEFAULT '',
    paid_at         DATETIME NOT NULL DEFAULT (datetime('now')),
    created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_authcore_receipts_payer ON authcore_receipts (payer, paid_at);
CREATE INDEX IF NOT EXISTS idx_authcore_receipts_payee ON authcore_receipts (payee, paid_at);
CREATE INDEX IF NOT EXISTS idx_authcore_receipts_request ON authcore_receipts (request_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authcore_receipts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_authcore_autopay_rules",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authcore_autopay_rules (
    id                   TEXT PRIMARY KEY,
    name                 TEXT NOT NULL DEFAULT '',
    enabled              INTEGER NOT NULL DEFAULT 0,
    max_amount           TEXT,
    allowed_methods      TEXT NOT NULL DEFAULT '[]',
    allowed_peers        TEXT NOT NULL DEFAULT '[]',
    require_confirmation INTEGER NOT NULL DEFAULT 0,
    priority             INTEGER NOT NULL DEFAULT 0,
    created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_authcore_rules_enabled ON authcore_autopay_rules (enabled, priority);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authcore_autopay_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_authcore_settings",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS authcore_settings (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL DEFAULT '',
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS authcore_settings`)
				return err
			},
		},
	)
}
