// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customer_avatars (
		id                     BIGSERIAL PRIMARY KEY,
		remote_customer_id     BIGINT NOT NULL UNIQUE,
		name                   TEXT,
		email                  TEXT,
		phone                  TEXT,
		city                   TEXT,
		first_order_date       TIMESTAMPTZ,
		last_order_date        TIMESTAMPTZ,
		total_orders           INTEGER NOT NULL DEFAULT 0,
		total_revenue          NUMERIC(18,2) NOT NULL DEFAULT 0,
		avg_order_value        NUMERIC(18,2) NOT NULL DEFAULT 0,
		order_frequency_days   INTEGER,
		days_since_last_order  INTEGER NOT NULL DEFAULT 0,
		health_score           SMALLINT NOT NULL DEFAULT 0 CHECK (health_score BETWEEN 0 AND 100),
		churn_risk_score       SMALLINT NOT NULL DEFAULT 0 CHECK (churn_risk_score BETWEEN 0 AND 100),
		upsell_potential_score SMALLINT NOT NULL DEFAULT 0 CHECK (upsell_potential_score BETWEEN 0 AND 100),
		engagement_score       SMALLINT NOT NULL DEFAULT 0 CHECK (engagement_score BETWEEN 0 AND 100),
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_synced_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_customer_avatars_churn ON customer_avatars (churn_risk_score DESC)`,
	`CREATE TABLE IF NOT EXISTS sale_orders (
		id                 BIGSERIAL PRIMARY KEY,
		remote_order_id    BIGINT NOT NULL UNIQUE,
		customer_avatar_id BIGINT REFERENCES customer_avatars(id) ON DELETE SET NULL,
		remote_customer_id BIGINT,
		order_name         TEXT NOT NULL,
		order_date         TIMESTAMPTZ,
		amount_total       NUMERIC(18,2) NOT NULL DEFAULT 0,
		state              TEXT NOT NULL,
		salesperson_id     BIGINT,
		salesperson_name   TEXT,
		last_synced_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sale_orders_remote_customer ON sale_orders (remote_customer_id, order_date DESC)`,
	`CREATE TABLE IF NOT EXISTS sale_order_lines (
		id               BIGSERIAL PRIMARY KEY,
		order_id         BIGINT NOT NULL REFERENCES sale_orders(id) ON DELETE CASCADE,
		remote_line_id   BIGINT NOT NULL,
		product_id       BIGINT,
		product_name     TEXT NOT NULL DEFAULT '',
		product_code     TEXT,
		product_category TEXT,
		quantity         NUMERIC(18,4) NOT NULL DEFAULT 0,
		unit_price       NUMERIC(18,4) NOT NULL DEFAULT 0,
		subtotal         NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (order_id, remote_line_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id            TEXT PRIMARY KEY,
		kind          TEXT NOT NULL,
		status        TEXT NOT NULL,
		params        JSONB,
		counters      JSONB,
		errors        JSONB,
		error_message TEXT,
		triggered_by  BIGINT,
		started_at    TIMESTAMPTZ NOT NULL,
		completed_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs (started_at DESC)`,
}

// EnsureSchema creates the local tables when missing. Safe to run on every start.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
