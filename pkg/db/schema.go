package db

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSchema creates the coupons table when it does not exist yet.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS coupons (
	id                  SERIAL PRIMARY KEY,
	code                VARCHAR(6) NOT NULL UNIQUE,
	status              TEXT NOT NULL DEFAULT 'active',
	created_date        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	used_date           TIMESTAMPTZ,
	scratched_date      TIMESTAMPTZ,
	employee_code       TEXT,
	store_location      TEXT,
	is_scratched        BOOLEAN NOT NULL DEFAULT FALSE,
	shopify_discount_id TEXT,
	shopify_synced      BOOLEAN NOT NULL DEFAULT FALSE,
	shopify_status      TEXT
);
CREATE INDEX IF NOT EXISTS idx_coupons_shopify_discount_id ON coupons (shopify_discount_id);
CREATE INDEX IF NOT EXISTS idx_coupons_status ON coupons (status);
`

func EnsureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
