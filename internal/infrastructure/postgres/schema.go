package postgres

import (
	"context"
	"fmt"
)

// schema crea las tablas del núcleo de stock. stock_transactions no tiene FK a stock_items:
// el historial debe sobrevivir a la política purge. Un trigger impide UPDATE/DELETE del libro.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	sku           TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	batch_tracked BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bins (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS stock_items (
	id           TEXT PRIMARY KEY,
	product_id   TEXT NOT NULL REFERENCES products(id),
	bin_id       TEXT NOT NULL REFERENCES bins(id),
	on_hand      BIGINT NOT NULL DEFAULT 0,
	qty_reserved BIGINT NOT NULL DEFAULT 0,
	batch_id     TEXT,
	expiry_date  DATE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT stock_items_quantities_chk
		CHECK (on_hand >= 0 AND qty_reserved >= 0 AND qty_reserved <= on_hand)
);

CREATE UNIQUE INDEX IF NOT EXISTS stock_items_product_bin_unbatched_uq
	ON stock_items (product_id, bin_id) WHERE batch_id IS NULL;
CREATE INDEX IF NOT EXISTS stock_items_product_bin_idx ON stock_items (product_id, bin_id);

CREATE TABLE IF NOT EXISTS stock_transactions (
	seq              BIGSERIAL PRIMARY KEY,
	id               TEXT NOT NULL UNIQUE,
	stock_item_id    TEXT NOT NULL,
	transaction_type TEXT NOT NULL
		CHECK (transaction_type IN ('receive','ship','adjust','transfer','reserve','release','cycle_count')),
	quantity_change  BIGINT NOT NULL,
	quantity_before  BIGINT NOT NULL,
	quantity_after   BIGINT NOT NULL,
	user_id          TEXT,
	notes            TEXT,
	reference_id     TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT stock_transactions_ledger_chk
		CHECK (quantity_change <> 0 AND quantity_after = quantity_before + quantity_change)
);

CREATE INDEX IF NOT EXISTS stock_transactions_item_idx
	ON stock_transactions (stock_item_id, created_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS stock_transactions_reference_idx
	ON stock_transactions (reference_id) WHERE reference_id IS NOT NULL;

CREATE OR REPLACE FUNCTION stock_transactions_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'stock_transactions es de solo inserción';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS stock_transactions_append_only_trg ON stock_transactions;
CREATE TRIGGER stock_transactions_append_only_trg
	BEFORE UPDATE OR DELETE ON stock_transactions
	FOR EACH ROW EXECUTE FUNCTION stock_transactions_append_only();
`

// Migrate aplica el esquema (idempotente).
func Migrate(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
