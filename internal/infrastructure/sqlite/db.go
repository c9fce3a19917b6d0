// Package sqlite implementa los puertos de stock sobre SQLite (sqlx + go-sqlite3).
// Pensado para despliegues embebidos, desarrollo local y tests. SQLite no tiene
// SELECT ... FOR UPDATE: cada transacción se abre con BEGIN IMMEDIATE (_txlock=immediate),
// lo que serializa a los escritores y cubre el mismo contrato que el bloqueo de fila.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	sku           TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	batch_tracked BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS bins (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_items (
	id           TEXT PRIMARY KEY,
	product_id   TEXT NOT NULL REFERENCES products(id),
	bin_id       TEXT NOT NULL REFERENCES bins(id),
	on_hand      INTEGER NOT NULL DEFAULT 0,
	qty_reserved INTEGER NOT NULL DEFAULT 0,
	batch_id     TEXT,
	expiry_date  DATE,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	CHECK (on_hand >= 0 AND qty_reserved >= 0 AND qty_reserved <= on_hand)
);

CREATE UNIQUE INDEX IF NOT EXISTS stock_items_product_bin_unbatched_uq
	ON stock_items (product_id, bin_id) WHERE batch_id IS NULL;
CREATE INDEX IF NOT EXISTS stock_items_product_bin_idx ON stock_items (product_id, bin_id);

CREATE TABLE IF NOT EXISTS stock_transactions (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	id               TEXT NOT NULL UNIQUE,
	stock_item_id    TEXT NOT NULL,
	transaction_type TEXT NOT NULL
		CHECK (transaction_type IN ('receive','ship','adjust','transfer','reserve','release','cycle_count')),
	quantity_change  INTEGER NOT NULL,
	quantity_before  INTEGER NOT NULL,
	quantity_after   INTEGER NOT NULL,
	user_id          TEXT,
	notes            TEXT,
	reference_id     TEXT,
	created_at       DATETIME NOT NULL,
	CHECK (quantity_change <> 0 AND quantity_after = quantity_before + quantity_change)
);

CREATE INDEX IF NOT EXISTS stock_transactions_item_idx
	ON stock_transactions (stock_item_id, created_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS stock_transactions_reference_idx ON stock_transactions (reference_id);

CREATE TRIGGER IF NOT EXISTS stock_transactions_no_update
	BEFORE UPDATE ON stock_transactions
BEGIN
	SELECT RAISE(ABORT, 'stock_transactions es de solo inserción');
END;

CREATE TRIGGER IF NOT EXISTS stock_transactions_no_delete
	BEFORE DELETE ON stock_transactions
BEGIN
	SELECT RAISE(ABORT, 'stock_transactions es de solo inserción');
END;
`

// Open abre (o crea) la base SQLite en path y aplica el esquema.
// Una única conexión: SQLite admite un solo escritor y así ":memory:" comparte la misma base.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate aplica el esquema (idempotente).
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// wrapErr traduce errores de go-sqlite3 al modelo de errores de dominio.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.ExtendedCode {
		case sqlite3.ErrConstraintCheck:
			return domain.ErrInvariantViolation
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return domain.ErrDuplicate
		}
	}
	return domain.NewPersistence(op, err)
}
