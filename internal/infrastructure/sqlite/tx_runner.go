package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ stock.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción SQLite (BEGIN IMMEDIATE vía DSN).
type TxRunner struct {
	db *sqlx.DB
}

// NewTxRunner construye el runner.
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// Run inicia la transacción, ejecuta fn con repos atados a ella y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	items repository.StockItemRepository,
	ledger repository.StockTransactionRepository,
) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.NewPersistence("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(NewStockItemRepository(tx), NewStockTransactionRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.NewPersistence("commit transaction", err)
	}
	return nil
}
