package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockTransactionRepository = (*StockTransactionRepo)(nil)

const stockTransactionColumns = `seq, id, stock_item_id, transaction_type, quantity_change, quantity_before,
	quantity_after, user_id, notes, reference_id, created_at`

// StockTransactionRepo libro de stock sobre PostgreSQL (usable con pool o tx). Solo inserta.
type StockTransactionRepo struct {
	q Querier
}

// NewStockTransactionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockTransactionRepository(q Querier) *StockTransactionRepo {
	return &StockTransactionRepo{q: q}
}

func scanStockTransaction(row pgx.Row) (*entity.StockTransaction, error) {
	var t entity.StockTransaction
	err := row.Scan(&t.Seq, &t.ID, &t.StockItemID, &t.Type, &t.QuantityChange, &t.QuantityBefore,
		&t.QuantityAfter, &t.UserID, &t.Notes, &t.ReferenceID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create persiste una transacción y completa Seq.
func (r *StockTransactionRepo) Create(ctx context.Context, txn *entity.StockTransaction) error {
	if err := txn.Validate(); err != nil {
		return err
	}
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stock_transactions (id, stock_item_id, transaction_type, quantity_change, quantity_before,
			quantity_after, user_id, notes, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`
	err := r.q.QueryRow(ctx, query,
		txn.ID, txn.StockItemID, txn.Type, txn.QuantityChange, txn.QuantityBefore,
		txn.QuantityAfter, txn.UserID, txn.Notes, txn.ReferenceID, txn.CreatedAt,
	).Scan(&txn.Seq)
	if err != nil {
		return wrapErr("create stock transaction", err)
	}
	return nil
}

// GetByID obtiene una transacción por ID.
func (r *StockTransactionRepo) GetByID(ctx context.Context, id string) (*entity.StockTransaction, error) {
	t, err := scanStockTransaction(r.q.QueryRow(ctx,
		`SELECT `+stockTransactionColumns+` FROM stock_transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get stock transaction", err)
	}
	return t, nil
}

// ListByStockItem historial de un stock item, más reciente primero.
func (r *StockTransactionRepo) ListByStockItem(ctx context.Context, stockItemID string, limit, offset int) ([]*entity.StockTransaction, error) {
	return r.list(ctx, "list by stock item", `
		SELECT `+stockTransactionColumns+` FROM stock_transactions
		WHERE stock_item_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3`, stockItemID, limit, offset)
}

// ListByReference filas que comparten reference_id, más antigua primero.
func (r *StockTransactionRepo) ListByReference(ctx context.Context, referenceID string) ([]*entity.StockTransaction, error) {
	return r.list(ctx, "list by reference", `
		SELECT `+stockTransactionColumns+` FROM stock_transactions
		WHERE reference_id = $1
		ORDER BY created_at, seq`, referenceID)
}

func (r *StockTransactionRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockTransaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	list := []*entity.StockTransaction{}
	for rows.Next() {
		t, err := scanStockTransaction(rows)
		if err != nil {
			return nil, wrapErr("scan stock transaction", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return list, nil
}
