package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockTransactionRepository = (*StockTransactionRepo)(nil)

const stockTransactionColumns = `seq, id, stock_item_id, transaction_type, quantity_change, quantity_before,
	quantity_after, user_id, notes, reference_id, created_at`

type stockTransactionRow struct {
	Seq            int64          `db:"seq"`
	ID             string         `db:"id"`
	StockItemID    string         `db:"stock_item_id"`
	Type           string         `db:"transaction_type"`
	QuantityChange int64          `db:"quantity_change"`
	QuantityBefore int64          `db:"quantity_before"`
	QuantityAfter  int64          `db:"quantity_after"`
	UserID         sql.NullString `db:"user_id"`
	Notes          sql.NullString `db:"notes"`
	ReferenceID    sql.NullString `db:"reference_id"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r stockTransactionRow) toEntity() *entity.StockTransaction {
	return &entity.StockTransaction{
		ID:             r.ID,
		Seq:            r.Seq,
		StockItemID:    r.StockItemID,
		Type:           r.Type,
		QuantityChange: r.QuantityChange,
		QuantityBefore: r.QuantityBefore,
		QuantityAfter:  r.QuantityAfter,
		UserID:         ptrString(r.UserID),
		Notes:          ptrString(r.Notes),
		ReferenceID:    ptrString(r.ReferenceID),
		CreatedAt:      r.CreatedAt,
	}
}

// StockTransactionRepo libro de stock sobre SQLite. Solo inserta; los triggers rechazan UPDATE/DELETE.
type StockTransactionRepo struct {
	q Querier
}

// NewStockTransactionRepository construye el adaptador. Pasar db o tx.
func NewStockTransactionRepository(q Querier) *StockTransactionRepo {
	return &StockTransactionRepo{q: q}
}

func (r *StockTransactionRepo) Create(ctx context.Context, txn *entity.StockTransaction) error {
	if err := txn.Validate(); err != nil {
		return err
	}
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO stock_transactions (id, stock_item_id, transaction_type, quantity_change, quantity_before,
			quantity_after, user_id, notes, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.StockItemID, txn.Type, txn.QuantityChange, txn.QuantityBefore,
		txn.QuantityAfter, nullString(txn.UserID), nullString(txn.Notes), nullString(txn.ReferenceID),
		txn.CreatedAt,
	)
	if err != nil {
		return wrapErr("create stock transaction", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return wrapErr("create stock transaction", err)
	}
	txn.Seq = seq
	return nil
}

func (r *StockTransactionRepo) GetByID(ctx context.Context, id string) (*entity.StockTransaction, error) {
	var row stockTransactionRow
	err := sqlx.GetContext(ctx, r.q, &row,
		`SELECT `+stockTransactionColumns+` FROM stock_transactions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get stock transaction", err)
	}
	return row.toEntity(), nil
}

func (r *StockTransactionRepo) ListByStockItem(ctx context.Context, stockItemID string, limit, offset int) ([]*entity.StockTransaction, error) {
	return r.list(ctx, "list by stock item", `
		SELECT `+stockTransactionColumns+` FROM stock_transactions
		WHERE stock_item_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ? OFFSET ?`, stockItemID, limit, offset)
}

func (r *StockTransactionRepo) ListByReference(ctx context.Context, referenceID string) ([]*entity.StockTransaction, error) {
	return r.list(ctx, "list by reference", `
		SELECT `+stockTransactionColumns+` FROM stock_transactions
		WHERE reference_id = ?
		ORDER BY created_at, seq`, referenceID)
}

func (r *StockTransactionRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockTransaction, error) {
	var rows []stockTransactionRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, wrapErr(op, err)
	}
	list := make([]*entity.StockTransaction, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toEntity())
	}
	return list, nil
}
