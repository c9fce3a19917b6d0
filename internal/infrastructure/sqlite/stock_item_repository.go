package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockItemRepository = (*StockItemRepo)(nil)

// Querier abstrae *sqlx.DB y *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
}

const stockItemColumns = `id, product_id, bin_id, on_hand, qty_reserved, batch_id, expiry_date, created_at, updated_at`

type stockItemRow struct {
	ID          string         `db:"id"`
	ProductID   string         `db:"product_id"`
	BinID       string         `db:"bin_id"`
	OnHand      int64          `db:"on_hand"`
	QtyReserved int64          `db:"qty_reserved"`
	BatchID     sql.NullString `db:"batch_id"`
	ExpiryDate  sql.NullTime   `db:"expiry_date"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r stockItemRow) toEntity() *entity.StockItem {
	s := &entity.StockItem{
		ID:          r.ID,
		ProductID:   r.ProductID,
		BinID:       r.BinID,
		OnHand:      r.OnHand,
		QtyReserved: r.QtyReserved,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.BatchID.Valid {
		b := r.BatchID.String
		s.BatchID = &b
	}
	if r.ExpiryDate.Valid {
		d := r.ExpiryDate.Time
		s.ExpiryDate = &d
	}
	return s
}

// StockItemRepo implementación de StockItemRepository sobre SQLite (usable con db o tx).
// Los métodos *ForUpdate no bloquean por sí mismos: la tx BEGIN IMMEDIATE ya tiene el lock de escritura.
type StockItemRepo struct {
	q Querier
}

// NewStockItemRepository construye el adaptador. Pasar db o tx.
func NewStockItemRepository(q Querier) *StockItemRepo {
	return &StockItemRepo{q: q}
}

func (r *StockItemRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.StockItem, error) {
	var row stockItemRow
	if err := sqlx.GetContext(ctx, r.q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	return row.toEntity(), nil
}

func (r *StockItemRepo) GetByID(ctx context.Context, id string) (*entity.StockItem, error) {
	return r.getOne(ctx, "get stock item",
		`SELECT `+stockItemColumns+` FROM stock_items WHERE id = ?`, id)
}

func (r *StockItemRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.StockItem, error) {
	return r.GetByID(ctx, id)
}

func (r *StockItemRepo) GetByProductAndBin(ctx context.Context, productID, binID string) (*entity.StockItem, error) {
	return r.getOne(ctx, "get stock item by product and bin",
		`SELECT `+stockItemColumns+` FROM stock_items
		WHERE product_id = ? AND bin_id = ? AND batch_id IS NULL`, productID, binID)
}

func (r *StockItemRepo) GetByProductAndBinForUpdate(ctx context.Context, productID, binID string) (*entity.StockItem, error) {
	return r.GetByProductAndBin(ctx, productID, binID)
}

func (r *StockItemRepo) FindLotForUpdate(ctx context.Context, productID, binID string, batchID *string) (*entity.StockItem, error) {
	return r.FindLot(ctx, productID, binID, batchID)
}

func (r *StockItemRepo) FindLot(ctx context.Context, productID, binID string, batchID *string) (*entity.StockItem, error) {
	return r.getOne(ctx, "find lot",
		`SELECT `+stockItemColumns+` FROM stock_items
		WHERE product_id = ? AND bin_id = ? AND batch_id IS ?
		ORDER BY created_at, id
		LIMIT 1`, productID, binID, nullString(batchID))
}

// LockLot no hace nada: BEGIN IMMEDIATE ya serializa a los escritores.
func (r *StockItemRepo) LockLot(context.Context, string, string, string) error {
	return nil
}

func (r *StockItemRepo) LockByIDs(ctx context.Context, ids ...string) ([]*entity.StockItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+stockItemColumns+` FROM stock_items WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, wrapErr("lock stock items", err)
	}
	var rows []stockItemRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(query), args...); err != nil {
		return nil, wrapErr("lock stock items", err)
	}
	list := make([]*entity.StockItem, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toEntity())
	}
	return list, nil
}

func (r *StockItemRepo) Create(ctx context.Context, item *entity.StockItem) error {
	if err := item.CheckInvariants(); err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO stock_items (id, product_id, bin_id, on_hand, qty_reserved, batch_id, expiry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		item.ID, item.ProductID, item.BinID, item.OnHand, item.QtyReserved,
		nullString(item.BatchID), nullTime(item.ExpiryDate), item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert stock item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("insert stock item", err)
	}
	if n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

func (r *StockItemRepo) UpdateStock(ctx context.Context, id string, upd entity.StockUpdate) (*entity.StockItem, error) {
	upd = upd.Clamped()
	if upd.OnHand != nil && upd.QtyReserved != nil {
		if err := entity.CheckQuantities(*upd.OnHand, *upd.QtyReserved); err != nil {
			return nil, err
		}
	}
	// Sin RETURNING: las columnas devueltas pierden el tipo declarado y DATETIME no se convierte a time.Time.
	res, err := r.q.ExecContext(ctx, `
		UPDATE stock_items
		SET on_hand      = COALESCE(?, on_hand),
		    qty_reserved = COALESCE(?, qty_reserved),
		    updated_at   = ?
		WHERE id = ?`,
		nullInt(upd.OnHand), nullInt(upd.QtyReserved), time.Now().UTC(), id)
	if err != nil {
		return nil, wrapErr("update stock item", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, wrapErr("update stock item", err)
	} else if n == 0 {
		return nil, domain.NewNotFound("stock item", id)
	}
	return r.GetByID(ctx, id)
}

func (r *StockItemRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM stock_items WHERE id = ? AND on_hand = 0 AND qty_reserved = 0`, id)
	if err != nil {
		return wrapErr("delete stock item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("delete stock item", err)
	}
	if n == 0 {
		return domain.ErrInvariantViolation
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func ptrString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
