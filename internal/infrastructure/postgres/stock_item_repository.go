package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockItemRepository = (*StockItemRepo)(nil)

const stockItemColumns = `id, product_id, bin_id, on_hand, qty_reserved, batch_id, expiry_date, created_at, updated_at`

// StockItemRepo implementación de StockItemRepository sobre PostgreSQL (usable con pool o tx).
type StockItemRepo struct {
	q Querier
}

// NewStockItemRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockItemRepository(q Querier) *StockItemRepo {
	return &StockItemRepo{q: q}
}

func scanStockItem(row pgx.Row) (*entity.StockItem, error) {
	var s entity.StockItem
	err := row.Scan(&s.ID, &s.ProductID, &s.BinID, &s.OnHand, &s.QtyReserved,
		&s.BatchID, &s.ExpiryDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StockItemRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.StockItem, error) {
	s, err := scanStockItem(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	return s, nil
}

// GetByID obtiene un stock item por ID.
func (r *StockItemRepo) GetByID(ctx context.Context, id string) (*entity.StockItem, error) {
	return r.getOne(ctx, "get stock item",
		`SELECT `+stockItemColumns+` FROM stock_items WHERE id = $1`, id)
}

// GetByIDForUpdate obtiene el stock item y bloquea la fila (SELECT FOR UPDATE).
func (r *StockItemRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.StockItem, error) {
	return r.getOne(ctx, "get stock item for update",
		`SELECT `+stockItemColumns+` FROM stock_items WHERE id = $1 FOR UPDATE`, id)
}

// GetByProductAndBin obtiene la fila sin lote de un producto en un bin.
func (r *StockItemRepo) GetByProductAndBin(ctx context.Context, productID, binID string) (*entity.StockItem, error) {
	return r.getOne(ctx, "get stock item by product and bin",
		`SELECT `+stockItemColumns+` FROM stock_items
		WHERE product_id = $1 AND bin_id = $2 AND batch_id IS NULL`, productID, binID)
}

// GetByProductAndBinForUpdate como GetByProductAndBin pero bloqueando la fila.
func (r *StockItemRepo) GetByProductAndBinForUpdate(ctx context.Context, productID, binID string) (*entity.StockItem, error) {
	return r.getOne(ctx, "get stock item by product and bin for update",
		`SELECT `+stockItemColumns+` FROM stock_items
		WHERE product_id = $1 AND bin_id = $2 AND batch_id IS NULL
		FOR UPDATE`, productID, binID)
}

// FindLot obtiene la fila más antigua de (producto, bin, lote) sin bloquearla.
func (r *StockItemRepo) FindLot(ctx context.Context, productID, binID string, batchID *string) (*entity.StockItem, error) {
	return r.getOne(ctx, "find lot",
		`SELECT `+stockItemColumns+` FROM stock_items
		WHERE product_id = $1 AND bin_id = $2 AND batch_id IS NOT DISTINCT FROM $3::text
		ORDER BY created_at, id
		LIMIT 1`, productID, binID, batchID)
}

// FindLotForUpdate bloquea la fila más antigua de (producto, bin, lote).
func (r *StockItemRepo) FindLotForUpdate(ctx context.Context, productID, binID string, batchID *string) (*entity.StockItem, error) {
	return r.getOne(ctx, "find lot for update",
		`SELECT `+stockItemColumns+` FROM stock_items
		WHERE product_id = $1 AND bin_id = $2 AND batch_id IS NOT DISTINCT FROM $3::text
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE`, productID, binID, batchID)
}

// LockByIDs bloquea las filas indicadas en orden ascendente de id.
func (r *StockItemRepo) LockByIDs(ctx context.Context, ids ...string) ([]*entity.StockItem, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+stockItemColumns+` FROM stock_items
		WHERE id = ANY($1::text[])
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, wrapErr("lock stock items", err)
	}
	defer rows.Close()
	var list []*entity.StockItem
	for rows.Next() {
		s, err := scanStockItem(rows)
		if err != nil {
			return nil, wrapErr("scan stock item", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("lock stock items", err)
	}
	return list, nil
}

// LockLot toma un advisory lock de transacción sobre la clave (producto, bin, lote).
func (r *StockItemRepo) LockLot(ctx context.Context, productID, binID, batchID string) error {
	key := productID + "|" + binID + "|" + batchID
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return wrapErr("lock lot", err)
	}
	return nil
}

// Create inserta un stock item. ON CONFLICT DO NOTHING evita abortar la tx cuando otra
// transacción ganó la creación de la fila sin lote; en ese caso devuelve domain.ErrDuplicate.
func (r *StockItemRepo) Create(ctx context.Context, item *entity.StockItem) error {
	if err := item.CheckInvariants(); err != nil {
		return err
	}
	query := `
		INSERT INTO stock_items (id, product_id, bin_id, on_hand, qty_reserved, batch_id, expiry_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`
	cmd, err := r.q.Exec(ctx, query,
		item.ID, item.ProductID, item.BinID, item.OnHand, item.QtyReserved,
		item.BatchID, item.ExpiryDate, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return wrapErr("insert stock item", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// UpdateStock actualiza on_hand y/o qty_reserved (ajustados a >= 0) y devuelve la fila resultante.
// La restricción reserved <= on_hand se valida aquí y en el CHECK de la tabla.
func (r *StockItemRepo) UpdateStock(ctx context.Context, id string, upd entity.StockUpdate) (*entity.StockItem, error) {
	upd = upd.Clamped()
	if upd.OnHand != nil && upd.QtyReserved != nil {
		if err := entity.CheckQuantities(*upd.OnHand, *upd.QtyReserved); err != nil {
			return nil, err
		}
	}
	query := `
		UPDATE stock_items
		SET on_hand      = COALESCE($2::bigint, on_hand),
		    qty_reserved = COALESCE($3::bigint, qty_reserved),
		    updated_at   = now()
		WHERE id = $1
		RETURNING ` + stockItemColumns
	s, err := scanStockItem(r.q.QueryRow(ctx, query, id, upd.OnHand, upd.QtyReserved))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("stock item", id)
		}
		return nil, wrapErr("update stock item", err)
	}
	return s, nil
}

// Delete elimina un stock item vacío. Una fila con cantidades no se borra.
func (r *StockItemRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx,
		`DELETE FROM stock_items WHERE id = $1 AND on_hand = 0 AND qty_reserved = 0`, id)
	if err != nil {
		return wrapErr("delete stock item", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrInvariantViolation
	}
	return nil
}
