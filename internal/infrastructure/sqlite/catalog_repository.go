package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.ProductRepository = (*ProductRepo)(nil)
	_ repository.BinRepository     = (*BinRepo)(nil)
)

type productRow struct {
	ID           string    `db:"id"`
	SKU          string    `db:"sku"`
	Name         string    `db:"name"`
	BatchTracked bool      `db:"batch_tracked"`
	CreatedAt    time.Time `db:"created_at"`
}

// ProductRepo consulta de productos sobre SQLite.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de productos.
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO products (id, sku, name, batch_tracked, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.SKU, p.Name, p.BatchTracked, p.CreatedAt)
	return wrapErr("insert product", err)
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.q, &row,
		`SELECT id, sku, name, batch_tracked, created_at FROM products WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get product", err)
	}
	return &entity.Product{
		ID:           row.ID,
		SKU:          row.SKU,
		Name:         row.Name,
		BatchTracked: row.BatchTracked,
		CreatedAt:    row.CreatedAt,
	}, nil
}

// BinRepo consulta de bins sobre SQLite.
type BinRepo struct {
	q Querier
}

// NewBinRepository construye el adaptador de bins.
func NewBinRepository(q Querier) *BinRepo {
	return &BinRepo{q: q}
}

func (r *BinRepo) Create(ctx context.Context, b *entity.Bin) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO bins (id, code, created_at) VALUES (?, ?, ?)`, b.ID, b.Code, b.CreatedAt)
	return wrapErr("insert bin", err)
}

func (r *BinRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, r.q, &exists, `SELECT EXISTS (SELECT 1 FROM bins WHERE id = ?)`, id); err != nil {
		return false, wrapErr("bin exists", err)
	}
	return exists, nil
}
