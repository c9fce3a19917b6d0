package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.ProductRepository = (*ProductRepo)(nil)
	_ repository.BinRepository     = (*BinRepo)(nil)
)

// ProductRepo consulta de productos sobre PostgreSQL.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un producto.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO products (id, sku, name, batch_tracked, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.SKU, p.Name, p.BatchTracked, p.CreatedAt)
	return wrapErr("insert product", err)
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	err := r.q.QueryRow(ctx,
		`SELECT id, sku, name, batch_tracked, created_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.BatchTracked, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get product", err)
	}
	return &p, nil
}

// BinRepo consulta de bins sobre PostgreSQL.
type BinRepo struct {
	q Querier
}

// NewBinRepository construye el adaptador de bins.
func NewBinRepository(q Querier) *BinRepo {
	return &BinRepo{q: q}
}

// Create persiste un bin.
func (r *BinRepo) Create(ctx context.Context, b *entity.Bin) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO bins (id, code, created_at) VALUES ($1, $2, $3)`,
		b.ID, b.Code, b.CreatedAt)
	return wrapErr("insert bin", err)
}

// Exists indica si el bin existe.
func (r *BinRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bins WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, wrapErr("bin exists", err)
	}
	return exists, nil
}
