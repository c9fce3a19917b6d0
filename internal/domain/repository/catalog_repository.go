package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ProductRepository puerto de consulta de productos (colaborador externo del núcleo de stock).
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	// GetByID devuelve (nil, nil) si no existe.
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}

// BinRepository puerto de consulta de bins.
type BinRepository interface {
	Create(ctx context.Context, bin *entity.Bin) error
	Exists(ctx context.Context, id string) (bool, error)
}
