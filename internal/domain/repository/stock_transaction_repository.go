package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockTransactionRepository define el puerto del libro de stock (solo inserción).
// No existe Update ni Delete: una corrección es una transacción nueva.
type StockTransactionRepository interface {
	Create(ctx context.Context, txn *entity.StockTransaction) error
	GetByID(ctx context.Context, id string) (*entity.StockTransaction, error)
	// ListByStockItem devuelve el historial más reciente primero (created_at DESC, seq DESC).
	ListByStockItem(ctx context.Context, stockItemID string, limit, offset int) ([]*entity.StockTransaction, error)
	// ListByReference devuelve las filas de un mismo evento, más antigua primero.
	ListByReference(ctx context.Context, referenceID string) ([]*entity.StockTransaction, error)
}
