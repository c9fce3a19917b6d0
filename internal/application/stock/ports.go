package stock

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para el motor de stock: estado y libro se confirman juntos o no se confirman.
// fn solo debe usar los repos recibidos; cualquier error revierte la transacción completa.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		items repository.StockItemRepository,
		ledger repository.StockTransactionRepository,
	) error) error
}
