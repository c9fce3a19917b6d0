package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockItemRepository define el puerto de persistencia del estado actual de stock.
// Los métodos *ForUpdate bloquean la fila hasta el fin de la transacción; solo tienen
// sentido sobre un repositorio atado a una tx (ver TxRunner).
// Los métodos Get* devuelven (nil, nil) si la fila no existe.
type StockItemRepository interface {
	GetByID(ctx context.Context, id string) (*entity.StockItem, error)
	GetByIDForUpdate(ctx context.Context, id string) (*entity.StockItem, error)

	// GetByProductAndBin devuelve la fila sin lote de (producto, bin).
	GetByProductAndBin(ctx context.Context, productID, binID string) (*entity.StockItem, error)
	GetByProductAndBinForUpdate(ctx context.Context, productID, binID string) (*entity.StockItem, error)

	// FindLot busca la fila más antigua de (producto, bin, lote); batchID nil = fila sin lote.
	FindLot(ctx context.Context, productID, binID string, batchID *string) (*entity.StockItem, error)
	FindLotForUpdate(ctx context.Context, productID, binID string, batchID *string) (*entity.StockItem, error)

	// LockLot serializa hasta el fin de la transacción la creación de filas con lote de
	// (producto, bin, lote). Las filas con lote no tienen índice único que lo haga.
	LockLot(ctx context.Context, productID, binID, batchID string) error

	// LockByIDs bloquea las filas en orden ascendente de id (evita deadlocks entre traslados cruzados).
	LockByIDs(ctx context.Context, ids ...string) ([]*entity.StockItem, error)

	// Create inserta la fila; devuelve domain.ErrDuplicate si ya existe una fila sin lote
	// para (producto, bin), sin abortar la transacción en curso.
	Create(ctx context.Context, item *entity.StockItem) error

	// UpdateStock ajusta los campos presentes a >= 0, exige reserved <= on_hand
	// (domain.ErrInvariantViolation) y devuelve la fila resultante.
	UpdateStock(ctx context.Context, id string, upd entity.StockUpdate) (*entity.StockItem, error)

	// Delete elimina una fila vacía (on_hand = 0 y reserved = 0); solo la usa la política purge.
	Delete(ctx context.Context, id string) error
}
