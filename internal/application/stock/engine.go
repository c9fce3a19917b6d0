package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// EmptyRowPolicy qué hacer con un stock item que queda con on_hand = 0 y reserved = 0.
type EmptyRowPolicy string

const (
	// EmptyRowRetain conserva la fila en cero (comportamiento por defecto).
	EmptyRowRetain EmptyRowPolicy = "retain"
	// EmptyRowPurge elimina la fila; el historial se conserva en el libro.
	EmptyRowPurge EmptyRowPolicy = "purge"
)

// ParseEmptyRowPolicy valida el valor de configuración. Vacío = retain.
func ParseEmptyRowPolicy(s string) (EmptyRowPolicy, error) {
	switch EmptyRowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", EmptyRowRetain:
		return EmptyRowRetain, nil
	case EmptyRowPurge:
		return EmptyRowPurge, nil
	}
	return "", fmt.Errorf("política de filas vacías desconocida: %q", s)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Options ajustes del motor. Clock y NewID se inyectan en tests.
type Options struct {
	EmptyRowPolicy EmptyRowPolicy
	Clock          func() time.Time
	NewID          func() string
}

// MovementEngine motor de movimientos de stock: recepción, reserva, liberación, traslado,
// despacho, ajuste, conteo cíclico y reversión. Cada operación corre en una única transacción
// (TxRunner) que bloquea las filas involucradas antes de leerlas y escribe estado y libro juntos.
type MovementEngine struct {
	txRunner TxRunner
	items    repository.StockItemRepository
	ledger   repository.StockTransactionRepository
	products repository.ProductRepository
	bins     repository.BinRepository
	resolver *BatchPolicyResolver
	log      *logger.Logger
	policy   EmptyRowPolicy
	now      func() time.Time
	newID    func() string
}

// NewMovementEngine construye el motor. items y ledger son repos fuera de transacción (solo lecturas).
func NewMovementEngine(
	txRunner TxRunner,
	items repository.StockItemRepository,
	ledger repository.StockTransactionRepository,
	products repository.ProductRepository,
	bins repository.BinRepository,
	log *logger.Logger,
	opts Options,
) *MovementEngine {
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.EmptyRowPolicy == "" {
		opts.EmptyRowPolicy = EmptyRowRetain
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MovementEngine{
		txRunner: txRunner,
		items:    items,
		ledger:   ledger,
		products: products,
		bins:     bins,
		resolver: NewBatchPolicyResolver(opts.Clock, opts.NewID),
		log:      log,
		policy:   opts.EmptyRowPolicy,
		now:      opts.Clock,
		newID:    opts.NewID,
	}
}

// ReceiveInput entrada de mercancía a un bin.
type ReceiveInput struct {
	ProductID    string
	BinID        string
	QtyAvailable int64
	QtyReserved  int64
	BatchID      *string
	ExpiryDate   *time.Time
	UserID       string
	Notes        *string
}

// ReceiveResult fila donde quedó la mercancía y si se creó o se fusionó.
type ReceiveResult struct {
	StockItemID string
	Action      LotAction
	StockItem   *entity.StockItem
	Transaction *entity.StockTransaction
}

// MovementResult estado resultante de una operación sobre un único stock item.
// Transaction es nil cuando no hubo cambio (conteo sin diferencia); Purged indica que la
// fila quedó vacía y se eliminó por la política purge (StockItem es su último estado).
type MovementResult struct {
	StockItem   *entity.StockItem
	Transaction *entity.StockTransaction
	Purged      bool
}

// TransferInput traslado desde un stock item hacia otro bin.
// Quantity sale del disponible; ReservedQuantity sale de lo reservado y llega reservado.
type TransferInput struct {
	SourceStockItemID string
	DestBinID         string
	Quantity          int64
	ReservedQuantity  int64
	UserID            string
	Notes             *string
}

// TransferResult ambas patas del traslado, correlacionadas por ReferenceID.
type TransferResult struct {
	Success           bool
	SourceStockID     string
	DestStockID       string
	Quantity          int64
	ReservedQuantity  int64
	SourceDeallocated bool
	SourcePurged      bool
	ReferenceID       string
	Source            *entity.StockItem
	Destination       *entity.StockItem
	Transactions      []*entity.StockTransaction
}

// ---------------------------------------------------------------------------
// Recepción
// ---------------------------------------------------------------------------

// Receive registra mercancía entrante. La política de lotes decide si se fusiona con la
// fila existente de (producto, bin) o abre un lote nuevo. Las unidades recibidas ya
// reservadas también son físicas: on_hand += QtyAvailable + QtyReserved.
func (e *MovementEngine) Receive(ctx context.Context, in ReceiveInput) (*ReceiveResult, error) {
	if err := requireID("product_id", in.ProductID); err != nil {
		return nil, err
	}
	if err := requireID("bin_id", in.BinID); err != nil {
		return nil, err
	}
	if in.QtyAvailable < 0 {
		return nil, domain.NewValidation("qty_available", "no puede ser negativa")
	}
	if in.QtyReserved < 0 {
		return nil, domain.NewValidation("qty_reserved", "no puede ser negativa")
	}
	total := in.QtyAvailable + in.QtyReserved
	if total == 0 {
		return nil, domain.NewValidation("qty_available", "la recepción debe tener al menos una unidad")
	}

	product, err := e.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.NewNotFound("product", in.ProductID)
	}
	if err := e.requireBin(ctx, in.BinID); err != nil {
		return nil, err
	}

	req := LotRequest{
		ProductID: in.ProductID,
		BinID:     in.BinID,
		OnHand:    total,
		Reserved:  in.QtyReserved,
	}
	if product.BatchTracked {
		req.BatchID = in.BatchID
		req.ExpiryDate = in.ExpiryDate
	}

	var out *ReceiveResult
	err = e.txRunner.Run(ctx, func(items repository.StockItemRepository, ledger repository.StockTransactionRepository) error {
		res, err := e.resolver.Resolve(ctx, items, product, req)
		if err != nil {
			return err
		}
		txn := e.newTransaction(res.StockItem.ID, entity.TransactionTypeReceive,
			res.OnHandBefore, res.StockItem.OnHand, in.UserID, in.Notes, nil)
		if err := ledger.Create(ctx, txn); err != nil {
			return err
		}
		out = &ReceiveResult{
			StockItemID: res.StockItem.ID,
			Action:      res.Action,
			StockItem:   res.StockItem,
			Transaction: txn,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logMovement(out.Transaction, out.StockItem)
	return out, nil
}

// ---------------------------------------------------------------------------
// Reserva / liberación
// ---------------------------------------------------------------------------

// Reserve aparta quantity unidades del disponible. on_hand no cambia; el libro registra
// un movimiento negativo del pool disponible.
func (e *MovementEngine) Reserve(ctx context.Context, stockItemID string, quantity int64, userID string, referenceID *string) (*MovementResult, error) {
	if err := requireID("stock_item_id", stockItemID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, domain.NewValidation("quantity", "debe ser mayor que cero")
	}
	return e.mutateOne(ctx, stockItemID, func(item *entity.StockItem, _ repository.StockTransactionRepository) (*plannedChange, error) {
		return planReserve(item, quantity, userID, nil, referenceID)
	})
}

// Release devuelve al disponible hasta quantity unidades reservadas (acotado a lo reservado).
// El libro registra la cantidad efectivamente liberada.
func (e *MovementEngine) Release(ctx context.Context, stockItemID string, quantity int64, userID string, referenceID *string) (*MovementResult, error) {
	if err := requireID("stock_item_id", stockItemID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, domain.NewValidation("quantity", "debe ser mayor que cero")
	}
	return e.mutateOne(ctx, stockItemID, func(item *entity.StockItem, _ repository.StockTransactionRepository) (*plannedChange, error) {
		released := min(quantity, item.QtyReserved)
		if released == 0 {
			return nil, &domain.InsufficientStockError{
				StockItemID: item.ID, Pool: domain.PoolReserved, Requested: quantity, Available: 0,
			}
		}
		return planRelease(item, released, userID, nil, referenceID), nil
	})
}

func planReserve(item *entity.StockItem, quantity int64, userID string, notes, referenceID *string) (*plannedChange, error) {
	if item.Available() < quantity {
		return nil, &domain.InsufficientStockError{
			StockItemID: item.ID, Pool: domain.PoolAvailable, Requested: quantity, Available: item.Available(),
		}
	}
	return &plannedChange{
		onHand:      item.OnHand,
		reserved:    item.QtyReserved + quantity,
		txnType:     entity.TransactionTypeReserve,
		before:      item.Available(),
		after:       item.Available() - quantity,
		userID:      userID,
		notes:       notes,
		referenceID: referenceID,
	}, nil
}

func planRelease(item *entity.StockItem, quantity int64, userID string, notes, referenceID *string) *plannedChange {
	return &plannedChange{
		onHand:      item.OnHand,
		reserved:    item.QtyReserved - quantity,
		txnType:     entity.TransactionTypeRelease,
		before:      item.Available(),
		after:       item.Available() + quantity,
		userID:      userID,
		notes:       notes,
		referenceID: referenceID,
	}
}

// ---------------------------------------------------------------------------
// Despacho, ajuste y conteo cíclico
// ---------------------------------------------------------------------------

// ShipInput salida de mercancía del almacén.
// FromReserved consume una reserva previa (p. ej. el pedido que la originó).
type ShipInput struct {
	StockItemID  string
	Quantity     int64
	FromReserved bool
	UserID       string
	ReferenceID  *string
	Notes        *string
}

// Ship descuenta on_hand por mercancía que sale del almacén.
func (e *MovementEngine) Ship(ctx context.Context, in ShipInput) (*MovementResult, error) {
	if err := requireID("stock_item_id", in.StockItemID); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, domain.NewValidation("quantity", "debe ser mayor que cero")
	}
	return e.mutateOne(ctx, in.StockItemID, func(item *entity.StockItem, _ repository.StockTransactionRepository) (*plannedChange, error) {
		reserved := item.QtyReserved
		if in.FromReserved {
			if item.QtyReserved < in.Quantity {
				return nil, &domain.InsufficientStockError{
					StockItemID: item.ID, Pool: domain.PoolReserved, Requested: in.Quantity, Available: item.QtyReserved,
				}
			}
			reserved -= in.Quantity
		} else if item.Available() < in.Quantity {
			return nil, &domain.InsufficientStockError{
				StockItemID: item.ID, Pool: domain.PoolAvailable, Requested: in.Quantity, Available: item.Available(),
			}
		}
		return &plannedChange{
			onHand:      item.OnHand - in.Quantity,
			reserved:    reserved,
			txnType:     entity.TransactionTypeShip,
			before:      item.OnHand,
			after:       item.OnHand - in.Quantity,
			userID:      in.UserID,
			notes:       in.Notes,
			referenceID: in.ReferenceID,
		}, nil
	})
}

// Adjust corrige on_hand en delta unidades (mercancía dañada, encontrada, etc.).
// Un ajuste negativo no puede tocar lo reservado.
func (e *MovementEngine) Adjust(ctx context.Context, stockItemID string, delta int64, userID string, notes *string) (*MovementResult, error) {
	if err := requireID("stock_item_id", stockItemID); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, domain.NewValidation("quantity_change", "no puede ser cero")
	}
	return e.mutateOne(ctx, stockItemID, func(item *entity.StockItem, _ repository.StockTransactionRepository) (*plannedChange, error) {
		return planAdjust(item, delta, userID, notes, nil)
	})
}

func planAdjust(item *entity.StockItem, delta int64, userID string, notes, referenceID *string) (*plannedChange, error) {
	if delta < 0 && item.Available() < -delta {
		return nil, &domain.InsufficientStockError{
			StockItemID: item.ID, Pool: domain.PoolAvailable, Requested: -delta, Available: item.Available(),
		}
	}
	return &plannedChange{
		onHand:      item.OnHand + delta,
		reserved:    item.QtyReserved,
		txnType:     entity.TransactionTypeAdjust,
		before:      item.OnHand,
		after:       item.OnHand + delta,
		userID:      userID,
		notes:       notes,
		referenceID: referenceID,
	}, nil
}

// CycleCount fija on_hand al valor contado físicamente. Sin diferencia no se escribe nada.
func (e *MovementEngine) CycleCount(ctx context.Context, stockItemID string, counted int64, userID string, notes *string) (*MovementResult, error) {
	if err := requireID("stock_item_id", stockItemID); err != nil {
		return nil, err
	}
	if counted < 0 {
		return nil, domain.NewValidation("counted_on_hand", "no puede ser negativo")
	}
	return e.mutateOne(ctx, stockItemID, func(item *entity.StockItem, _ repository.StockTransactionRepository) (*plannedChange, error) {
		if counted < item.QtyReserved {
			return nil, domain.NewValidation("counted_on_hand",
				fmt.Sprintf("el conteo (%d) es menor que lo reservado (%d); liberar reservas primero", counted, item.QtyReserved))
		}
		if counted == item.OnHand {
			return nil, nil
		}
		return &plannedChange{
			onHand:   counted,
			reserved: item.QtyReserved,
			txnType:  entity.TransactionTypeCycleCount,
			before:   item.OnHand,
			after:    counted,
			userID:   userID,
			notes:    notes,
		}, nil
	})
}

// ---------------------------------------------------------------------------
// Reversión
// ---------------------------------------------------------------------------

// Reverse agrega una transacción compensatoria de transactionID; la original no se modifica.
// receive/ship/adjust/cycle_count se revierten con un adjust opuesto; reserve con release y
// release con reserve. Las patas de un traslado se revierten con un traslado inverso.
func (e *MovementEngine) Reverse(ctx context.Context, transactionID, userID string, notes *string) (*MovementResult, error) {
	if err := requireID("transaction_id", transactionID); err != nil {
		return nil, err
	}
	orig, err := e.ledger.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if orig == nil {
		return nil, domain.NewNotFound("stock transaction", transactionID)
	}
	if err := e.rejectTransferLeg(ctx, orig); err != nil {
		return nil, err
	}

	ref := orig.ID
	return e.mutateOne(ctx, orig.StockItemID, func(item *entity.StockItem, ledger repository.StockTransactionRepository) (*plannedChange, error) {
		// Dentro de la tx: la fila está bloqueada, dos reversiones concurrentes se serializan aquí.
		prior, err := ledger.ListByReference(ctx, orig.ID)
		if err != nil {
			return nil, err
		}
		for _, row := range prior {
			if isCompensation(orig, row) {
				return nil, domain.NewValidation("transaction_id", "la transacción ya fue revertida")
			}
		}
		switch orig.Type {
		case entity.TransactionTypeReserve:
			qty := -orig.QuantityChange
			if item.QtyReserved < qty {
				return nil, &domain.InsufficientStockError{
					StockItemID: item.ID, Pool: domain.PoolReserved, Requested: qty, Available: item.QtyReserved,
				}
			}
			return planRelease(item, qty, userID, notes, &ref), nil
		case entity.TransactionTypeRelease:
			return planReserve(item, orig.QuantityChange, userID, notes, &ref)
		default:
			return planAdjust(item, -orig.QuantityChange, userID, notes, &ref)
		}
	})
}

// compensationType tipo de la fila que revierte una transacción de tipo t.
func compensationType(t string) string {
	switch t {
	case entity.TransactionTypeReserve:
		return entity.TransactionTypeRelease
	case entity.TransactionTypeRelease:
		return entity.TransactionTypeReserve
	default:
		return entity.TransactionTypeAdjust
	}
}

// isCompensation row revierte orig: mismo stock item, tipo compensatorio y cambio opuesto.
// Un reference_id puesto por el cliente no basta para marcar la original como revertida.
func isCompensation(orig, row *entity.StockTransaction) bool {
	return row.StockItemID == orig.StockItemID &&
		row.Type == compensationType(orig.Type) &&
		row.QuantityChange == -orig.QuantityChange
}

// rejectTransferLeg una pata de traslado comparte reference_id con filas de otro stock item.
func (e *MovementEngine) rejectTransferLeg(ctx context.Context, orig *entity.StockTransaction) error {
	const reason = "pertenece a un traslado; revertir con un traslado inverso"
	if orig.Type == entity.TransactionTypeTransfer {
		return domain.NewValidation("transaction_id", reason)
	}
	if orig.ReferenceID == nil || (orig.Type != entity.TransactionTypeReceive && orig.Type != entity.TransactionTypeAdjust) {
		return nil
	}
	siblings, err := e.ledger.ListByReference(ctx, *orig.ReferenceID)
	if err != nil {
		return err
	}
	for _, s := range siblings {
		if s.StockItemID != orig.StockItemID {
			return domain.NewValidation("transaction_id", reason)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Traslado
// ---------------------------------------------------------------------------

// Transfer mueve Quantity unidades disponibles y ReservedQuantity unidades reservadas
// desde un stock item hacia DestBinID. Ambas patas se escriben en la misma transacción y
// comparten un reference_id generado por llamada. Si el origen queda con disponible 0, su
// pata se registra como adjust (desasignación) en lugar de transfer; la fila se conserva
// salvo política purge.
func (e *MovementEngine) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if err := requireID("source_stock_item_id", in.SourceStockItemID); err != nil {
		return nil, err
	}
	if err := requireID("dest_bin_id", in.DestBinID); err != nil {
		return nil, err
	}
	if in.Quantity < 0 {
		return nil, domain.NewValidation("quantity", "no puede ser negativa")
	}
	if in.ReservedQuantity < 0 {
		return nil, domain.NewValidation("reserved_quantity", "no puede ser negativa")
	}
	moved := in.Quantity + in.ReservedQuantity
	if moved == 0 {
		return nil, domain.NewValidation("quantity", "el traslado debe mover al menos una unidad")
	}
	if err := e.requireBin(ctx, in.DestBinID); err != nil {
		return nil, err
	}

	referenceID := e.newID()
	var out *TransferResult
	err := e.txRunner.Run(ctx, func(items repository.StockItemRepository, ledger repository.StockTransactionRepository) error {
		src, dst, err := e.lockTransferRows(ctx, items, in.SourceStockItemID, in.DestBinID)
		if err != nil {
			return err
		}
		if src.BinID == in.DestBinID {
			return domain.NewValidation("dest_bin_id", "el bin destino es el mismo que el origen")
		}
		if in.Quantity > src.Available() {
			return &domain.InsufficientStockError{
				StockItemID: src.ID, Pool: domain.PoolAvailable, Requested: in.Quantity, Available: src.Available(),
			}
		}
		if in.ReservedQuantity > src.QtyReserved {
			return &domain.InsufficientStockError{
				StockItemID: src.ID, Pool: domain.PoolReserved, Requested: in.ReservedQuantity, Available: src.QtyReserved,
			}
		}

		srcOnHand := src.OnHand - moved
		srcReserved := src.QtyReserved - in.ReservedQuantity
		if err := entity.CheckQuantities(srcOnHand, srcReserved); err != nil {
			return err
		}
		deallocated := srcOnHand-srcReserved == 0

		if dst == nil {
			dst, _, err = e.resolver.lockOrCreate(ctx, items, src.ProductID, in.DestBinID, src.BatchID, src.ExpiryDate)
			if err != nil {
				return err
			}
		}
		dstOnHand := dst.OnHand + moved
		dstReserved := dst.QtyReserved + in.ReservedQuantity
		if err := entity.CheckQuantities(dstOnHand, dstReserved); err != nil {
			return err
		}

		updatedSrc, err := items.UpdateStock(ctx, src.ID, entity.SetQuantities(srcOnHand, srcReserved))
		if err != nil {
			return err
		}
		updatedDst, err := items.UpdateStock(ctx, dst.ID, entity.SetQuantities(dstOnHand, dstReserved))
		if err != nil {
			return err
		}

		srcType := entity.TransactionTypeTransfer
		if deallocated {
			srcType = entity.TransactionTypeAdjust
		}
		outTxn := e.newTransaction(src.ID, srcType, src.OnHand, srcOnHand, in.UserID, in.Notes, &referenceID)
		if err := ledger.Create(ctx, outTxn); err != nil {
			return err
		}
		inTxn := e.newTransaction(dst.ID, entity.TransactionTypeReceive, dst.OnHand, dstOnHand, in.UserID, in.Notes, &referenceID)
		if err := ledger.Create(ctx, inTxn); err != nil {
			return err
		}

		purged, err := e.applyEmptyRowPolicy(ctx, items, updatedSrc)
		if err != nil {
			return err
		}

		out = &TransferResult{
			Success:           true,
			SourceStockID:     src.ID,
			DestStockID:       dst.ID,
			Quantity:          in.Quantity,
			ReservedQuantity:  in.ReservedQuantity,
			SourceDeallocated: deallocated,
			SourcePurged:      purged,
			ReferenceID:       referenceID,
			Source:            updatedSrc,
			Destination:       updatedDst,
			Transactions:      []*entity.StockTransaction{outTxn, inTxn},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logMovement(out.Transactions[0], out.Source)
	e.logMovement(out.Transactions[1], out.Destination)
	return out, nil
}

// lockTransferRows bloquea origen y, si ya existe, destino en orden ascendente de id.
// Sin destino solo se bloquea el origen; el destino se crea después bajo el mismo lock.
func (e *MovementEngine) lockTransferRows(
	ctx context.Context,
	items repository.StockItemRepository,
	sourceID, destBinID string,
) (*entity.StockItem, *entity.StockItem, error) {
	peek, err := items.GetByID(ctx, sourceID)
	if err != nil {
		return nil, nil, err
	}
	if peek == nil {
		return nil, nil, domain.NewNotFound("stock item", sourceID)
	}
	candidate, err := items.FindLot(ctx, peek.ProductID, destBinID, peek.BatchID)
	if err != nil {
		return nil, nil, err
	}
	if candidate == nil || candidate.ID == sourceID {
		src, err := items.GetByIDForUpdate(ctx, sourceID)
		if err != nil {
			return nil, nil, err
		}
		if src == nil {
			return nil, nil, domain.NewNotFound("stock item", sourceID)
		}
		return src, nil, nil
	}

	locked, err := items.LockByIDs(ctx, sourceID, candidate.ID)
	if err != nil {
		return nil, nil, err
	}
	var src, dst *entity.StockItem
	for _, it := range locked {
		switch it.ID {
		case sourceID:
			src = it
		case candidate.ID:
			dst = it
		}
	}
	if src == nil {
		return nil, nil, domain.NewNotFound("stock item", sourceID)
	}
	return src, dst, nil
}

// ---------------------------------------------------------------------------
// Consultas
// ---------------------------------------------------------------------------

// GetItem estado actual de un stock item.
func (e *MovementEngine) GetItem(ctx context.Context, stockItemID string) (*entity.StockItem, error) {
	if err := requireID("stock_item_id", stockItemID); err != nil {
		return nil, err
	}
	item, err := e.items.GetByID(ctx, stockItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.NewNotFound("stock item", stockItemID)
	}
	return item, nil
}

// ItemInBin fila sin lote de un producto en un bin.
func (e *MovementEngine) ItemInBin(ctx context.Context, productID, binID string) (*entity.StockItem, error) {
	if err := requireID("product_id", productID); err != nil {
		return nil, err
	}
	if err := requireID("bin_id", binID); err != nil {
		return nil, err
	}
	item, err := e.items.GetByProductAndBin(ctx, productID, binID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.NewNotFound("stock item", productID+"@"+binID)
	}
	return item, nil
}

// History historial de un stock item, más reciente primero. Paginado y repetible: sin
// mutaciones intermedias, dos lecturas devuelven lo mismo.
func (e *MovementEngine) History(ctx context.Context, stockItemID string, limit, offset int) ([]*entity.StockTransaction, error) {
	if err := requireID("stock_item_id", stockItemID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	list, err := e.ledger.ListByStockItem(ctx, stockItemID, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 && offset == 0 {
		item, err := e.items.GetByID(ctx, stockItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, domain.NewNotFound("stock item", stockItemID)
		}
	}
	return list, nil
}

// ByReference filas que comparten reference_id (ambas patas de un traslado, reversiones).
func (e *MovementEngine) ByReference(ctx context.Context, referenceID string) ([]*entity.StockTransaction, error) {
	if err := requireID("reference_id", referenceID); err != nil {
		return nil, err
	}
	return e.ledger.ListByReference(ctx, referenceID)
}

// ---------------------------------------------------------------------------
// Internos
// ---------------------------------------------------------------------------

// plannedChange nuevo estado de un stock item y la fila de libro que lo acompaña.
type plannedChange struct {
	onHand, reserved int64
	txnType          string
	before, after    int64
	userID           string
	notes            *string
	referenceID      *string
}

// mutateOne bloquea un stock item, deja que plan calcule el cambio y lo aplica junto con
// su fila de libro. plan puede devolver (nil, nil) si no hay nada que escribir.
func (e *MovementEngine) mutateOne(
	ctx context.Context,
	stockItemID string,
	plan func(item *entity.StockItem, ledger repository.StockTransactionRepository) (*plannedChange, error),
) (*MovementResult, error) {
	var out *MovementResult
	err := e.txRunner.Run(ctx, func(items repository.StockItemRepository, ledger repository.StockTransactionRepository) error {
		item, err := items.GetByIDForUpdate(ctx, stockItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NewNotFound("stock item", stockItemID)
		}
		change, err := plan(item, ledger)
		if err != nil {
			return err
		}
		if change == nil {
			out = &MovementResult{StockItem: item}
			return nil
		}
		if err := entity.CheckQuantities(change.onHand, change.reserved); err != nil {
			return err
		}

		updated, err := items.UpdateStock(ctx, item.ID, entity.SetQuantities(change.onHand, change.reserved))
		if err != nil {
			return err
		}
		txn := e.newTransaction(item.ID, change.txnType, change.before, change.after,
			change.userID, change.notes, change.referenceID)
		if err := ledger.Create(ctx, txn); err != nil {
			return err
		}

		purged := false
		if txn.Type != entity.TransactionTypeReserve && txn.Type != entity.TransactionTypeRelease {
			if purged, err = e.applyEmptyRowPolicy(ctx, items, updated); err != nil {
				return err
			}
		}
		out = &MovementResult{StockItem: updated, Transaction: txn, Purged: purged}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Transaction != nil {
		e.logMovement(out.Transaction, out.StockItem)
	}
	return out, nil
}

// applyEmptyRowPolicy elimina la fila vacía si la política es purge.
func (e *MovementEngine) applyEmptyRowPolicy(ctx context.Context, items repository.StockItemRepository, item *entity.StockItem) (bool, error) {
	if e.policy != EmptyRowPurge || !item.IsEmpty() {
		return false, nil
	}
	if err := items.Delete(ctx, item.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (e *MovementEngine) newTransaction(stockItemID, txnType string, before, after int64, userID string, notes, referenceID *string) *entity.StockTransaction {
	txn := &entity.StockTransaction{
		ID:             e.newID(),
		StockItemID:    stockItemID,
		Type:           txnType,
		QuantityChange: after - before,
		QuantityBefore: before,
		QuantityAfter:  after,
		Notes:          notes,
		ReferenceID:    referenceID,
		CreatedAt:      e.now(),
	}
	if userID != "" {
		txn.UserID = &userID
	}
	return txn
}

func (e *MovementEngine) requireBin(ctx context.Context, binID string) error {
	ok, err := e.bins.Exists(ctx, binID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewNotFound("bin", binID)
	}
	return nil
}

func (e *MovementEngine) logMovement(txn *entity.StockTransaction, item *entity.StockItem) {
	ev := e.log.Info().
		Str("transaction_id", txn.ID).
		Str("stock_item_id", txn.StockItemID).
		Str("type", txn.Type).
		Int64("quantity_change", txn.QuantityChange).
		Int64("quantity_before", txn.QuantityBefore).
		Int64("quantity_after", txn.QuantityAfter)
	if item != nil {
		ev = ev.Int64("on_hand", item.OnHand).Int64("qty_reserved", item.QtyReserved)
	}
	if txn.ReferenceID != nil {
		ev = ev.Str("reference_id", *txn.ReferenceID)
	}
	ev.Msg("movimiento de stock registrado")
}

func requireID(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return domain.NewValidation(field, "requerido")
	}
	return nil
}
