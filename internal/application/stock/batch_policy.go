package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// LotAction resultado de resolver un lote en una recepción.
type LotAction string

const (
	LotCreated LotAction = "created"
	LotUpdated LotAction = "updated"
)

// LotStrategy cómo se almacena la mercancía entrante de un producto.
type LotStrategy int

const (
	// StrategyMerge producto fungible: una sola fila por (producto, bin).
	StrategyMerge LotStrategy = iota
	// StrategyNewLot producto con lotes: cada recepción crea su propia fila.
	StrategyNewLot
)

// LotRequest mercancía entrante a ubicar.
type LotRequest struct {
	ProductID  string
	BinID      string
	OnHand     int64 // unidades físicas que entran
	Reserved   int64 // de ellas, cuántas llegan ya reservadas
	BatchID    *string
	ExpiryDate *time.Time
}

// LotResolution fila resultante (ya actualizada y bloqueada) y su on_hand previo.
type LotResolution struct {
	StockItem    *entity.StockItem
	Action       LotAction
	OnHandBefore int64
}

// BatchPolicyResolver decide por producto si la entrada se fusiona con un item existente
// o abre un lote nuevo, y aplica la decisión dentro de la transacción del llamador.
type BatchPolicyResolver struct {
	now   func() time.Time
	newID func() string
}

// NewBatchPolicyResolver construye el resolvedor.
func NewBatchPolicyResolver(now func() time.Time, newID func() string) *BatchPolicyResolver {
	return &BatchPolicyResolver{now: now, newID: newID}
}

// StrategyFor productos con lote nunca se fusionan.
func (r *BatchPolicyResolver) StrategyFor(product *entity.Product) LotStrategy {
	if product.BatchTracked {
		return StrategyNewLot
	}
	return StrategyMerge
}

// Resolve ubica la entrada según la estrategia del producto.
// Lote nuevo: crea la fila con batch_id/expiry_date recibidos.
// Fusión: bloquea (o crea) la fila sin lote de (producto, bin) y suma las cantidades.
func (r *BatchPolicyResolver) Resolve(
	ctx context.Context,
	items repository.StockItemRepository,
	product *entity.Product,
	req LotRequest,
) (*LotResolution, error) {
	var (
		item    *entity.StockItem
		created bool
		err     error
	)
	switch r.StrategyFor(product) {
	case StrategyNewLot:
		if req.BatchID == nil || *req.BatchID == "" {
			return nil, domain.NewValidation("batch_id", "requerido para productos con lote")
		}
		item = r.newItem(req.ProductID, req.BinID, req.BatchID, req.ExpiryDate)
		if err := items.Create(ctx, item); err != nil {
			return nil, err
		}
		created = true
	default:
		item, created, err = r.lockOrCreate(ctx, items, req.ProductID, req.BinID, nil, nil)
		if err != nil {
			return nil, err
		}
	}

	before := item.OnHand
	onHand := item.OnHand + req.OnHand
	reserved := item.QtyReserved + req.Reserved
	if err := entity.CheckQuantities(onHand, reserved); err != nil {
		return nil, err
	}
	updated, err := items.UpdateStock(ctx, item.ID, entity.SetQuantities(onHand, reserved))
	if err != nil {
		return nil, err
	}

	action := LotUpdated
	if created {
		action = LotCreated
	}
	return &LotResolution{StockItem: updated, Action: action, OnHandBefore: before}, nil
}

// lockOrCreate bloquea la fila de (producto, bin, lote) o la crea vacía.
// Si otra transacción la creó primero (ErrDuplicate) se relee la fila ganadora.
// Con lote no hay índice único: el lock de lote evita que dos traslados creen la misma fila.
func (r *BatchPolicyResolver) lockOrCreate(
	ctx context.Context,
	items repository.StockItemRepository,
	productID, binID string,
	batchID *string,
	expiry *time.Time,
) (*entity.StockItem, bool, error) {
	if batchID != nil {
		if err := items.LockLot(ctx, productID, binID, *batchID); err != nil {
			return nil, false, err
		}
	}
	item, err := lockLot(ctx, items, productID, binID, batchID)
	if err != nil {
		return nil, false, err
	}
	if item != nil {
		return item, false, nil
	}

	item = r.newItem(productID, binID, batchID, expiry)
	err = items.Create(ctx, item)
	if err == nil {
		return item, true, nil
	}
	if !errors.Is(err, domain.ErrDuplicate) {
		return nil, false, err
	}

	item, err = lockLot(ctx, items, productID, binID, batchID)
	if err != nil {
		return nil, false, err
	}
	if item == nil {
		return nil, false, domain.NewPersistence("lock stock item", errors.New("fila concurrente no visible"))
	}
	return item, false, nil
}

func lockLot(ctx context.Context, items repository.StockItemRepository, productID, binID string, batchID *string) (*entity.StockItem, error) {
	if batchID == nil {
		return items.GetByProductAndBinForUpdate(ctx, productID, binID)
	}
	return items.FindLotForUpdate(ctx, productID, binID, batchID)
}

func (r *BatchPolicyResolver) newItem(productID, binID string, batchID *string, expiry *time.Time) *entity.StockItem {
	now := r.now()
	return &entity.StockItem{
		ID:         r.newID(),
		ProductID:  productID,
		BinID:      binID,
		BatchID:    batchID,
		ExpiryDate: expiry,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
