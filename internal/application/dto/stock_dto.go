package dto

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ReceiveRequest entrada de mercancía a un bin.
type ReceiveRequest struct {
	ProductID    string     `json:"product_id" validate:"required"`
	BinID        string     `json:"bin_id" validate:"required"`
	QtyAvailable int64      `json:"qty_available" validate:"min=0"`
	QtyReserved  int64      `json:"qty_reserved" validate:"min=0"`
	BatchID      *string    `json:"batch_id,omitempty" validate:"omitempty,min=1,max=100"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// QuantityRequest cuerpo de reserve/release.
type QuantityRequest struct {
	Quantity    int64   `json:"quantity" validate:"required,gt=0"`
	ReferenceID *string `json:"reference_id,omitempty" validate:"omitempty,max=100"`
}

// TransferRequest traslado de un stock item hacia otro bin.
type TransferRequest struct {
	DestBinID        string  `json:"dest_bin_id" validate:"required"`
	Quantity         int64   `json:"quantity" validate:"min=0"`
	ReservedQuantity int64   `json:"reserved_quantity" validate:"min=0"`
	Notes            *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// ShipRequest salida de mercancía.
type ShipRequest struct {
	Quantity     int64   `json:"quantity" validate:"required,gt=0"`
	FromReserved bool    `json:"from_reserved"`
	ReferenceID  *string `json:"reference_id,omitempty" validate:"omitempty,max=100"`
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// AdjustRequest corrección de on_hand (delta con signo, distinto de cero).
type AdjustRequest struct {
	QuantityChange int64   `json:"quantity_change" validate:"required,ne=0"`
	Notes          *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// CycleCountRequest conteo físico.
type CycleCountRequest struct {
	CountedOnHand int64   `json:"counted_on_hand" validate:"min=0"`
	Notes         *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// ReverseRequest reversión de una transacción.
type ReverseRequest struct {
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// StockItemResponse estado de un stock item.
type StockItemResponse struct {
	ID           string     `json:"id"`
	ProductID    string     `json:"product_id"`
	BinID        string     `json:"bin_id"`
	OnHand       int64      `json:"on_hand"`
	QtyReserved  int64      `json:"qty_reserved"`
	QtyAvailable int64      `json:"qty_available"`
	BatchID      *string    `json:"batch_id,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// StockTransactionResponse fila del libro.
type StockTransactionResponse struct {
	ID              string    `json:"id"`
	StockItemID     string    `json:"stock_item_id"`
	TransactionType string    `json:"transaction_type"`
	QuantityChange  int64     `json:"quantity_change"`
	QuantityBefore  int64     `json:"quantity_before"`
	QuantityAfter   int64     `json:"quantity_after"`
	UserID          *string   `json:"user_id,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
	ReferenceID     *string   `json:"reference_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// MovementResponse resultado de una operación sobre un stock item.
type MovementResponse struct {
	StockItem   StockItemResponse         `json:"stock_item"`
	Transaction *StockTransactionResponse `json:"transaction,omitempty"`
	Purged      bool                      `json:"purged,omitempty"`
}

// ReceiveResponse resultado de una recepción.
type ReceiveResponse struct {
	StockItemID string                   `json:"stock_item_id"`
	Action      string                   `json:"action"`
	StockItem   StockItemResponse        `json:"stock_item"`
	Transaction StockTransactionResponse `json:"transaction"`
}

// TransferResponse resultado de un traslado.
type TransferResponse struct {
	Success           bool                       `json:"success"`
	SourceStockID     string                     `json:"source_stock_id"`
	DestStockID       string                     `json:"dest_stock_id"`
	Quantity          int64                      `json:"quantity"`
	ReservedQuantity  int64                      `json:"reserved_quantity"`
	SourceDeallocated bool                       `json:"source_deallocated"`
	SourcePurged      bool                       `json:"source_purged,omitempty"`
	ReferenceID       string                     `json:"reference_id"`
	Transactions      []StockTransactionResponse `json:"transactions"`
}

// TransactionListResponse página de historial.
type TransactionListResponse struct {
	Items []StockTransactionResponse `json:"items"`
	Page  PageResponse               `json:"page"`
}

// NewStockItemResponse mapea la entidad a la respuesta.
func NewStockItemResponse(s *entity.StockItem) StockItemResponse {
	return StockItemResponse{
		ID:           s.ID,
		ProductID:    s.ProductID,
		BinID:        s.BinID,
		OnHand:       s.OnHand,
		QtyReserved:  s.QtyReserved,
		QtyAvailable: s.Available(),
		BatchID:      s.BatchID,
		ExpiryDate:   s.ExpiryDate,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// NewStockTransactionResponse mapea una fila del libro.
func NewStockTransactionResponse(t *entity.StockTransaction) StockTransactionResponse {
	return StockTransactionResponse{
		ID:              t.ID,
		StockItemID:     t.StockItemID,
		TransactionType: t.Type,
		QuantityChange:  t.QuantityChange,
		QuantityBefore:  t.QuantityBefore,
		QuantityAfter:   t.QuantityAfter,
		UserID:          t.UserID,
		Notes:           t.Notes,
		ReferenceID:     t.ReferenceID,
		CreatedAt:       t.CreatedAt,
	}
}

// NewStockTransactionList mapea una lista de filas (nunca nil, para serializar []).
func NewStockTransactionList(list []*entity.StockTransaction) []StockTransactionResponse {
	out := make([]StockTransactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, NewStockTransactionResponse(t))
	}
	return out
}
