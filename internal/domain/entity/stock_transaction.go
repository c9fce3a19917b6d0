package entity

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// Tipos de transacción del libro de stock.
const (
	TransactionTypeReceive    = "receive"
	TransactionTypeShip       = "ship"
	TransactionTypeAdjust     = "adjust"
	TransactionTypeTransfer   = "transfer"
	TransactionTypeReserve    = "reserve"
	TransactionTypeRelease    = "release"
	TransactionTypeCycleCount = "cycle_count"
)

// ValidTransactionType indica si t es un tipo conocido.
func ValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeReceive, TransactionTypeShip, TransactionTypeAdjust, TransactionTypeTransfer,
		TransactionTypeReserve, TransactionTypeRelease, TransactionTypeCycleCount:
		return true
	}
	return false
}

// StockTransaction hecho inmutable sobre un cambio de cantidad de un StockItem.
// Para reserve/release, Before/After describen el pool disponible; para el resto, OnHand.
type StockTransaction struct {
	ID             string
	Seq            int64 // asignado por el store; desempate del orden más-reciente-primero
	StockItemID    string
	Type           string
	QuantityChange int64
	QuantityBefore int64
	QuantityAfter  int64
	UserID         *string
	Notes          *string
	ReferenceID    *string // correlaciona filas del mismo evento (ambas patas de un traslado)
	CreatedAt      time.Time
}

// Validate comprueba tipo, cambio no nulo y After == Before + Change.
func (t *StockTransaction) Validate() error {
	if t.StockItemID == "" {
		return domain.NewValidation("stock_item_id", "requerido")
	}
	if !ValidTransactionType(t.Type) {
		return domain.NewValidation("transaction_type", "tipo desconocido: "+t.Type)
	}
	if t.QuantityChange == 0 {
		return domain.NewValidation("quantity_change", "no puede ser cero")
	}
	if t.QuantityAfter != t.QuantityBefore+t.QuantityChange {
		return domain.ErrInvariantViolation
	}
	return nil
}

// AffectsAvailablePool indica si Before/After describen el disponible en lugar de OnHand.
func (t *StockTransaction) AffectsAvailablePool() bool {
	return t.Type == TransactionTypeReserve || t.Type == TransactionTypeRelease
}
