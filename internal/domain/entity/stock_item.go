package entity

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// StockItem cantidad física de un producto en un bin (y lote, si el producto lleva lotes).
// Solo el motor de movimientos la modifica; Available se calcula, nunca se persiste.
type StockItem struct {
	ID          string
	ProductID   string
	BinID       string
	OnHand      int64
	QtyReserved int64
	BatchID     *string
	ExpiryDate  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available = OnHand - QtyReserved.
func (s *StockItem) Available() int64 {
	return s.OnHand - s.QtyReserved
}

// IsEmpty indica que el item no tiene existencias ni reservas.
func (s *StockItem) IsEmpty() bool {
	return s.OnHand == 0 && s.QtyReserved == 0
}

// CheckInvariants verifica 0 <= QtyReserved <= OnHand.
func (s *StockItem) CheckInvariants() error {
	return CheckQuantities(s.OnHand, s.QtyReserved)
}

// CheckQuantities valida un par (on_hand, reserved) antes de escribirlo.
func CheckQuantities(onHand, reserved int64) error {
	if onHand < 0 || reserved < 0 || reserved > onHand {
		return domain.ErrInvariantViolation
	}
	return nil
}

// StockUpdate campos mutables de un StockItem. nil = no modificar.
type StockUpdate struct {
	OnHand      *int64
	QtyReserved *int64
}

// SetQuantities construye un StockUpdate con ambos campos.
func SetQuantities(onHand, reserved int64) StockUpdate {
	return StockUpdate{OnHand: &onHand, QtyReserved: &reserved}
}

// Clamped devuelve una copia con cada campo presente ajustado a >= 0.
func (u StockUpdate) Clamped() StockUpdate {
	out := StockUpdate{}
	if u.OnHand != nil {
		v := max(*u.OnHand, 0)
		out.OnHand = &v
	}
	if u.QtyReserved != nil {
		v := max(*u.QtyReserved, 0)
		out.QtyReserved = &v
	}
	return out
}
