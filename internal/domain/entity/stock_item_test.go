package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func TestCheckQuantities(t *testing.T) {
	cases := []struct {
		name             string
		onHand, reserved int64
		ok               bool
	}{
		{"vacío", 0, 0, true},
		{"todo reservado", 5, 5, true},
		{"parcial", 10, 3, true},
		{"reservado mayor que on_hand", 3, 4, false},
		{"on_hand negativo", -1, 0, false},
		{"reservado negativo", 2, -1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := entity.CheckQuantities(tc.onHand, tc.reserved)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvariantViolation)
		})
	}
}

func TestStockItem_AvailableEIsEmpty(t *testing.T) {
	it := &entity.StockItem{OnHand: 10, QtyReserved: 4}
	assert.Equal(t, int64(6), it.Available())
	assert.False(t, it.IsEmpty())

	it.OnHand, it.QtyReserved = 0, 0
	assert.True(t, it.IsEmpty())
	assert.NoError(t, it.CheckInvariants())
}

func TestStockUpdate_Clamped(t *testing.T) {
	upd := entity.SetQuantities(-3, 2).Clamped()
	require.NotNil(t, upd.OnHand)
	require.NotNil(t, upd.QtyReserved)
	assert.Equal(t, int64(0), *upd.OnHand, "on_hand se ajusta a cero")
	assert.Equal(t, int64(2), *upd.QtyReserved)

	partial := entity.StockUpdate{}.Clamped()
	assert.Nil(t, partial.OnHand, "los campos ausentes siguen ausentes")
	assert.Nil(t, partial.QtyReserved)
}

func TestStockTransaction_Validate(t *testing.T) {
	ok := &entity.StockTransaction{
		StockItemID: "si-1", Type: entity.TransactionTypeReceive,
		QuantityChange: 5, QuantityBefore: 10, QuantityAfter: 15,
	}
	require.NoError(t, ok.Validate())

	bad := *ok
	bad.QuantityAfter = 14
	assert.ErrorIs(t, bad.Validate(), domain.ErrInvariantViolation, "after debe ser before + change")

	zero := *ok
	zero.QuantityChange, zero.QuantityAfter = 0, 10
	assert.ErrorIs(t, zero.Validate(), domain.ErrInvalidInput)

	unknown := *ok
	unknown.Type = "teleport"
	assert.ErrorIs(t, unknown.Validate(), domain.ErrInvalidInput)

	assert.True(t, (&entity.StockTransaction{Type: entity.TransactionTypeReserve}).AffectsAvailablePool())
	assert.False(t, ok.AffectsAvailablePool())
}
