package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/sqlite"
)

func openTestDB(t *testing.T) (context.Context, *sqlite.StockItemRepo, *sqlite.StockTransactionRepo) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	require.NoError(t, sqlite.NewProductRepository(db).Create(ctx, &entity.Product{ID: "p-1", SKU: "SKU-1", Name: "Caja", CreatedAt: now}))
	require.NoError(t, sqlite.NewBinRepository(db).Create(ctx, &entity.Bin{ID: "b-1", Code: "B-1", CreatedAt: now}))
	return ctx, sqlite.NewStockItemRepository(db), sqlite.NewStockTransactionRepository(db)
}

func newItem(id string) *entity.StockItem {
	now := time.Now().UTC()
	return &entity.StockItem{ID: id, ProductID: "p-1", BinID: "b-1", CreatedAt: now, UpdatedAt: now}
}

func TestStockItemRepo_FilaSinLoteUnica(t *testing.T) {
	ctx, items, _ := openTestDB(t)

	require.NoError(t, items.Create(ctx, newItem("si-1")))
	err := items.Create(ctx, newItem("si-2"))
	assert.ErrorIs(t, err, domain.ErrDuplicate, "solo una fila sin lote por (producto, bin)")

	got, err := items.GetByProductAndBin(ctx, "p-1", "b-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "si-1", got.ID)

	missing, err := items.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStockItemRepo_UpdateStockRechazaInvariante(t *testing.T) {
	ctx, items, _ := openTestDB(t)
	require.NoError(t, items.Create(ctx, newItem("si-1")))

	updated, err := items.UpdateStock(ctx, "si-1", entity.SetQuantities(10, 4))
	require.NoError(t, err)
	assert.Equal(t, int64(10), updated.OnHand)
	assert.Equal(t, int64(4), updated.QtyReserved)

	_, err = items.UpdateStock(ctx, "si-1", entity.SetQuantities(3, 4))
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	_, err = items.UpdateStock(ctx, "nope", entity.SetQuantities(1, 0))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, items.Delete(ctx, "si-1"), domain.ErrInvariantViolation, "una fila con existencias no se elimina")
}

func TestStockItemRepo_LockByIDsOrdenAscendente(t *testing.T) {
	ctx, items, _ := openTestDB(t)
	a := newItem("si-b")
	b := newItem("si-a")
	batch := "L-1"
	b.BatchID = &batch
	require.NoError(t, items.Create(ctx, a))
	require.NoError(t, items.Create(ctx, b))

	locked, err := items.LockByIDs(ctx, "si-b", "si-a")
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, "si-a", locked[0].ID)
	assert.Equal(t, "si-b", locked[1].ID)

	lot, err := items.FindLot(ctx, "p-1", "b-1", &batch)
	require.NoError(t, err)
	require.NotNil(t, lot)
	assert.Equal(t, "si-a", lot.ID)
}

func TestStockTransactionRepo_SoloInsercion(t *testing.T) {
	ctx, items, ledger := openTestDB(t)
	require.NoError(t, items.Create(ctx, newItem("si-1")))

	txn := &entity.StockTransaction{
		ID: "tx-1", StockItemID: "si-1", Type: entity.TransactionTypeReceive,
		QuantityChange: 5, QuantityBefore: 0, QuantityAfter: 5, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, ledger.Create(ctx, txn))
	assert.Positive(t, txn.Seq)

	bad := &entity.StockTransaction{
		ID: "tx-2", StockItemID: "si-1", Type: entity.TransactionTypeReceive,
		QuantityChange: 5, QuantityBefore: 0, QuantityAfter: 4, CreatedAt: time.Now().UTC(),
	}
	assert.ErrorIs(t, ledger.Create(ctx, bad), domain.ErrInvariantViolation)

	got, err := ledger.GetByID(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.QuantityAfter)
	assert.Nil(t, got.ReferenceID)
}
