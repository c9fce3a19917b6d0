package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/sqlite"
	apphttp "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/logger"
	pkgjwt "github.com/jhoicas/stock-ledger/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	httpProduct = "prod-cable"
	httpBinA    = "bin-http-a"
	httpBinB    = "bin-http-b"
)

// buildStockApp levanta el router completo sobre una base SQLite temporal.
func buildStockApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	products := sqlite.NewProductRepository(db)
	bins := sqlite.NewBinRepository(db)
	now := time.Now().UTC()
	require.NoError(t, products.Create(ctx, &entity.Product{ID: httpProduct, SKU: "CAB-01", Name: "Cable UTP", CreatedAt: now}))
	require.NoError(t, bins.Create(ctx, &entity.Bin{ID: httpBinA, Code: "HA", CreatedAt: now}))
	require.NoError(t, bins.Create(ctx, &entity.Bin{ID: httpBinB, Code: "HB", CreatedAt: now}))

	engine := stock.NewMovementEngine(
		sqlite.NewTxRunner(db),
		sqlite.NewStockItemRepository(db),
		sqlite.NewStockTransactionRepository(db),
		products, bins, logger.Nop(), stock.Options{},
	)
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{Engine: engine, JWTSecret: testJWTSecret, Log: logger.Nop()})
	return app
}

// call lanza una petición JSON con el rol indicado y decodifica la respuesta en out (si no es nil).
func call(t *testing.T, app *fiber.App, method, url, role string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tokenForRole(t, role))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func receiveHTTP(t *testing.T, app *fiber.App, bin string, qty int64) string {
	t.Helper()
	var res dto.ReceiveResponse
	status := call(t, app, http.MethodPost, "/api/stock/receipts", pkgjwt.RoleBodeguero,
		dto.ReceiveRequest{ProductID: httpProduct, BinID: bin, QtyAvailable: qty}, &res)
	require.Equal(t, http.StatusCreated, status)
	return res.StockItemID
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestStockHandler_RecepcionYConsulta(t *testing.T) {
	app := buildStockApp(t)
	id := receiveHTTP(t, app, httpBinA, 12)

	var item dto.StockItemResponse
	status := call(t, app, http.MethodGet, "/api/stock/items/"+id, pkgjwt.RoleVendedor, nil, &item)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(12), item.OnHand)
	assert.Equal(t, int64(12), item.QtyAvailable)

	var inBin dto.StockItemResponse
	status = call(t, app, http.MethodGet, "/api/stock/items?product_id="+httpProduct+"&bin_id="+httpBinA, pkgjwt.RoleVendedor, nil, &inBin)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, inBin.ID)
}

func TestStockHandler_ReservaInsuficienteDevuelve409ConFaltante(t *testing.T) {
	app := buildStockApp(t)
	id := receiveHTTP(t, app, httpBinA, 5)

	var errResp dto.ErrorResponse
	status := call(t, app, http.MethodPost, "/api/stock/items/"+id+"/reserve", pkgjwt.RoleVendedor,
		dto.QuantityRequest{Quantity: 8}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", errResp.Code)
	assert.EqualValues(t, 3, errResp.Details["shortfall"], "faltan 8 - 5 unidades")
	assert.Equal(t, "available", errResp.Details["pool"])
}

func TestStockHandler_Validaciones(t *testing.T) {
	app := buildStockApp(t)
	id := receiveHTTP(t, app, httpBinA, 5)

	var errResp dto.ErrorResponse
	status := call(t, app, http.MethodPost, "/api/stock/items/"+id+"/reserve", pkgjwt.RoleVendedor,
		dto.QuantityRequest{Quantity: 0}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", errResp.Code)
	assert.Contains(t, errResp.Details, "quantity")

	status = call(t, app, http.MethodPost, "/api/stock/items/"+id+"/reserve", pkgjwt.RoleVendedor, "{no-json", &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_BODY", errResp.Code)

	status = call(t, app, http.MethodPost, "/api/stock/receipts", pkgjwt.RoleBodeguero,
		dto.ReceiveRequest{ProductID: httpProduct, BinID: httpBinA}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status, "recepción sin unidades")
	assert.Equal(t, "VALIDATION", errResp.Code)

	status = call(t, app, http.MethodGet, "/api/stock/items/no-existe", pkgjwt.RoleAdmin, nil, &errResp)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errResp.Code)

	status = call(t, app, http.MethodGet, "/api/stock/transactions", pkgjwt.RoleAdmin, nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, status, "reference_id es obligatorio")
}

func TestStockHandler_RolesPorOperacion(t *testing.T) {
	app := buildStockApp(t)
	id := receiveHTTP(t, app, httpBinA, 5)

	status := call(t, app, http.MethodPost, "/api/stock/receipts", pkgjwt.RoleVendedor,
		dto.ReceiveRequest{ProductID: httpProduct, BinID: httpBinA, QtyAvailable: 1}, nil)
	assert.Equal(t, http.StatusForbidden, status, "vendedor no recibe mercancía")

	status = call(t, app, http.MethodPost, "/api/stock/items/"+id+"/ship", pkgjwt.RoleVendedor,
		dto.ShipRequest{Quantity: 1}, nil)
	assert.Equal(t, http.StatusForbidden, status, "vendedor no despacha")

	status = call(t, app, http.MethodPost, "/api/stock/items/"+id+"/reserve", pkgjwt.RoleVendedor,
		dto.QuantityRequest{Quantity: 1}, nil)
	assert.Equal(t, http.StatusOK, status, "vendedor sí reserva")
}

func TestStockHandler_TrasladoHistorialYReversion(t *testing.T) {
	app := buildStockApp(t)
	id := receiveHTTP(t, app, httpBinA, 10)

	var tr dto.TransferResponse
	status := call(t, app, http.MethodPost, "/api/stock/items/"+id+"/transfer", pkgjwt.RoleBodeguero,
		dto.TransferRequest{DestBinID: httpBinB, Quantity: 4}, &tr)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, tr.Success)
	require.Len(t, tr.Transactions, 2)

	var byRef struct {
		Total int                            `json:"total"`
		Items []dto.StockTransactionResponse `json:"items"`
	}
	status = call(t, app, http.MethodGet, "/api/stock/transactions?reference_id="+tr.ReferenceID, pkgjwt.RoleAdmin, nil, &byRef)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, byRef.Total)

	var page dto.TransactionListResponse
	status = call(t, app, http.MethodGet, "/api/stock/items/"+id+"/transactions?limit=1", pkgjwt.RoleAdmin, nil, &page)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, page.Items, 1)
	assert.Equal(t, entity.TransactionTypeTransfer, page.Items[0].TransactionType, "más reciente primero")

	status = call(t, app, http.MethodGet, "/api/stock/items/"+id+"/transactions?limit=1000", pkgjwt.RoleAdmin, nil, nil)
	assert.Equal(t, http.StatusBadRequest, status, "limit por encima del máximo")

	var adj dto.MovementResponse
	status = call(t, app, http.MethodPost, "/api/stock/items/"+id+"/adjust", pkgjwt.RoleBodeguero,
		dto.AdjustRequest{QuantityChange: -1}, &adj)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, adj.Transaction)

	reverseURL := "/api/stock/transactions/" + adj.Transaction.ID + "/reverse"
	status = call(t, app, http.MethodPost, reverseURL, pkgjwt.RoleBodeguero, nil, nil)
	assert.Equal(t, http.StatusForbidden, status, "solo admin revierte")

	var rev dto.MovementResponse
	status = call(t, app, http.MethodPost, reverseURL, pkgjwt.RoleAdmin, nil, &rev)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(6), rev.StockItem.OnHand)

	var errResp dto.ErrorResponse
	status = call(t, app, http.MethodPost, "/api/stock/transactions/"+tr.Transactions[0].ID+"/reverse", pkgjwt.RoleAdmin, nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, status, "las patas de traslado no se revierten")
}

func TestStockHandler_ConteoSinDiferencia(t *testing.T) {
	app := buildStockApp(t)
	id := receiveHTTP(t, app, httpBinA, 3)

	var res dto.MovementResponse
	status := call(t, app, http.MethodPost, "/api/stock/items/"+id+"/cycle-count", pkgjwt.RoleBodeguero,
		dto.CycleCountRequest{CountedOnHand: 3}, &res)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, res.Transaction)
	assert.Equal(t, int64(3), res.StockItem.OnHand)
}
