package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/pkg/jwt"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine    *stock.MovementEngine
	JWTSecret string
	Log       *logger.Logger
}

// Router registra las rutas de la API.
// Lecturas: cualquier usuario autenticado. Reservas: también vendedores.
// Movimientos físicos: admin y bodeguero. Reversiones: solo admin.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	st := api.Group("/stock", AuthMiddleware(deps.JWTSecret))
	h := NewStockHandler(deps.Engine, deps.Log)

	operators := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero)
	sellers := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero, jwt.RoleVendedor)

	st.Post("/receipts", operators, h.Receive)

	items := st.Group("/items")
	items.Get("/", h.FindInBin)
	items.Get("/:id", h.GetItem)
	items.Get("/:id/transactions", h.History)
	items.Post("/:id/reserve", sellers, h.Reserve)
	items.Post("/:id/release", sellers, h.Release)
	items.Post("/:id/transfer", operators, h.Transfer)
	items.Post("/:id/ship", operators, h.Ship)
	items.Post("/:id/adjust", operators, h.Adjust)
	items.Post("/:id/cycle-count", operators, h.CycleCount)

	txns := st.Group("/transactions")
	txns.Get("/", h.ByReference)
	txns.Post("/:id/reverse", RequireRole(jwt.RoleAdmin), h.Reverse)
}
