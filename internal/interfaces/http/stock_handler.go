package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// StockHandler expone el motor de movimientos de stock (protegido).
type StockHandler struct {
	engine   *stock.MovementEngine
	validate *validator.Validate
	log      *logger.Logger
}

// NewStockHandler construye el handler.
func NewStockHandler(engine *stock.MovementEngine, log *logger.Logger) *StockHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &StockHandler{engine: engine, validate: newValidator(), log: log}
}

// Receive POST /api/stock/receipts
func (h *StockHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveRequest
	if err := bindJSON(c, h.validate, &in, false); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.engine.Receive(c.UserContext(), stock.ReceiveInput{
		ProductID:    in.ProductID,
		BinID:        in.BinID,
		QtyAvailable: in.QtyAvailable,
		QtyReserved:  in.QtyReserved,
		BatchID:      in.BatchID,
		ExpiryDate:   in.ExpiryDate,
		UserID:       GetUserID(c),
		Notes:        in.Notes,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ReceiveResponse{
		StockItemID: res.StockItemID,
		Action:      string(res.Action),
		StockItem:   dto.NewStockItemResponse(res.StockItem),
		Transaction: dto.NewStockTransactionResponse(res.Transaction),
	})
}

// GetItem GET /api/stock/items/:id
func (h *StockHandler) GetItem(c *fiber.Ctx) error {
	item, err := h.engine.GetItem(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.NewStockItemResponse(item))
}

// FindInBin GET /api/stock/items?product_id=&bin_id=
func (h *StockHandler) FindInBin(c *fiber.Ctx) error {
	item, err := h.engine.ItemInBin(c.UserContext(), c.Query("product_id"), c.Query("bin_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.NewStockItemResponse(item))
}

// Reserve POST /api/stock/items/:id/reserve
func (h *StockHandler) Reserve(c *fiber.Ctx) error {
	var in dto.QuantityRequest
	if err := bindJSON(c, h.validate, &in, false); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.engine.Reserve(c.UserContext(), c.Params("id"), in.Quantity, GetUserID(c), in.ReferenceID)
	return h.writeMovement(c, res, err)
}

// Release POST /api/stock/items/:id/release
func (h *StockHandler) Release(c *fiber.Ctx) error {
	var in dto.QuantityRequest
	if err := bindJSON(c, h.validate, &in, false); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.engine.Release(c.UserContext(), c.Params("id"), in.Quantity, GetUserID(c), in.ReferenceID)
	return h.writeMovement(c, res, err)
}

// Transfer POST /api/stock/items/:id/transfer
func (h *StockHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if err := bindJSON(c, h.validate, &in, false); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.engine.Transfer(c.UserContext(), stock.TransferInput{
		SourceStockItemID: c.Params("id"),
		DestBinID:         in.DestBinID,
		Quantity:          in.Quantity,
		ReservedQuantity:  in.ReservedQuantity,
		UserID:            GetUserID(c),
		Notes:             in.Notes,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.TransferResponse{
		Success:           res.Success,
		SourceStockID:     res.SourceStockID,
		DestStockID:       res.DestStockID,
		Quantity:          res.Quantity,
		ReservedQuantity:  res.ReservedQuantity,
		SourceDeallocated: res.SourceDeallocated,
		SourcePurged:      res.SourcePurged,
		ReferenceID:       res.ReferenceID,
		Transactions:      dto.NewStockTransactionList(res.Transactions),
	})
}

// Ship POST /api/stock/items/:id/ship
func (h *StockHandler) Ship(c *fiber.Ctx) error {
	var in dto.ShipRequest
	if err := bindJSON(c, h.validate, &in, false); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.engine.Ship(c.UserContext(), stock.ShipInput{
		StockItemID:  c.Params("id"),
		Quantity:     in.Quantity,
		FromReserved: in.FromReserved,
		UserID:       GetUserID(c),
		ReferenceID:  in.ReferenceID,
		Notes:        in.Notes,
	})
	return h.writeMovement(c, res, err)
}

// Adjust POST /api/stock/items/:id/adjust
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustRequest
	if err := bindJSON(c, h.validate, &in, false); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.engine.Adjust(c.UserContext(), c.Params("id"), in.QuantityChange, GetUserID(c), in.Notes)
	return h.writeMovement(c, res, err)
}

// CycleCount POST /api/stock/items/:id/cycle-count
func (h *StockHandler) CycleCount(c *fiber.Ctx) error {
	var in dto.CycleCountRequest
	if err := bindJSON(c, h.validate, &in, false); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.engine.CycleCount(c.UserContext(), c.Params("id"), in.CountedOnHand, GetUserID(c), in.Notes)
	return h.writeMovement(c, res, err)
}

// History GET /api/stock/items/:id/transactions?limit=&offset=
func (h *StockHandler) History(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return h.writeError(c, errInvalidBody)
	}
	if err := h.validate.Struct(page); err != nil {
		return h.writeError(c, err)
	}
	page.DefaultPage()
	list, err := h.engine.History(c.UserContext(), c.Params("id"), page.Limit, page.Offset)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.TransactionListResponse{
		Items: dto.NewStockTransactionList(list),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// ByReference GET /api/stock/transactions?reference_id=
func (h *StockHandler) ByReference(c *fiber.Ctx) error {
	list, err := h.engine.ByReference(c.UserContext(), c.Query("reference_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"total": len(list),
		"items": dto.NewStockTransactionList(list),
	})
}

// Reverse POST /api/stock/transactions/:id/reverse
func (h *StockHandler) Reverse(c *fiber.Ctx) error {
	var in dto.ReverseRequest
	if err := bindJSON(c, h.validate, &in, true); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.engine.Reverse(c.UserContext(), c.Params("id"), GetUserID(c), in.Notes)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(movementResponse(res))
}

func (h *StockHandler) writeMovement(c *fiber.Ctx, res *stock.MovementResult, err error) error {
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(movementResponse(res))
}

func movementResponse(res *stock.MovementResult) dto.MovementResponse {
	out := dto.MovementResponse{
		StockItem: dto.NewStockItemResponse(res.StockItem),
		Purged:    res.Purged,
	}
	if res.Transaction != nil {
		txn := dto.NewStockTransactionResponse(res.Transaction)
		out.Transaction = &txn
	}
	return out
}

// writeError traduce errores de dominio a HTTP: 400 validación, 404 no encontrado,
// 409 regla de negocio, 500 el resto (sin filtrar detalles internos).
func (h *StockHandler) writeError(c *fiber.Ctx, err error) error {
	var (
		vErrs    validator.ValidationErrors
		notFound *domain.NotFoundError
		invalid  *domain.ValidationError
		short    *domain.InsufficientStockError
	)
	switch {
	case errors.Is(err, errInvalidBody):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	case errors.As(err, &vErrs):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: "datos inválidos", Details: validationDetails(vErrs),
		})
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: invalid.Error(), Details: map[string]any{"field": invalid.Field},
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Code: "NOT_FOUND", Message: notFound.Error(),
			Details: map[string]any{"resource": notFound.Resource, "id": notFound.ID},
		})
	case errors.As(err, &short):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "INSUFFICIENT_STOCK",
			Message: "stock insuficiente",
			Details: map[string]any{
				"stock_item_id": short.StockItemID,
				"pool":          short.Pool,
				"requested":     short.Requested,
				"available":     short.Available,
				"shortfall":     short.Shortfall(),
			},
		})
	case errors.Is(err, domain.ErrInvariantViolation):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVARIANT_VIOLATION", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("error no controlado en stock")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}
