package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrInvariantViolation = errors.New("invariante de stock violada")
	ErrPersistence        = errors.New("error de persistencia")
)

// NotFoundError indica qué recurso referenciado no existe (producto, bin o stock item).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q no encontrado", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFound construye un NotFoundError.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError entrada mal formada; se detecta antes de cualquier mutación.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// NewValidation construye un ValidationError.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Pools de cantidad sobre los que se evalúa una falta de stock.
const (
	PoolAvailable = "available"
	PoolReserved  = "reserved"
)

// InsufficientStockError regla de negocio: se pidió más de lo disponible (o reservado).
// Lleva la cantidad faltante para que el llamador pueda informarla.
type InsufficientStockError struct {
	StockItemID string
	Pool        string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente en %s (%s): solicitado %d, %s %d, faltan %d",
		e.StockItemID, e.Pool, e.Requested, e.Pool, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Shortfall unidades que faltan para cubrir lo solicitado.
func (e *InsufficientStockError) Shortfall() int64 {
	if e.Requested <= e.Available {
		return 0
	}
	return e.Requested - e.Available
}

// PersistenceError falla del almacenamiento subyacente (conexión, constraint, commit).
// El motor no reintenta: la transacción completa se revierte y el error sube al llamador.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// NewPersistence envuelve err como PersistenceError; nil si err es nil.
func NewPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
