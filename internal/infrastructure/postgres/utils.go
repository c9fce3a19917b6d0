package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return hasCode(err, "23505")
}

// isCheckViolation verifica si un error es una violación de CHECK (23514).
func isCheckViolation(err error) bool {
	return hasCode(err, "23514")
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return strings.Contains(err.Error(), code)
}

// wrapErr traduce errores del driver al modelo de errores de dominio.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isCheckViolation(err) {
		return domain.ErrInvariantViolation
	}
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	return domain.NewPersistence(op, err)
}
