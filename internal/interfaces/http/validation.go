package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var errInvalidBody = errors.New("cuerpo inválido")

// newValidator valida DTOs usando el nombre json de cada campo en los mensajes.
func newValidator() *validator.Validate {
	vld := validator.New(validator.WithRequiredStructEnabled())
	vld.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return vld
}

// bindJSON parsea el cuerpo en out y lo valida. Un cuerpo vacío se acepta si optional.
func bindJSON(c *fiber.Ctx, vld *validator.Validate, out any, optional bool) error {
	if len(c.Body()) > 0 || !optional {
		if err := c.BodyParser(out); err != nil {
			return errInvalidBody
		}
	}
	return vld.Struct(out)
}

// validationDetails campo -> regla incumplida.
func validationDetails(errs validator.ValidationErrors) map[string]any {
	out := make(map[string]any, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
