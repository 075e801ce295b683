package handlers

import (
	"errors"
	"reflect"
	"strings"

	"loyalty-program-system/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// validate reports failed fields by their json names, matching the field map
// the service-level ValidationError produces.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// serviceError maps the service error taxonomy onto HTTP statuses:
// ValidationError → 422 with field detail, NotFoundError → 404, rest → 500.
func serviceError(c *fiber.Ctx, err error) error {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": fiber.Map{ve.Field: ve.Message},
		})
	}

	var nfe *services.NotFoundError
	if errors.As(err, &nfe) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": nfe.Error(),
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
		"cause": err.Error(),
	})
}

// validationFields flattens validator errors into a field → message map.
func validationFields(err error) fiber.Map {
	fields := fiber.Map{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = "failed on " + fe.Tag()
		}
	}
	return fields
}
