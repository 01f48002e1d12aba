package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/mostrador/internal/apperrors"
)

// ErrorHandler maps coded and fiber errors onto the JSON error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if coded := apperrors.As(err); coded != nil {
		return c.Status(apperrors.HTTPStatus(coded.Code())).JSON(fiber.Map{
			"success": false,
			"error":   coded.Message(),
			"code":    coded.Code(),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"success": false,
			"error":   fiberErr.Message,
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "internal server error",
	})
}
