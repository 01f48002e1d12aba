package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/mostrador/internal/apperrors"
	"github.com/example/mostrador/internal/erp"
)

// PromotionHandler exposes promotional event and parameter lookups.
type PromotionHandler struct {
	erp *erp.Client
	log zerolog.Logger
}

// NewPromotionHandler constructs a PromotionHandler.
func NewPromotionHandler(erpClient *erp.Client, log zerolog.Logger) *PromotionHandler {
	return &PromotionHandler{erp: erpClient, log: log.With().Str("handler", "promotions").Logger()}
}

// ActiveEvent returns the currently running promotional event, if any.
func (h *PromotionHandler) ActiveEvent(c *fiber.Ctx) error {
	event, err := h.erp.ActivePromoEvent(c.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("active event fetch failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "promotions are unavailable")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    event,
	})
}

// GetParameter looks up a named business parameter.
func (h *PromotionHandler) GetParameter(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "parameter code is required")
	}

	parameter, err := h.erp.GetParameter(c.Context(), code)
	if err != nil {
		h.log.Error().Err(err).Str("code", code).Msg("parameter fetch failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "parameters are unavailable")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    parameter,
	})
}
