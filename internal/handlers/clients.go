package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/mostrador/internal/apperrors"
	"github.com/example/mostrador/internal/erp"
	"github.com/example/mostrador/internal/utils"
)

// ClientHandler serves counterpart lookups proxied from the ERP.
type ClientHandler struct {
	erp *erp.Client
	log zerolog.Logger
}

// NewClientHandler constructs a ClientHandler.
func NewClientHandler(erpClient *erp.Client, log zerolog.Logger) *ClientHandler {
	return &ClientHandler{erp: erpClient, log: log.With().Str("handler", "clients").Logger()}
}

// Search looks up counterparts by name.
func (h *ClientHandler) Search(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)

	name := c.Query("search")
	clients, total, err := h.erp.SearchClients(c.Context(), name, pagination.Page, pagination.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("client search failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "client directory is unavailable")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    clients,
		"pagination": fiber.Map{
			"page":  pagination.Page,
			"limit": pagination.Limit,
			"total": total,
		},
	})
}
