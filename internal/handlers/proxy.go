package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/mostrador/internal/apperrors"
	"github.com/example/mostrador/internal/erp"
)

// ProxyHandler forwards ad-hoc requests to the ERP API so back-office
// screens can reach endpoints without a dedicated handler. The access
// token is injected server side and never reaches the browser.
type ProxyHandler struct {
	erp *erp.Client
	log zerolog.Logger
}

// NewProxyHandler constructs a ProxyHandler.
func NewProxyHandler(erpClient *erp.Client, log zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{erp: erpClient, log: log.With().Str("handler", "proxy").Logger()}
}

// Forward relays the incoming request to the ERP and streams back the
// response as-is.
func (h *ProxyHandler) Forward(c *fiber.Ctx) error {
	path := c.Params("*")
	if path == "" {
		return fiber.NewError(fiber.StatusBadRequest, "proxy path is required")
	}

	query := map[string]string{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		query[string(key)] = string(value)
	})

	opts := erp.RequestOpts{
		Method: c.Method(),
		Path:   path,
		Query:  query,
	}

	if len(c.Body()) > 0 {
		var body any
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		opts.Body = body
	}

	resp, err := h.erp.Do(c.Context(), opts)
	if err != nil {
		h.log.Error().Err(err).Str("path", path).Msg("proxy request failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "upstream request failed")
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		c.Set("Content-Type", contentType)
	}
	return c.Status(resp.Status).Send(resp.Body)
}
