package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/mostrador/internal/apperrors"
	"github.com/example/mostrador/internal/erp"
	"github.com/example/mostrador/internal/utils"
)

// CatalogHandler serves catalog reads proxied from the ERP.
type CatalogHandler struct {
	erp *erp.Client
	log zerolog.Logger
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(erpClient *erp.Client, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{erp: erpClient, log: log.With().Str("handler", "catalog").Logger()}
}

// ListProducts searches catalog products with optional filters.
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	pagination := utils.ParsePagination(c)

	filter := erp.ProductFilter{
		Search:          c.Query("search"),
		Code:            c.Query("code"),
		CategoryCode:    c.Query("category"),
		SubcategoryCode: c.Query("subcategory"),
		InStockOnly:     c.QueryBool("in_stock", false),
		Page:            pagination.Page,
		PageSize:        pagination.Limit,
	}

	products, total, err := h.erp.SearchProducts(c.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("product search failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "catalog is unavailable")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"page":  pagination.Page,
			"limit": pagination.Limit,
			"total": total,
		},
	})
}

// GetProduct fetches one catalog product by id.
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	productID := c.Params("id")
	if productID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "product id is required")
	}

	product, err := h.erp.GetProduct(c.Context(), productID)
	if err != nil {
		h.log.Error().Err(err).Str("product", productID).Msg("product fetch failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "catalog is unavailable")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// ListCategories lists inventory groups.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.erp.ListCategories(c.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("category list failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "catalog is unavailable")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    categories,
	})
}

// ListSubcategories lists inventory subgroups for a category.
func (h *CatalogHandler) ListSubcategories(c *fiber.Ctx) error {
	categoryCode := c.Params("code")
	if categoryCode == "" {
		return fiber.NewError(fiber.StatusBadRequest, "category code is required")
	}

	subcategories, err := h.erp.ListSubcategories(c.Context(), categoryCode)
	if err != nil {
		h.log.Error().Err(err).Str("category", categoryCode).Msg("subcategory list failed")
		return apperrors.Wrap(apperrors.CodeDependency, err, "catalog is unavailable")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    subcategories,
	})
}
