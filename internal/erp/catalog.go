package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/example/mostrador/internal/models"
)

// ProductFilter narrows a catalog search. Zero values are omitted from the
// query string.
type ProductFilter struct {
	Search          string
	Code            string
	CategoryCode    string
	SubcategoryCode string
	InStockOnly     bool
	Page            int
	PageSize        int
}

type productPage struct {
	Items []models.Product `json:"data"`
	Total int64            `json:"total_items"`
}

// SearchProducts lists catalog products matching the filter.
func (c *Client) SearchProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	query := map[string]string{}
	if filter.Search != "" {
		query["art_nom"] = filter.Search
	}
	if filter.Code != "" {
		query["art_cod"] = filter.Code
	}
	if filter.CategoryCode != "" {
		query["inv_gru_cod"] = filter.CategoryCode
	}
	if filter.SubcategoryCode != "" {
		query["inv_sub_gru_cod"] = filter.SubcategoryCode
	}
	if filter.InStockOnly {
		query["con_existencia"] = "true"
	}
	if filter.Page > 0 {
		query["pageNumber"] = strconv.Itoa(filter.Page)
	}
	if filter.PageSize > 0 {
		query["pageSize"] = strconv.Itoa(filter.PageSize)
	}

	var page productPage
	if err := c.getJSON(ctx, "articulos", query, &page); err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// GetProduct fetches a single catalog product by id.
func (c *Client) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	var wrapper struct {
		Data models.Product `json:"data"`
	}
	if err := c.getJSON(ctx, "articulos/"+productID, nil, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Data.ID == "" {
		return nil, fmt.Errorf("product %s: empty response", productID)
	}
	return &wrapper.Data, nil
}

// ListCategories lists inventory groups.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var wrapper struct {
		Data []models.Category `json:"data"`
	}
	if err := c.getJSON(ctx, "categorias", nil, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

// ListSubcategories lists inventory subgroups for a category code.
func (c *Client) ListSubcategories(ctx context.Context, categoryCode string) ([]models.Subcategory, error) {
	var wrapper struct {
		Data []models.Subcategory `json:"data"`
	}
	query := map[string]string{"inv_gru_cod": categoryCode}
	if err := c.getJSON(ctx, "subcategorias", query, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Data, nil
}

// SearchClients searches counterparts by name, paginated.
func (c *Client) SearchClients(ctx context.Context, name string, page, pageSize int) ([]models.Client, int64, error) {
	query := map[string]string{"nit_nom": name}
	if page > 0 {
		query["pageNumber"] = strconv.Itoa(page)
	}
	if pageSize > 0 {
		query["pageSize"] = strconv.Itoa(pageSize)
	}

	var wrapper struct {
		Data  []models.Client `json:"data"`
		Total int64           `json:"total_items"`
	}
	if err := c.getJSON(ctx, "nits", query, &wrapper); err != nil {
		return nil, 0, err
	}
	return wrapper.Data, wrapper.Total, nil
}

// ActivePromoEvent returns the currently active promotional event. A 404
// means no event is running and yields nil without error.
func (c *Client) ActivePromoEvent(ctx context.Context) (*models.PromoEvent, error) {
	resp, err := c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "eventos-promocionales/activo"})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, nil
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, fmt.Errorf("active event: status %d body %s", resp.Status, string(resp.Body))
	}

	var wrapper struct {
		Data *models.PromoEvent `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal active event response: %w", err)
	}
	return wrapper.Data, nil
}

// GetParameter looks up a named numeric parameter. A 404 means the parameter
// is not configured and yields nil without error.
func (c *Client) GetParameter(ctx context.Context, code string) (*models.Parameter, error) {
	resp, err := c.Do(ctx, RequestOpts{Method: http.MethodGet, Path: "parametros/" + code})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, nil
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, fmt.Errorf("parameter %s: status %d body %s", code, resp.Status, string(resp.Body))
	}

	var wrapper struct {
		Data models.Parameter `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("unmarshal parameter response: %w", err)
	}
	return &wrapper.Data, nil
}
