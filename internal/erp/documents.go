package erp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/example/mostrador/internal/models"
)

// CreateDocumentResult carries the identifiers the ERP assigns on creation.
type CreateDocumentResult struct {
	DocumentID string `json:"fac_sec"`
	Number     string `json:"fac_nro"`
}

// GetDocument fetches a persisted quote or invoice with its detail lines.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	var wrapper struct {
		Data models.Document `json:"data"`
	}
	if err := c.getJSON(ctx, "order/"+documentID, nil, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Data.Header.Type == "" {
		return nil, fmt.Errorf("document %s: empty response", documentID)
	}
	return &wrapper.Data, nil
}

// CreateDocument posts a new quote or invoice.
func (c *Client) CreateDocument(ctx context.Context, doc models.Document) (*CreateDocumentResult, error) {
	var wrapper struct {
		Data CreateDocumentResult `json:"data"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "order", doc, &wrapper); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if wrapper.Data.DocumentID == "" {
		return nil, errors.New("create document: response missing fac_sec")
	}
	return &wrapper.Data, nil
}

// UpdateDocument replaces a persisted document. Callers editing an invoice
// must merge origin cross-references into doc before calling; see
// document.Builder.
func (c *Client) UpdateDocument(ctx context.Context, documentID string, doc models.Document) error {
	if err := c.sendJSON(ctx, http.MethodPut, "order/"+documentID, doc, nil); err != nil {
		return fmt.Errorf("update document %s: %w", documentID, err)
	}
	return nil
}
