// Package document translates a resolved order session into the ERP wire
// payload for quote (COT) and invoice (VTA) creation or update.
package document

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/mostrador/internal/models"
	"github.com/example/mostrador/internal/pricing"
	"github.com/example/mostrador/internal/session"
)

// Fetcher loads a persisted document; satisfied by erp.Client.
type Fetcher interface {
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
}

// Input bundles everything the builder needs for one submission.
type Input struct {
	Session  *session.Session
	Totals   pricing.Totals
	DocType  string
	Username string
}

// Build maps the session and its resolved totals into a wire document.
// The submitted header discount is always the resolved event-discount
// amount (which already falls back to the loaded header discount during
// edits); the manual per-order discount never reaches the header.
func Build(in Input) (models.Document, error) {
	sess := in.Session
	if sess == nil || sess.IsEmpty() {
		return models.Document{}, fmt.Errorf("order is empty")
	}
	if sess.Client == nil {
		return models.Document{}, fmt.Errorf("no client selected")
	}
	if in.Username == "" {
		return models.Document{}, fmt.Errorf("missing user identity")
	}
	if in.DocType != models.DocumentTypeQuote && in.DocType != models.DocumentTypeInvoice {
		return models.Document{}, fmt.Errorf("unknown document type %q", in.DocType)
	}

	nature := models.LineNatureCreate
	if in.DocType == models.DocumentTypeInvoice {
		nature = models.LineNatureConsume
	}

	lines := make([]models.DocumentLine, 0, len(sess.Lines))
	for _, line := range sess.Lines {
		lines = append(lines, models.DocumentLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: round2(unitPrice(line, in.Totals.EffectivePriceType)),
			Nature:    nature,
		})
	}

	header := models.DocumentHeader{
		Type:           in.DocType,
		ClientID:       sess.Client.ID,
		PriceListCode:  pricing.PriceListCode(in.Totals.EffectivePriceType),
		HeaderDiscount: round2(in.Totals.EventDiscountAmount),
		Total:          round2(in.Totals.GrandTotal),
		SellerUsername: in.Username,
	}

	return models.Document{Header: header, Lines: lines, Client: sess.Client}, nil
}

// MergeOriginRefs restores each line's origin cross-references when updating
// a persisted invoice. The edit session does not retain those link fields
// once the user starts mutating the order, so the current document is
// re-fetched and mapped by product id. A failed fetch aborts the whole
// update: the ERP must never receive an invoice with stale or missing
// origin references.
func MergeOriginRefs(ctx context.Context, fetcher Fetcher, documentID string, doc models.Document) (models.Document, error) {
	existing, err := fetcher.GetDocument(ctx, documentID)
	if err != nil {
		return models.Document{}, fmt.Errorf("fetch document %s for origin refs: %w", documentID, err)
	}

	byProduct := make(map[string]models.DocumentLine, len(existing.Lines))
	for _, line := range existing.Lines {
		byProduct[line.ProductID] = line
	}

	for i := range doc.Lines {
		if orig, ok := byProduct[doc.Lines[i].ProductID]; ok {
			doc.Lines[i].OriginLineID = orig.OriginLineID
			doc.Lines[i].OriginDocumentID = orig.OriginDocumentID
		}
	}
	return doc, nil
}

// unitPrice selects the submitted line price. Under retail pricing a product
// with no retail price configured sells at its wholesale price instead of
// going out at zero.
func unitPrice(line models.OrderLine, pt pricing.PriceType) decimal.Decimal {
	price := pricing.UnitPrice(line, pt)
	if pt == pricing.Retail && !price.IsPositive() {
		return pricing.UnitPrice(line, pricing.Wholesale)
	}
	return price
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
