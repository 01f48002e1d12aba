package session

import (
	"github.com/example/mostrador/internal/models"
)

// Outcome is the discriminated result of a session mutation. Boundary cases
// (stock exhausted, decrement of a missing line) are explicit outcomes, not
// errors: the register UI absorbs them without interrupting rapid clicking.
type Outcome string

const (
	OutcomeAdded       Outcome = "added"
	OutcomeIncremented Outcome = "incremented"
	OutcomeCapped      Outcome = "capped"
	OutcomeOutOfStock  Outcome = "out_of_stock"
	OutcomeDecremented Outcome = "decremented"
	OutcomeRemoved     Outcome = "removed"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeUpdated     Outcome = "updated"
)

// Price type selection for the order.
const (
	PriceTypeRetail    = "retail"
	PriceTypeWholesale = "wholesale"
)

// Session is the in-progress order owned by one composing user: the line
// collection plus the pricing inputs that do not belong to any single line.
type Session struct {
	Lines                 []models.OrderLine `json:"lines"`
	Client                *models.Client     `json:"client,omitempty"`
	PriceType             string             `json:"price_type"`
	ManualDiscountPercent float64            `json:"manual_discount_percent"`

	// LoadedHeaderDiscount carries the general discount of a persisted
	// document header through an edit session, so totals stay continuous
	// when no promotional event is active.
	LoadedHeaderDiscount float64 `json:"loaded_header_discount"`

	// Set while editing a persisted document.
	EditingDocumentID string `json:"editing_document_id,omitempty"`
	EditingDocType    string `json:"editing_doc_type,omitempty"`
}

// New returns an empty session with retail pricing selected.
func New() *Session {
	return &Session{PriceType: PriceTypeRetail}
}

// LinePatch updates display-only fields on a line. Nil fields are left
// untouched; quantity is never part of a patch.
type LinePatch struct {
	Name  *string
	Image *string
}

// AddLine adds a product to the order, or bumps its quantity. Quantity never
// exceeds the line's snapshotted stock.
func (s *Session) AddLine(p models.Product) Outcome {
	if p.Stock <= 0 {
		return OutcomeOutOfStock
	}

	for i := range s.Lines {
		if s.Lines[i].ProductID != p.ID {
			continue
		}
		if s.Lines[i].Quantity >= s.Lines[i].Stock {
			return OutcomeCapped
		}
		s.Lines[i].Quantity++
		return OutcomeIncremented
	}

	s.Lines = append(s.Lines, models.NewOrderLine(p))
	return OutcomeAdded
}

// DecrementLine lowers a line's quantity by one, removing the line when it
// reaches zero.
func (s *Session) DecrementLine(productID string) Outcome {
	for i := range s.Lines {
		if s.Lines[i].ProductID != productID {
			continue
		}
		s.Lines[i].Quantity--
		if s.Lines[i].Quantity > 0 {
			return OutcomeDecremented
		}
		s.Lines = append(s.Lines[:i], s.Lines[i+1:]...)
		return OutcomeRemoved
	}
	return OutcomeNotFound
}

// UpdateLineField patches display-only fields after a background refresh.
func (s *Session) UpdateLineField(productID string, patch LinePatch) Outcome {
	for i := range s.Lines {
		if s.Lines[i].ProductID != productID {
			continue
		}
		if patch.Name != nil {
			s.Lines[i].Name = *patch.Name
		}
		if patch.Image != nil {
			s.Lines[i].Image = *patch.Image
		}
		return OutcomeUpdated
	}
	return OutcomeNotFound
}

// Reset empties the order lines and edit state. The selected client is kept;
// submit-success clears the whole session by deleting it from the store.
func (s *Session) Reset() {
	s.Lines = nil
	s.ManualDiscountPercent = 0
	s.LoadedHeaderDiscount = 0
	s.EditingDocumentID = ""
	s.EditingDocType = ""
}

// IsEmpty reports whether the order holds no lines.
func (s *Session) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Line returns the line for a product id, or nil.
func (s *Session) Line(productID string) *models.OrderLine {
	for i := range s.Lines {
		if s.Lines[i].ProductID == productID {
			return &s.Lines[i]
		}
	}
	return nil
}
