// Package pricing derives order totals from the line collection and the
// pricing context. Resolve is pure: all inputs (lines, price type selection,
// manual discount, promotional event, wholesale threshold) are taken in one
// call so totals are never computed from a partial or stale combination.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/example/mostrador/internal/models"
)

// PriceType selects which unit price column totals are computed from.
type PriceType string

const (
	Retail    PriceType = "retail"
	Wholesale PriceType = "wholesale"
)

var hundred = decimal.NewFromInt(100)

// Context carries the order-level pricing inputs.
type Context struct {
	PriceType             PriceType
	ManualDiscountPercent float64
	Event                 *models.PromoEvent
	WholesaleThreshold    float64

	// LoadedHeaderDiscount is the general discount carried over from a
	// persisted document header during an edit session. It stands in for
	// the event discount when no event is active.
	LoadedHeaderDiscount float64
}

// Totals is the fully resolved pricing of an order.
type Totals struct {
	WholesaleTotal       decimal.Decimal
	RetailTotal          decimal.Decimal
	TotalValue           decimal.Decimal
	ManualDiscountAmount decimal.Decimal
	EventDiscountPercent decimal.Decimal
	EventDiscountAmount  decimal.Decimal
	GrandTotal           decimal.Decimal
	EffectivePriceType   PriceType
	PriceTypeLocked      bool

	// EventEligible marks lines that may carry the event-discount badge:
	// no individual offer, not a bundle, and a positive event percent.
	// The discount amount itself is order-level, never per line.
	EventEligible map[string]bool
}

// UnitPrice is the decision table mapping a line's offer state and the price
// type to the unit price source. A line with an active offer always sells at
// its offer price for the given type.
func UnitPrice(line models.OrderLine, pt PriceType) decimal.Decimal {
	switch {
	case line.HasOffer && pt == Wholesale:
		return decimal.NewFromFloat(line.OfferWholesalePrice)
	case line.HasOffer:
		return decimal.NewFromFloat(line.OfferRetailPrice)
	case pt == Wholesale:
		return decimal.NewFromFloat(line.WholesalePrice)
	default:
		return decimal.NewFromFloat(line.RetailPrice)
	}
}

// Resolve computes order totals. The order of operations is fixed: both
// candidate totals first, then the threshold override, then the manual
// discount, then the event discount, then the grand total. The grand total
// is never clamped; callers decide how to surface a negative result.
func Resolve(lines []models.OrderLine, ctx Context) Totals {
	wholesaleTotal := decimal.Zero
	retailTotal := decimal.Zero
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		wholesaleTotal = wholesaleTotal.Add(UnitPrice(line, Wholesale).Mul(qty))
		retailTotal = retailTotal.Add(UnitPrice(line, Retail).Mul(qty))
	}

	threshold := decimal.NewFromFloat(ctx.WholesaleThreshold)
	thresholdConfigured := threshold.IsPositive()
	thresholdMet := thresholdConfigured && wholesaleTotal.GreaterThanOrEqual(threshold)

	effective := ctx.PriceType
	locked := false
	if thresholdConfigured {
		locked = true
		if thresholdMet {
			effective = Wholesale
		} else {
			effective = Retail
		}
	}
	if effective != Wholesale {
		effective = Retail
	}

	totalValue := retailTotal
	if effective == Wholesale {
		totalValue = wholesaleTotal
	}

	manualDiscount := totalValue.
		Mul(decimal.NewFromFloat(ctx.ManualDiscountPercent)).
		Div(hundred)

	// The event discount is gated on a configured threshold: an active
	// event with no threshold parameter grants nothing under the current
	// business rule.
	eventGateOpen := ctx.Event != nil && ctx.Event.Active && thresholdConfigured

	eventPercent := decimal.Zero
	eventDiscount := decimal.Zero
	if eventGateOpen {
		if thresholdMet {
			eventPercent = decimal.NewFromFloat(ctx.Event.WholesaleDiscountPercent)
		} else {
			eventPercent = decimal.NewFromFloat(ctx.Event.RetailDiscountPercent)
		}
		eventDiscount = totalValue.Mul(eventPercent).Div(hundred)
	} else if ctx.Event == nil || !ctx.Event.Active {
		// Edit continuity: keep the header discount of the document being
		// edited when no event applies. Defaults to zero for new orders.
		eventDiscount = decimal.NewFromFloat(ctx.LoadedHeaderDiscount)
	}

	grandTotal := totalValue.Sub(manualDiscount).Sub(eventDiscount)

	eligible := make(map[string]bool, len(lines))
	for _, line := range lines {
		eligible[line.ProductID] = !line.HasOffer && !line.IsBundle && eventPercent.IsPositive()
	}

	return Totals{
		WholesaleTotal:       wholesaleTotal,
		RetailTotal:          retailTotal,
		TotalValue:           totalValue,
		ManualDiscountAmount: manualDiscount,
		EventDiscountPercent: eventPercent,
		EventDiscountAmount:  eventDiscount,
		GrandTotal:           grandTotal,
		EffectivePriceType:   effective,
		PriceTypeLocked:      locked,
		EventEligible:        eligible,
	}
}

// PriceListCode maps the effective price type to the ERP price-list code.
func PriceListCode(pt PriceType) string {
	if pt == Wholesale {
		return models.PriceListWholesale
	}
	return models.PriceListRetail
}
