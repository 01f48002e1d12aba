package models

// OrderLine is one product's presence in the in-progress order. Prices are
// snapshotted from the catalog at the moment the line is created; the
// pre-offer list prices stay in RetailPrice/WholesalePrice so the UI can
// render strike-through pricing next to an active offer.
type OrderLine struct {
	ProductID      string  `json:"product_id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	RetailPrice    float64 `json:"retail_price"`
	WholesalePrice float64 `json:"wholesale_price"`
	Quantity       int     `json:"quantity"`
	Stock          int     `json:"stock"`
	Image          string  `json:"image"`
	IsBundle       bool    `json:"is_bundle"`

	HasOffer            bool    `json:"has_offer"`
	OfferRetailPrice    float64 `json:"offer_retail_price"`
	OfferWholesalePrice float64 `json:"offer_wholesale_price"`
	OfferPercent        float64 `json:"offer_percent"`
	OfferCode           string  `json:"offer_code"`
	OfferDescription    string  `json:"offer_description"`
}

// NewOrderLine snapshots a catalog product into an order line with quantity 1.
func NewOrderLine(p Product) OrderLine {
	return OrderLine{
		ProductID:           p.ID,
		Code:                p.Code,
		Name:                p.Name,
		RetailPrice:         p.RetailPrice,
		WholesalePrice:      p.WholesalePrice,
		Quantity:            1,
		Stock:               p.Stock,
		Image:               p.Image,
		IsBundle:            p.IsBundle,
		HasOffer:            p.HasOffer,
		OfferRetailPrice:    p.OfferRetailPrice,
		OfferWholesalePrice: p.OfferWholesalePrice,
		OfferPercent:        p.OfferPercent,
		OfferCode:           p.OfferCode,
		OfferDescription:    p.OfferDescription,
	}
}
