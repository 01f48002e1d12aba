package models

// Document types and line nature flags as the ERP encodes them.
const (
	DocumentTypeQuote   = "COT"
	DocumentTypeInvoice = "VTA"

	LineNatureCreate   = "c"
	LineNatureConsume  = "-"
	PriceListRetail    = "1"
	PriceListWholesale = "2"
)

// DocumentHeader is the persisted header of a quote or invoice.
type DocumentHeader struct {
	Number         string  `json:"fac_nro,omitempty"`
	Type           string  `json:"fac_tip"`
	Status         string  `json:"fac_est,omitempty"`
	ClientID       string  `json:"nit_sec"`
	PriceListCode  string  `json:"lis_pre_cod"`
	HeaderDiscount float64 `json:"fac_des_gen"`
	Total          float64 `json:"fac_total,omitempty"`
	SellerUsername string  `json:"fac_usu_cod,omitempty"`
}

// DocumentLine is one detail row of a quote or invoice.
type DocumentLine struct {
	ProductID    string  `json:"art_sec"`
	Quantity     int     `json:"kar_uni"`
	UnitPrice    float64 `json:"kar_pre_pub"`
	Nature       string  `json:"kar_nat"`
	LineDiscount float64 `json:"kar_des_uno"`

	// Cross-references back to the originating document, present only on
	// lines of persisted invoices derived from an earlier document.
	OriginLineID     string `json:"kar_kar_sec,omitempty"`
	OriginDocumentID string `json:"kar_fac_sec,omitempty"`
}

// Document bundles a header with its detail lines.
type Document struct {
	Header DocumentHeader `json:"header"`
	Lines  []DocumentLine `json:"detalle"`
	Client *Client        `json:"cliente,omitempty"`
}
