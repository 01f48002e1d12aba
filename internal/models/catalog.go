package models

// Product mirrors an inventory article as served by the ERP API.
type Product struct {
	ID              string  `json:"art_sec"`
	Code            string  `json:"art_cod"`
	Name            string  `json:"art_nom"`
	RetailPrice     float64 `json:"pre_det"`
	WholesalePrice  float64 `json:"pre_may"`
	Stock           int     `json:"existencia"`
	Image           string  `json:"art_url_img"`
	CategoryCode    string  `json:"inv_gru_cod"`
	SubcategoryCode string  `json:"inv_sub_gru_cod"`
	IsBundle        bool    `json:"art_bundle"`

	// Offer fields are only meaningful while tiene_oferta is true.
	HasOffer            bool    `json:"tiene_oferta"`
	OfferRetailPrice    float64 `json:"ofe_pre_det"`
	OfferWholesalePrice float64 `json:"ofe_pre_may"`
	OfferPercent        float64 `json:"ofe_descuento"`
	OfferCode           string  `json:"ofe_cod"`
	OfferDescription    string  `json:"ofe_obs"`
}

// Category is an inventory group from the ERP.
type Category struct {
	Code string `json:"inv_gru_cod"`
	Name string `json:"inv_gru_nom"`
}

// Subcategory is an inventory subgroup scoped to a category.
type Subcategory struct {
	Code         string `json:"inv_sub_gru_cod"`
	CategoryCode string `json:"inv_gru_cod"`
	Name         string `json:"inv_sub_gru_nom"`
}

// Client identifies the counterpart an order is billed to.
type Client struct {
	ID      string `json:"nit_sec"`
	TaxID   string `json:"nit_ide"`
	Name    string `json:"nit_nom"`
	Phone   string `json:"nit_tel"`
	Address string `json:"nit_dir"`

	// Set only when the client was loaded from an existing document.
	DocumentNumber string `json:"fac_nro,omitempty"`
}

// PromoEvent is a time-windowed campaign granting percentage discounts.
type PromoEvent struct {
	Name                     string  `json:"eve_nom"`
	StartsAt                 string  `json:"eve_fec_ini"`
	EndsAt                   string  `json:"eve_fec_fin"`
	RetailDiscountPercent    float64 `json:"eve_des_det"`
	WholesaleDiscountPercent float64 `json:"eve_des_may"`
	MinWholesaleAmount       float64 `json:"eve_min_may"`
	Active                   bool    `json:"eve_act"`
}

// Parameter is a named numeric setting maintained in the ERP.
type Parameter struct {
	Code  string  `json:"par_cod"`
	Value float64 `json:"par_val"`
}
