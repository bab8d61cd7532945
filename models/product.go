package models

import "github.com/shopspring/decimal"

type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	Category     string    `json:"category"`
	IsInCampaign bool      `json:"is_in_campaign"`
	Variants     []Variant `json:"variants,omitempty"`
}

// Variant is one purchasable configuration of a product. Price and discount
// are stored as DECIMAL columns and scanned straight into decimal values.
type Variant struct {
	ID                           int64           `json:"id"`
	ProductID                    int64           `json:"product_id"`
	ProductName                  string          `json:"product_name,omitempty"`
	Brand                        string          `json:"brand"`
	Size                         string          `json:"size"`
	Weight                       string          `json:"weight"`
	Price                        decimal.Decimal `json:"price"`
	CampaignDiscountPercentage   decimal.Decimal `json:"campaign_discount_percentage"`
	MinimumOrderQuantityForOffer int             `json:"minimum_order_quantity_for_offer"`
	Stock                        int             `json:"stock"`
}

// ProductFilter narrows the catalog listing. Zero values match everything.
type ProductFilter struct {
	Search     string
	Category   string
	InCampaign *bool
	Limit      int
	Offset     int
}
