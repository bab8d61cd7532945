package models

type CartItem struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type CartUpdate struct {
	VariantID int64  `json:"variant_id"`
	Action    string `json:"action"`
}

type CartResponse struct {
	Items     []CartItemResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	CartTotal string             `json:"cart_total"`
}

type CartItemResponse struct {
	VariantID   int64  `json:"variant_id"`
	ProductName string `json:"product_name"`
	Brand       string `json:"brand"`
	Quantity    int    `json:"quantity"`
	Stock       int    `json:"stock"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}
