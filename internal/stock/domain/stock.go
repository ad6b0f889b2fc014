package domain

// Availability answers "can this SKU be promised right now" for one SKU.
// It is never persisted by callers; the stock table is the only truth.
type Availability struct {
	SKUCode   string `json:"sku_code"`
	Available bool   `json:"available"`
}

// Item is one stocked SKU. The zero value stands in for an unknown SKU,
// which can never be promised.
type Item struct {
	SKUCode  string
	Quantity int
}

func (i Item) Available() bool {
	return i.Quantity > 0
}
