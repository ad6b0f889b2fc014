package domain

// OrderPlaced is emitted once per committed order. Delivery downstream is
// at-least-once, so consumers dedupe by order number.
type OrderPlaced struct {
	OrderNumber string `json:"orderNumber"`
}
