package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LineItem struct {
	SKUCode        string `json:"sku_code"`
	UnitPriceCents int64  `json:"price"`
	Quantity       int    `json:"quantity"`
}

type Order struct {
	ID          int64      `json:"id"`
	OrderNumber string     `json:"order_number"`
	LineItems   []LineItem `json:"line_items"`
	TotalCents  int64      `json:"total_cents"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewOrder validates the requested line items and builds an unsaved order
// with a generated order number and a derived total. Orders are write-once:
// no field is mutated after creation except the store-assigned ID.
func NewOrder(items []LineItem) (Order, error) {
	if len(items) == 0 {
		return Order{}, errors.New("order must contain at least one line item")
	}
	var total int64
	for i, item := range items {
		if strings.TrimSpace(item.SKUCode) == "" {
			return Order{}, fmt.Errorf("line item %d: sku code is required", i)
		}
		if item.Quantity < 1 {
			return Order{}, fmt.Errorf("line item %d: quantity must be at least 1, got %d", i, item.Quantity)
		}
		if item.UnitPriceCents < 0 {
			return Order{}, fmt.Errorf("line item %d: price must be non-negative, got %d", i, item.UnitPriceCents)
		}
		total += int64(item.Quantity) * item.UnitPriceCents
	}
	return Order{
		OrderNumber: uuid.NewString(),
		LineItems:   items,
		TotalCents:  total,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// SKUCodes returns the distinct SKU codes of the order in first-seen order.
func (o Order) SKUCodes() []string {
	seen := make(map[string]struct{}, len(o.LineItems))
	skus := make([]string, 0, len(o.LineItems))
	for _, item := range o.LineItems {
		if _, ok := seen[item.SKUCode]; ok {
			continue
		}
		seen[item.SKUCode] = struct{}{}
		skus = append(skus, item.SKUCode)
	}
	return skus
}
