package domain

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order with this order number already exists")
)
