// Package order implements checkout: cart validation, coupon application,
// and order persistence.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks an order through its lifecycle. Only completed orders count
// toward a customer's purchase history for first-time-buyer checks.
type Status string

const (
	// StatusPlaced is the initial state after checkout.
	StatusPlaced Status = "placed"
	// StatusCompleted marks a delivered and settled order.
	StatusCompleted Status = "completed"
)

// Order represents a placed customer order with pricing and discount details.
type Order struct {
	ID           string
	UserID       string
	Items        []OrderItem
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
	CouponCode   string
	FreeShipping bool
	Status       Status
	CreatedAt    time.Time
}

// OrderItem represents a single line item in an order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	// CountCompletedByUser returns the number of completed orders for the
	// given user. Checkout uses it to derive the first-time-buyer flag.
	CountCompletedByUser(ctx context.Context, userID string) (int, error)
}
