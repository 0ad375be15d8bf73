package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/salaudeen22/samrat-agencies/internal/domain/coupon"
	"github.com/salaudeen22/samrat-agencies/internal/domain/product"
)

// Sentinel errors for order validation.
var ErrEmptyItems = fmt.Errorf("items required")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// CouponRejectedError indicates the eligibility evaluator refused the coupon
// for this user. Checkout surfaces the reason verbatim.
type CouponRejectedError struct {
	Code   string
	Reason string
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// Coupons is the slice of the coupon engine checkout depends on.
type Coupons interface {
	QuoteForCart(ctx context.Context, code, userID string, firstTimeBuyer bool,
		cartTotal decimal.Decimal, items []coupon.CartItem) (*coupon.Quote, error)
	Redeem(ctx context.Context, couponID, userID, orderID string, discount decimal.Decimal) error
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID     string
	Items      []OrderItem
	CouponCode string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order         *Order
	Products      []product.Product
	CouponMessage string
}

// Service encapsulates order placement business logic.
type Service struct {
	products product.Repository
	coupons  Coupons
	orders   Repository
}

// NewService creates an order Service with the required domain dependencies.
func NewService(products product.Repository, coupons Coupons, orders Repository) *Service {
	return &Service{
		products: products,
		coupons:  coupons,
		orders:   orders,
	}
}

// PlaceOrder validates items, fetches products in a single batch, applies a
// coupon when a code is provided, persists the order, and records the
// redemption in the usage ledger exactly once.
//
// Known gap, by contract with the coupon engine: there is no compensating
// transaction if a later step of order fulfilment fails after the redemption
// has been recorded.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	products, cartItems, subtotal, err := s.buildCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	var (
		quote         *coupon.Quote
		discount      = decimal.Zero
		freeShipping  bool
		couponMessage string
	)
	if req.CouponCode != "" {
		firstTime, err := s.isFirstTimeBuyer(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("resolve buyer history: %w", err)
		}

		quote, err = s.coupons.QuoteForCart(ctx, req.CouponCode, req.UserID, firstTime, subtotal, cartItems)
		if err != nil {
			return nil, fmt.Errorf("quote coupon: %w", err)
		}
		if !quote.Eligibility.Allowed {
			return nil, &CouponRejectedError{Code: req.CouponCode, Reason: quote.Eligibility.Reason}
		}

		discount = quote.Result.Discount
		couponMessage = quote.Result.Message
		if quote.Result.Applied() {
			freeShipping = quote.Result.FreeShipping
		}
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Items:        req.Items,
		Subtotal:     subtotal.Round(2),
		Discount:     discount.Round(2),
		Total:        total.Round(2),
		CouponCode:   couponCodeOf(quote),
		FreeShipping: freeShipping,
		Status:       StatusPlaced,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Record the redemption once, only when the coupon actually granted a
	// benefit for this cart.
	if quote != nil && quote.Result.Applied() {
		if err := s.coupons.Redeem(ctx, quote.Coupon.ID, req.UserID, o.ID, o.Discount); err != nil {
			return nil, fmt.Errorf("redeem coupon: %w", err)
		}
	}

	return &PlaceOrderResult{
		Order:         o,
		Products:      products,
		CouponMessage: couponMessage,
	}, nil
}

// QuoteCoupon prices a coupon against a prospective cart without placing an
// order or touching the ledger. Checkout previews use it.
func (s *Service) QuoteCoupon(ctx context.Context, userID string, items []OrderItem, code string) (*coupon.Quote, error) {
	_, cartItems, subtotal, err := s.buildCart(ctx, items)
	if err != nil {
		return nil, err
	}

	firstTime, err := s.isFirstTimeBuyer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve buyer history: %w", err)
	}

	return s.coupons.QuoteForCart(ctx, code, userID, firstTime, subtotal, cartItems)
}

// buildCart validates line items, batch-fetches their products, and assembles
// the cart snapshot the coupon engine prices against.
func (s *Service) buildCart(ctx context.Context, items []OrderItem) ([]product.Product, []coupon.CartItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, nil, decimal.Zero, ErrEmptyItems
	}

	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, nil, decimal.Zero, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, decimal.Zero, fmt.Errorf("get products: %w", err)
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	products := make([]product.Product, 0, len(items))
	cartItems := make([]coupon.CartItem, len(items))
	subtotal := decimal.Zero
	for i, item := range items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, nil, decimal.Zero, &ProductNotFoundError{ProductID: item.ProductID}
		}
		products = append(products, p)
		cartItems[i] = coupon.CartItem{
			ProductID:  p.ID,
			CategoryID: p.Category,
			Price:      p.Price,
			Quantity:   item.Quantity,
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return products, cartItems, subtotal, nil
}

// isFirstTimeBuyer derives the opaque flag the eligibility evaluator
// consumes. Anonymous checkouts are never first-time buyers.
func (s *Service) isFirstTimeBuyer(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	n, err := s.orders.CountCompletedByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func couponCodeOf(q *coupon.Quote) string {
	if q == nil {
		return ""
	}
	return q.Coupon.Code
}
