package coupon

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MsgApplied is the message returned on the successful calculation path.
const MsgApplied = "Coupon applied successfully"

// CartItem is a line item of the cart snapshot handed to the calculator.
// CategoryID may be empty; such items never match a category scope.
type CartItem struct {
	ProductID  string
	CategoryID string
	Price      decimal.Decimal
	Quantity   int
}

// DiscountResult is the calculator outcome consumed by checkout.
//
// FreeShipping always mirrors the coupon's flag; when Discount is zero the
// Message explains why, and the caller decides whether any benefit still
// applies.
type DiscountResult struct {
	Discount     decimal.Decimal
	FreeShipping bool
	Message      string
}

// Applied reports whether the coupon had monetary or shipping effect.
func (r DiscountResult) Applied() bool {
	return r.Message == MsgApplied
}

// CalculateDiscount computes the monetary discount a coupon grants for the
// given cart snapshot. It is a pure function: identical inputs always yield
// identical output.
//
// Floor checks (minimum purchase amount and quantity) are evaluated against
// the entire cart regardless of the coupon's application type. The base for
// the discount itself is scoped by application type. When bulk purchase
// rules are configured, the highest tier whose threshold the total quantity
// meets is computed over the same scoped base and the better of the two
// discounts wins. Intermediate math stays at full precision; only the final
// result is rounded to 2 decimal places.
func CalculateDiscount(c *Coupon, cartTotal decimal.Decimal, items []CartItem) DiscountResult {
	freeShipping := c.FreeShipping

	if cartTotal.LessThan(c.MinPurchaseAmount) {
		return DiscountResult{
			Discount:     decimal.Zero,
			FreeShipping: freeShipping,
			Message:      fmt.Sprintf("A minimum purchase of ₹%s is required to use this coupon", c.MinPurchaseAmount.StringFixed(2)),
		}
	}

	totalQty := totalQuantity(items)
	if totalQty < c.MinPurchaseQuantity {
		return DiscountResult{
			Discount:     decimal.Zero,
			FreeShipping: freeShipping,
			Message:      fmt.Sprintf("A minimum of %d items is required to use this coupon", c.MinPurchaseQuantity),
		}
	}

	base := scopedBase(c, cartTotal, items)
	discount := applyRule(c.DiscountType, c.DiscountValue, base, c.MaxDiscountAmount)

	if tier, ok := matchBulkTier(c.BulkPurchaseRules, totalQty); ok {
		bulk := applyRule(tier.DiscountType, tier.Value, base, c.MaxDiscountAmount)
		// Bulk pricing only ever improves the customer's outcome.
		if bulk.GreaterThan(discount) {
			discount = bulk
		}
	}

	if discount.IsZero() && c.ApplicationType != ApplicationCart {
		return DiscountResult{
			Discount:     decimal.Zero,
			FreeShipping: freeShipping,
			Message:      "Coupon does not apply to any items in your cart",
		}
	}

	return DiscountResult{
		Discount:     discount.Round(2),
		FreeShipping: freeShipping,
		Message:      MsgApplied,
	}
}

// scopedBase returns the subtotal the discount applies to. An empty scope
// set for product/category coupons yields a zero base, not an error.
func scopedBase(c *Coupon, cartTotal decimal.Decimal, items []CartItem) decimal.Decimal {
	switch c.ApplicationType {
	case ApplicationProduct:
		return matchingSubtotal(items, func(it CartItem) bool {
			return contains(c.ApplicableProducts, it.ProductID)
		})
	case ApplicationCategory:
		return matchingSubtotal(items, func(it CartItem) bool {
			return it.CategoryID != "" && contains(c.ApplicableCategories, it.CategoryID)
		})
	default:
		return cartTotal
	}
}

func matchingSubtotal(items []CartItem, match func(CartItem) bool) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if match(it) {
			sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	return sum
}

// applyRule computes a single discount schedule against the scoped base.
// Percentage results are clamped to maxDiscount when the cap is set; fixed
// discounts never exceed the base itself.
func applyRule(dt DiscountType, value, base, maxDiscount decimal.Decimal) decimal.Decimal {
	switch dt {
	case DiscountFixed:
		return decimal.Min(value, base)
	default:
		d := base.Mul(value).Div(hundred)
		if maxDiscount.IsPositive() && d.GreaterThan(maxDiscount) {
			d = maxDiscount
		}
		return d
	}
}

// matchBulkTier returns the highest-threshold bulk rule satisfied by the
// total cart quantity. Exactly meeting a threshold counts.
func matchBulkTier(rules []BulkRule, totalQty int) (BulkRule, bool) {
	if len(rules) == 0 {
		return BulkRule{}, false
	}
	sorted := make([]BulkRule, len(rules))
	copy(sorted, rules)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinQuantity > sorted[j].MinQuantity
	})
	for _, r := range sorted {
		if totalQty >= r.MinQuantity {
			return r, true
		}
	}
	return BulkRule{}, false
}

func totalQuantity(items []CartItem) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}
