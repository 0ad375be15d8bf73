package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cartCoupon(dt DiscountType, value string) *Coupon {
	return &Coupon{
		Code:            "TEST",
		DiscountType:    dt,
		DiscountValue:   dec(value),
		ApplicationType: ApplicationCart,
	}
}

func item(productID, categoryID, price string, qty int) CartItem {
	return CartItem{ProductID: productID, CategoryID: categoryID, Price: dec(price), Quantity: qty}
}

func TestCalculateDiscount(t *testing.T) {
	tests := []struct {
		name         string
		coupon       *Coupon
		cartTotal    string
		items        []CartItem
		wantDiscount string
		wantMessage  string
		wantShipping bool
	}{
		{
			name:         "ten percent off cart",
			coupon:       cartCoupon(DiscountPercentage, "10"),
			cartTotal:    "1000",
			items:        []CartItem{item("p1", "", "1000", 1)},
			wantDiscount: "100.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "percentage capped by max discount amount",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "10")
				c.MaxDiscountAmount = dec("50")
				return c
			}(),
			cartTotal:    "1000",
			items:        []CartItem{item("p1", "", "1000", 1)},
			wantDiscount: "50.00",
			wantMessage:  MsgApplied,
		},
		{
			name:         "fixed discount never exceeds base",
			coupon:       cartCoupon(DiscountFixed, "200"),
			cartTotal:    "150",
			items:        []CartItem{item("p1", "", "150", 1)},
			wantDiscount: "150.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "minimum purchase amount not met",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "10")
				c.MinPurchaseAmount = dec("2000")
				return c
			}(),
			cartTotal:    "1500",
			items:        []CartItem{item("p1", "", "1500", 1)},
			wantDiscount: "0",
			wantMessage:  "A minimum purchase of ₹2000.00 is required to use this coupon",
		},
		{
			name: "minimum purchase amount met exactly",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "10")
				c.MinPurchaseAmount = dec("2000")
				return c
			}(),
			cartTotal:    "2000",
			items:        []CartItem{item("p1", "", "2000", 1)},
			wantDiscount: "200.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "minimum quantity not met",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountFixed, "50")
				c.MinPurchaseQuantity = 4
				return c
			}(),
			cartTotal:    "900",
			items:        []CartItem{item("p1", "", "300", 3)},
			wantDiscount: "0",
			wantMessage:  "A minimum of 4 items is required to use this coupon",
		},
		{
			name: "bulk tier beats regular discount",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "5")
				c.BulkPurchaseRules = []BulkRule{
					{MinQuantity: 5, DiscountType: DiscountPercentage, Value: dec("15")},
				}
				return c
			}(),
			cartTotal:    "1000",
			items:        []CartItem{item("p1", "", "250", 2), item("p2", "", "125", 4)},
			wantDiscount: "150.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "bulk tier threshold met exactly",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "5")
				c.BulkPurchaseRules = []BulkRule{
					{MinQuantity: 6, DiscountType: DiscountPercentage, Value: dec("15")},
				}
				return c
			}(),
			cartTotal:    "1000",
			items:        []CartItem{item("p1", "", "100", 2), item("p2", "", "200", 4)},
			wantDiscount: "150.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "highest satisfied bulk tier wins, tiers never stack",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "5")
				c.BulkPurchaseRules = []BulkRule{
					{MinQuantity: 3, DiscountType: DiscountPercentage, Value: dec("10")},
					{MinQuantity: 10, DiscountType: DiscountPercentage, Value: dec("25")},
					{MinQuantity: 5, DiscountType: DiscountPercentage, Value: dec("15")},
				}
				return c
			}(),
			cartTotal:    "2000",
			items:        []CartItem{item("p1", "", "200", 10)},
			wantDiscount: "500.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "regular discount kept when bulk tier is worse",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "20")
				c.BulkPurchaseRules = []BulkRule{
					{MinQuantity: 2, DiscountType: DiscountFixed, Value: dec("50")},
				}
				return c
			}(),
			cartTotal:    "1000",
			items:        []CartItem{item("p1", "", "500", 2)},
			wantDiscount: "200.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "product scope discounts matching items only",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "10")
				c.ApplicationType = ApplicationProduct
				c.ApplicableProducts = []string{"sofa-1"}
				return c
			}(),
			cartTotal:    "3000",
			items:        []CartItem{item("sofa-1", "sofas", "2000", 1), item("lamp-1", "lighting", "1000", 1)},
			wantDiscount: "200.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "empty product scope yields zero discount, not an error",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "10")
				c.ApplicationType = ApplicationProduct
				return c
			}(),
			cartTotal:    "3000",
			items:        []CartItem{item("sofa-1", "sofas", "3000", 1)},
			wantDiscount: "0",
			wantMessage:  "Coupon does not apply to any items in your cart",
		},
		{
			name: "category scope sums matching lines",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountFixed, "500")
				c.ApplicationType = ApplicationCategory
				c.ApplicableCategories = []string{"sofas"}
				return c
			}(),
			cartTotal:    "2600",
			items:        []CartItem{item("sofa-1", "sofas", "1200", 2), item("rug-1", "rugs", "200", 1)},
			wantDiscount: "500.00",
			wantMessage:  MsgApplied,
		},
		{
			name: "item without category never matches category scope",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "10")
				c.ApplicationType = ApplicationCategory
				c.ApplicableCategories = []string{"sofas"}
				return c
			}(),
			cartTotal:    "1000",
			items:        []CartItem{item("mystery-1", "", "1000", 1)},
			wantDiscount: "0",
			wantMessage:  "Coupon does not apply to any items in your cart",
		},
		{
			name: "free shipping flag passes through on floor failure",
			coupon: func() *Coupon {
				c := cartCoupon(DiscountPercentage, "10")
				c.MinPurchaseAmount = dec("5000")
				c.FreeShipping = true
				return c
			}(),
			cartTotal:    "1000",
			items:        []CartItem{item("p1", "", "1000", 1)},
			wantDiscount: "0",
			wantMessage:  "A minimum purchase of ₹5000.00 is required to use this coupon",
			wantShipping: true,
		},
		{
			name: "fractional percentage rounds to the nearest paisa",
			coupon: func() *Coupon {
				return cartCoupon(DiscountPercentage, "7.5")
			}(),
			cartTotal:    "333.33",
			items:        []CartItem{item("p1", "", "333.33", 1)},
			wantDiscount: "25.00",
			wantMessage:  MsgApplied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDiscount(tt.coupon, dec(tt.cartTotal), tt.items)

			assert.True(t, dec(tt.wantDiscount).Equal(got.Discount),
				"expected discount %s, got %s", tt.wantDiscount, got.Discount)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantShipping, got.FreeShipping)
		})
	}
}

func TestCalculateDiscount_Pure(t *testing.T) {
	c := cartCoupon(DiscountPercentage, "12.5")
	c.MaxDiscountAmount = dec("90")
	c.BulkPurchaseRules = []BulkRule{{MinQuantity: 3, DiscountType: DiscountPercentage, Value: dec("20")}}
	items := []CartItem{item("p1", "chairs", "199.99", 4)}

	first := CalculateDiscount(c, dec("799.96"), items)
	second := CalculateDiscount(c, dec("799.96"), items)

	require.True(t, first.Discount.Equal(second.Discount))
	assert.Equal(t, first, second)
}

func TestCalculateDiscount_PercentageMonotonicInCartTotal(t *testing.T) {
	c := cartCoupon(DiscountPercentage, "10")

	prev := decimal.Zero
	for _, total := range []string{"10", "250", "999.99", "1000", "4999", "100000"} {
		got := CalculateDiscount(c, dec(total), []CartItem{item("p1", "", total, 1)})
		assert.True(t, got.Discount.GreaterThanOrEqual(prev),
			"discount decreased at cart total %s", total)
		prev = got.Discount
	}
}

func TestCalculateDiscount_NeverExceedsCaps(t *testing.T) {
	fixed := cartCoupon(DiscountFixed, "5000")
	capped := cartCoupon(DiscountPercentage, "90")
	capped.MaxDiscountAmount = dec("120")

	for _, total := range []string{"1", "99.50", "1200", "88888"} {
		items := []CartItem{item("p1", "", total, 1)}

		got := CalculateDiscount(fixed, dec(total), items)
		assert.True(t, got.Discount.LessThanOrEqual(dec(total)),
			"fixed discount %s exceeds base %s", got.Discount, total)

		got = CalculateDiscount(capped, dec(total), items)
		assert.True(t, got.Discount.LessThanOrEqual(dec("120")),
			"capped discount %s exceeds cap at total %s", got.Discount, total)
	}
}
