// Package coupon implements the discount engine: the coupon rule model,
// the eligibility evaluator, the discount calculator, and the redemption
// ledger contract.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported discount shapes.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the applicable subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a fixed amount, capped at the applicable subtotal.
	DiscountFixed DiscountType = "fixed"
)

// ApplicationType determines which line items a coupon's discount applies to.
type ApplicationType string

const (
	// ApplicationCart applies the discount to the whole cart.
	ApplicationCart ApplicationType = "cart"
	// ApplicationProduct applies the discount to selected products only.
	ApplicationProduct ApplicationType = "product"
	// ApplicationCategory applies the discount to selected categories only.
	ApplicationCategory ApplicationType = "category"
)

// UserRestriction limits which customers may redeem a coupon.
type UserRestriction string

const (
	// RestrictionAll allows any customer.
	RestrictionAll UserRestriction = "all"
	// RestrictionFirstTime allows only customers with no completed orders.
	RestrictionFirstTime UserRestriction = "first-time"
	// RestrictionSpecificUsers allows only the listed user IDs.
	RestrictionSpecificUsers UserRestriction = "specific-users"
	// RestrictionNewUsers allows only customers with no completed orders.
	// Kept as a separate label for admin-facing semantics; evaluated the
	// same way as RestrictionFirstTime.
	RestrictionNewUsers UserRestriction = "new-users"
)

var (
	// ErrNotFound is returned when a coupon code or ID resolves to no record.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned on create/rename when the code is taken.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrNotValid is returned by the redemption path when the coupon fails
	// its validity re-check under the row lock (inactive, outside window).
	ErrNotValid = errors.New("coupon is not valid or has expired")
	// ErrUsageLimitReached is returned when the global redemption cap is hit.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrUserLimitReached is returned when the per-user redemption cap is hit.
	ErrUserLimitReached = errors.New("coupon usage limit reached for this user")
)

// BulkRule is a quantity-threshold tier offering an alternative discount
// schedule. Only the highest threshold met applies; tiers never stack.
type BulkRule struct {
	MinQuantity  int             `json:"minQuantity"`
	DiscountType DiscountType    `json:"discountType"`
	Value        decimal.Decimal `json:"discountValue"`
}

// Usage is one entry of the append-only redemption ledger.
type Usage struct {
	UserID          string
	OrderID         string
	DiscountApplied decimal.Decimal
	UsedAt          time.Time
}

// Coupon is a redeemable discount definition together with its usage ledger.
type Coupon struct {
	ID            string
	Code          string
	Description   string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal

	ApplicationType      ApplicationType
	ApplicableProducts   []string
	ApplicableCategories []string

	MinPurchaseAmount   decimal.Decimal
	MinPurchaseQuantity int
	// MaxDiscountAmount caps a percentage discount. Zero means no cap.
	MaxDiscountAmount decimal.Decimal
	FreeShipping      bool

	// UsageLimit is the global redemption cap. Zero means unlimited.
	UsageLimit int
	// UsageLimitPerUser is the per-user redemption cap. Defaults to 1.
	UsageLimitPerUser int
	UsedCount         int

	UserRestriction UserRestriction
	SpecificUsers   []string

	BulkPurchaseRules []BulkRule

	StartDate time.Time
	EndDate   time.Time
	IsActive  bool

	UsageHistory []Usage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeCode upper-cases and trims a coupon code. Codes are matched
// case-insensitively and stored upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid reports whether the coupon can currently be redeemed at all:
// active, inside its date window (both boundaries inclusive), and under its
// global usage cap. Derived on demand, never stored.
func (c *Coupon) IsValid(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return false
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return false
	}
	return true
}

// UsesBy counts ledger entries recorded for the given user. An empty user ID
// identifies anonymous checkouts and never matches any entry.
func (c *Coupon) UsesBy(userID string) int {
	if userID == "" {
		return 0
	}
	n := 0
	for _, u := range c.UsageHistory {
		if u.UserID == userID {
			n++
		}
	}
	return n
}

// UsageStats are derived read-only aggregates over the usage ledger.
type UsageStats struct {
	TotalUses     int
	UniqueUsers   int
	TotalDiscount decimal.Decimal
	AvgDiscount   decimal.Decimal
}

// Repository defines persistence operations for coupons and their ledger.
//
// RecordUsage must be atomic with respect to concurrent redemptions of the
// same coupon: implementations re-check validity and both usage caps while
// holding exclusive access to the coupon record, then append the ledger entry
// and increment the counter in the same transaction.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindByID(ctx context.Context, id string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	RecordUsage(ctx context.Context, couponID, userID, orderID string, discount decimal.Decimal) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context, id string) (*UsageStats, error)
}
