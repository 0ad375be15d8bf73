package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validation errors surfaced at the admin boundary, before any engine logic.
var (
	ErrCodeRequired        = errors.New("coupon code is required")
	ErrInvalidDateRange    = errors.New("start date must be before end date")
	ErrInvalidDiscount     = errors.New("discount value must be non-negative")
	ErrPercentageOverLimit = errors.New("percentage discount cannot exceed 100")
)

// Quote is the outcome of evaluating a coupon against a cart snapshot:
// the resolved coupon, whether the user may redeem it, and what it is worth.
type Quote struct {
	Coupon      *Coupon
	Eligibility Eligibility
	Result      DiscountResult
}

// Service exposes the coupon engine operations: quoting a coupon against a
// cart, recording redemptions, and the admin lifecycle.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// QuoteForCart resolves a coupon by code, evaluates eligibility for the
// requesting user, and computes the discount for the cart snapshot.
// Eligibility failures and zero-discount outcomes are reported in the Quote,
// not as errors; only lookup and infrastructure failures return an error.
func (s *Service) QuoteForCart(
	ctx context.Context,
	code, userID string,
	firstTimeBuyer bool,
	cartTotal decimal.Decimal,
	items []CartItem,
) (*Quote, error) {
	c, err := s.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	q := &Quote{Coupon: c}
	q.Eligibility = CanRedeem(c, userID, firstTimeBuyer, s.now())
	if !q.Eligibility.Allowed {
		return q, nil
	}

	q.Result = CalculateDiscount(c, cartTotal, items)
	return q, nil
}

// Redeem records one redemption against the ledger: a usage entry for the
// order plus a counter increment, atomically. It must be called at most once
// per placed order; the order flow owns that guarantee.
func (s *Service) Redeem(ctx context.Context, couponID, userID, orderID string, discount decimal.Decimal) error {
	if err := s.repo.RecordUsage(ctx, couponID, userID, orderID, discount); err != nil {
		return errors.Wrap(err, "record coupon usage")
	}
	return nil
}

// Create validates and persists a new coupon definition.
func (s *Service) Create(ctx context.Context, c *Coupon) error {
	if err := validate(c); err != nil {
		return err
	}
	c.Code = NormalizeCode(c.Code)
	if c.UsageLimitPerUser <= 0 {
		c.UsageLimitPerUser = 1
	}
	if c.ApplicationType == "" {
		c.ApplicationType = ApplicationCart
	}
	if c.UserRestriction == "" {
		c.UserRestriction = RestrictionAll
	}
	return s.repo.Create(ctx, c)
}

// Update validates and persists changes to an existing coupon. The usage
// counter and ledger are never writable through this path.
func (s *Service) Update(ctx context.Context, c *Coupon) error {
	if err := validate(c); err != nil {
		return err
	}
	c.Code = NormalizeCode(c.Code)
	if c.UsageLimitPerUser <= 0 {
		c.UsageLimitPerUser = 1
	}
	return s.repo.Update(ctx, c)
}

// Delete removes a coupon. Once a coupon has recorded redemptions it is
// deactivated instead, preserving the audit ledger. The returned flag
// reports whether deletion degraded to deactivation.
func (s *Service) Delete(ctx context.Context, id string) (deactivated bool, err error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if c.UsedCount > 0 {
		return true, s.repo.Deactivate(ctx, id)
	}
	return false, s.repo.Delete(ctx, id)
}

// Get returns a coupon with its usage history.
func (s *Service) Get(ctx context.Context, id string) (*Coupon, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all coupon definitions.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}

// Stats returns derived aggregates over a coupon's usage ledger.
func (s *Service) Stats(ctx context.Context, id string) (*UsageStats, error) {
	return s.repo.Stats(ctx, id)
}

func validate(c *Coupon) error {
	if NormalizeCode(c.Code) == "" {
		return ErrCodeRequired
	}
	if !c.StartDate.Before(c.EndDate) {
		return ErrInvalidDateRange
	}
	if c.DiscountValue.IsNegative() {
		return ErrInvalidDiscount
	}
	if c.DiscountType == DiscountPercentage && c.DiscountValue.GreaterThan(hundred) {
		return ErrPercentageOverLimit
	}
	for _, r := range c.BulkPurchaseRules {
		if r.Value.IsNegative() {
			return ErrInvalidDiscount
		}
		if r.DiscountType == DiscountPercentage && r.Value.GreaterThan(hundred) {
			return ErrPercentageOverLimit
		}
	}
	return nil
}
