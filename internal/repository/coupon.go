package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/salaudeen22/samrat-agencies/internal/domain/coupon"
)

const pgUniqueViolationCode = "23505"

const (
	couponColumns = `id, code, description, discount_type, discount_value,
		application_type, applicable_products, applicable_categories,
		min_purchase_amount, min_purchase_quantity, max_discount_amount,
		free_shipping, usage_limit, usage_limit_per_user, used_count,
		user_restriction, specific_users, bulk_purchase_rules,
		start_date, end_date, is_active, created_at, updated_at`

	findCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = UPPER(TRIM($1))`

	findCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	insertCouponSQL = `INSERT INTO coupons (
		code, description, discount_type, discount_value,
		application_type, applicable_products, applicable_categories,
		min_purchase_amount, min_purchase_quantity, max_discount_amount,
		free_shipping, usage_limit, usage_limit_per_user,
		user_restriction, specific_users, bulk_purchase_rules,
		start_date, end_date, is_active
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	RETURNING id, created_at, updated_at`

	updateCouponSQL = `UPDATE coupons SET
		code = $2, description = $3, discount_type = $4, discount_value = $5,
		application_type = $6, applicable_products = $7, applicable_categories = $8,
		min_purchase_amount = $9, min_purchase_quantity = $10, max_discount_amount = $11,
		free_shipping = $12, usage_limit = $13, usage_limit_per_user = $14,
		user_restriction = $15, specific_users = $16, bulk_purchase_rules = $17,
		start_date = $18, end_date = $19, is_active = $20, updated_at = now()
	WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	deactivateCouponSQL = `UPDATE coupons SET is_active = FALSE, updated_at = now() WHERE id = $1`

	deactivateExpiredSQL = `UPDATE coupons SET is_active = FALSE, updated_at = now()
		WHERE is_active AND end_date < $1`

	lockCouponSQL = `SELECT is_active, start_date, end_date, usage_limit, usage_limit_per_user, used_count
		FROM coupons WHERE id = $1 FOR UPDATE`

	countUserUsagesSQL = `SELECT count(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`

	insertUsageSQL = `INSERT INTO coupon_usages (coupon_id, user_id, order_id, discount_applied)
		VALUES ($1, NULLIF($2, ''), $3, $4)`

	incrementUsedCountSQL = `UPDATE coupons SET used_count = used_count + 1, updated_at = now() WHERE id = $1`

	usageHistorySQL = `SELECT COALESCE(user_id, ''), order_id, discount_applied, used_at
		FROM coupon_usages WHERE coupon_id = $1 ORDER BY used_at, id`

	usageStatsSQL = `SELECT count(*),
		count(DISTINCT user_id) FILTER (WHERE user_id IS NOT NULL),
		COALESCE(sum(discount_applied), 0)
		FROM coupon_usages WHERE coupon_id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by code, case-insensitively, together with
// its usage history. Returns coupon.ErrNotFound when no record matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.findOne(ctx, findCouponByCodeSQL, code)
}

// FindByID looks up a coupon by ID together with its usage history.
func (r *CouponRepository) FindByID(ctx context.Context, id string) (*coupon.Coupon, error) {
	return r.findOne(ctx, findCouponByIDSQL, id)
}

func (r *CouponRepository) findOne(ctx context.Context, sql, arg string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding coupon: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon: %w", err)
	}

	history, err := r.loadHistory(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.UsageHistory = history
	return &c, nil
}

// List returns all coupon definitions, newest first, without their ledgers.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create persists a new coupon definition. A code collision maps to
// coupon.ErrDuplicateCode.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	rules, err := json.Marshal(c.BulkPurchaseRules)
	if err != nil {
		return fmt.Errorf("marshaling bulk rules: %w", err)
	}

	err = r.pool.QueryRow(ctx, insertCouponSQL,
		c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		string(c.ApplicationType), emptyIfNil(c.ApplicableProducts), emptyIfNil(c.ApplicableCategories),
		c.MinPurchaseAmount, c.MinPurchaseQuantity, c.MaxDiscountAmount,
		c.FreeShipping, c.UsageLimit, c.UsageLimitPerUser,
		string(c.UserRestriction), emptyIfNil(c.SpecificUsers), rules,
		c.StartDate, c.EndDate, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update rewrites a coupon definition. The used_count column and the ledger
// are not touched by this path.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	rules, err := json.Marshal(c.BulkPurchaseRules)
	if err != nil {
		return fmt.Errorf("marshaling bulk rules: %w", err)
	}

	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		string(c.ApplicationType), emptyIfNil(c.ApplicableProducts), emptyIfNil(c.ApplicableCategories),
		c.MinPurchaseAmount, c.MinPurchaseQuantity, c.MaxDiscountAmount,
		c.FreeShipping, c.UsageLimit, c.UsageLimitPerUser,
		string(c.UserRestriction), emptyIfNil(c.SpecificUsers), rules,
		c.StartDate, c.EndDate, c.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon record. Callers guard the audit-preservation rule;
// the repository deletes unconditionally.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Deactivate soft-disables a coupon.
func (r *CouponRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deactivateCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deactivating coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// RecordUsage appends a ledger entry and increments the usage counter in a
// single transaction. The coupon row is locked with SELECT ... FOR UPDATE and
// validity plus both usage caps are re-checked under the lock, closing the
// check-then-act gap between eligibility evaluation and redemption.
func (r *CouponRepository) RecordUsage(ctx context.Context, couponID, userID, orderID string, discount decimal.Decimal) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning redemption transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		isActive         bool
		startDate        time.Time
		endDate          time.Time
		usageLimit       int
		limitPerUser     int
		usedCount        int
	)
	err = tx.QueryRow(ctx, lockCouponSQL, couponID).Scan(
		&isActive, &startDate, &endDate, &usageLimit, &limitPerUser, &usedCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrNotFound
		}
		return fmt.Errorf("locking coupon %q: %w", couponID, err)
	}

	now := time.Now()
	if !isActive || now.Before(startDate) || now.After(endDate) {
		return coupon.ErrNotValid
	}
	if usageLimit > 0 && usedCount >= usageLimit {
		return coupon.ErrUsageLimitReached
	}

	if userID != "" && limitPerUser > 0 {
		var userUses int
		if err := tx.QueryRow(ctx, countUserUsagesSQL, couponID, userID).Scan(&userUses); err != nil {
			return fmt.Errorf("counting user usages for coupon %q: %w", couponID, err)
		}
		if userUses >= limitPerUser {
			return coupon.ErrUserLimitReached
		}
	}

	if _, err := tx.Exec(ctx, insertUsageSQL, couponID, userID, orderID, discount); err != nil {
		return fmt.Errorf("appending usage for coupon %q: %w", couponID, err)
	}
	if _, err := tx.Exec(ctx, incrementUsedCountSQL, couponID); err != nil {
		return fmt.Errorf("incrementing used count for coupon %q: %w", couponID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing redemption for coupon %q: %w", couponID, err)
	}
	return nil
}

// DeactivateExpired flips is_active off for every active coupon whose end
// date lies before now. It returns the number of coupons deactivated.
func (r *CouponRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deactivateExpiredSQL, now)
	if err != nil {
		return 0, fmt.Errorf("deactivating expired coupons: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats aggregates the usage ledger of one coupon.
func (r *CouponRepository) Stats(ctx context.Context, id string) (*coupon.UsageStats, error) {
	if _, err := r.findHeader(ctx, id); err != nil {
		return nil, err
	}

	var stats coupon.UsageStats
	err := r.pool.QueryRow(ctx, usageStatsSQL, id).Scan(
		&stats.TotalUses, &stats.UniqueUsers, &stats.TotalDiscount,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating usage stats for coupon %q: %w", id, err)
	}
	if stats.TotalUses > 0 {
		stats.AvgDiscount = stats.TotalDiscount.Div(decimal.NewFromInt(int64(stats.TotalUses))).Round(2)
	} else {
		stats.AvgDiscount = decimal.Zero
	}
	return &stats, nil
}

func (r *CouponRepository) findHeader(ctx context.Context, id string) (string, error) {
	var got string
	err := r.pool.QueryRow(ctx, `SELECT id FROM coupons WHERE id = $1`, id).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", coupon.ErrNotFound
		}
		return "", fmt.Errorf("finding coupon %q: %w", id, err)
	}
	return got, nil
}

func (r *CouponRepository) loadHistory(ctx context.Context, couponID string) ([]coupon.Usage, error) {
	rows, err := r.pool.Query(ctx, usageHistorySQL, couponID)
	if err != nil {
		return nil, fmt.Errorf("loading usage history for coupon %q: %w", couponID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (coupon.Usage, error) {
		var u coupon.Usage
		err := row.Scan(&u.UserID, &u.OrderID, &u.DiscountApplied, &u.UsedAt)
		return u, err
	})
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		appType      string
		restriction  string
		rulesJSON    []byte
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue,
		&appType, &c.ApplicableProducts, &c.ApplicableCategories,
		&c.MinPurchaseAmount, &c.MinPurchaseQuantity, &c.MaxDiscountAmount,
		&c.FreeShipping, &c.UsageLimit, &c.UsageLimitPerUser, &c.UsedCount,
		&restriction, &c.SpecificUsers, &rulesJSON,
		&c.StartDate, &c.EndDate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	c.DiscountType = coupon.DiscountType(discountType)
	c.ApplicationType = coupon.ApplicationType(appType)
	c.UserRestriction = coupon.UserRestriction(restriction)
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &c.BulkPurchaseRules); err != nil {
			return c, fmt.Errorf("unmarshaling bulk rules: %w", err)
		}
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
