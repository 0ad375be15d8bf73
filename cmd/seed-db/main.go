// Command seed-db loads the furniture catalog, a set of demo coupons, and an
// admin API key into the database. It is idempotent: every record is upserted.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/salaudeen22/samrat-agencies/internal/domain/coupon"
	"github.com/salaudeen22/samrat-agencies/internal/repository"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or SAMRAT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SAMRAT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SAMRAT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or SAMRAT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SAMRAT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

const upsertProductSQL = `INSERT INTO products
	(id, name, description, price, category, image_thumbnail, image_mobile, image_tablet, image_desktop)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description,
		price = EXCLUDED.price, category = EXCLUDED.category,
		image_thumbnail = EXCLUDED.image_thumbnail, image_mobile = EXCLUDED.image_mobile,
		image_tablet = EXCLUDED.image_tablet, image_desktop = EXCLUDED.image_desktop`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Category,
			p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

const upsertCouponSQL = `INSERT INTO coupons
	(code, description, discount_type, discount_value, application_type,
	 applicable_products, applicable_categories, min_purchase_amount,
	 min_purchase_quantity, max_discount_amount, free_shipping, usage_limit,
	 usage_limit_per_user, user_restriction, specific_users,
	 bulk_purchase_rules, start_date, end_date, is_active)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	ON CONFLICT (code) DO UPDATE SET
		description = EXCLUDED.description,
		discount_type = EXCLUDED.discount_type,
		discount_value = EXCLUDED.discount_value,
		application_type = EXCLUDED.application_type,
		applicable_products = EXCLUDED.applicable_products,
		applicable_categories = EXCLUDED.applicable_categories,
		min_purchase_amount = EXCLUDED.min_purchase_amount,
		min_purchase_quantity = EXCLUDED.min_purchase_quantity,
		max_discount_amount = EXCLUDED.max_discount_amount,
		free_shipping = EXCLUDED.free_shipping,
		usage_limit = EXCLUDED.usage_limit,
		usage_limit_per_user = EXCLUDED.usage_limit_per_user,
		user_restriction = EXCLUDED.user_restriction,
		specific_users = EXCLUDED.specific_users,
		bulk_purchase_rules = EXCLUDED.bulk_purchase_rules,
		start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date,
		is_active = EXCLUDED.is_active,
		updated_at = now()`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	now := time.Now().UTC().Truncate(time.Hour)
	yearEnd := now.AddDate(1, 0, 0)

	demo := []coupon.Coupon{
		{
			Code:              "SAVE10",
			Description:       "10% off the whole cart, up to ₹500",
			DiscountType:      coupon.DiscountPercentage,
			DiscountValue:     decimal.NewFromInt(10),
			ApplicationType:   coupon.ApplicationCart,
			MinPurchaseAmount: decimal.NewFromInt(1000),
			MaxDiscountAmount: decimal.NewFromInt(500),
			UsageLimitPerUser: 1,
			UserRestriction:   coupon.RestrictionAll,
			StartDate:         now,
			EndDate:           yearEnd,
			IsActive:          true,
		},
		{
			Code:              "FLAT200",
			Description:       "Flat ₹200 off",
			DiscountType:      coupon.DiscountFixed,
			DiscountValue:     decimal.NewFromInt(200),
			ApplicationType:   coupon.ApplicationCart,
			UsageLimitPerUser: 1,
			UserRestriction:   coupon.RestrictionAll,
			StartDate:         now,
			EndDate:           yearEnd,
			IsActive:          true,
		},
		{
			Code:                 "SOFAFEST",
			Description:          "5% off sofas, 15% off when buying 5 or more",
			DiscountType:         coupon.DiscountPercentage,
			DiscountValue:        decimal.NewFromInt(5),
			ApplicationType:      coupon.ApplicationCategory,
			ApplicableCategories: []string{"sofas"},
			UsageLimitPerUser:    3,
			UserRestriction:      coupon.RestrictionAll,
			BulkPurchaseRules: []coupon.BulkRule{
				{MinQuantity: 5, DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(15)},
			},
			StartDate: now,
			EndDate:   yearEnd,
			IsActive:  true,
		},
		{
			Code:              "WELCOME100",
			Description:       "₹100 off your first order, free shipping included",
			DiscountType:      coupon.DiscountFixed,
			DiscountValue:     decimal.NewFromInt(100),
			ApplicationType:   coupon.ApplicationCart,
			FreeShipping:      true,
			UsageLimitPerUser: 1,
			UserRestriction:   coupon.RestrictionFirstTime,
			StartDate:         now,
			EndDate:           yearEnd,
			IsActive:          true,
		},
	}

	for _, c := range demo {
		rules, err := json.Marshal(c.BulkPurchaseRules)
		if err != nil {
			return errors.Wrapf(err, "marshal bulk rules for %s", c.Code)
		}
		if c.BulkPurchaseRules == nil {
			rules = []byte("[]")
		}

		_, err = pool.Exec(ctx, upsertCouponSQL,
			c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
			string(c.ApplicationType), orEmpty(c.ApplicableProducts), orEmpty(c.ApplicableCategories),
			c.MinPurchaseAmount, c.MinPurchaseQuantity, c.MaxDiscountAmount,
			c.FreeShipping, c.UsageLimit, c.UsageLimitPerUser,
			string(c.UserRestriction), orEmpty(c.SpecificUsers), rules,
			c.StartDate, c.EndDate, c.IsActive,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (key_hash, name, scopes, active)
	VALUES ($1, $2, $3, TRUE)
	ON CONFLICT (key_hash) DO UPDATE SET
		name = EXCLUDED.name, scopes = EXCLUDED.scopes, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, upsertAPIKeySQL, keyHash, "Admin key", []string{"coupons:admin"})
	if err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("name", "Admin key"))

	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
