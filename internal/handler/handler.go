// Package handler exposes the HTTP API: catalog reads, coupon validation,
// checkout, and the API-key-protected coupon admin surface.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/salaudeen22/samrat-agencies/internal/domain/coupon"
	"github.com/salaudeen22/samrat-agencies/internal/domain/order"
	"github.com/salaudeen22/samrat-agencies/internal/domain/product"
)

// CouponAdmin is the slice of the coupon engine the admin surface depends on.
type CouponAdmin interface {
	Create(ctx context.Context, c *coupon.Coupon) error
	Update(ctx context.Context, c *coupon.Coupon) error
	Delete(ctx context.Context, id string) (deactivated bool, err error)
	Get(ctx context.Context, id string) (*coupon.Coupon, error)
	List(ctx context.Context) ([]coupon.Coupon, error)
	Stats(ctx context.Context, id string) (*coupon.UsageStats, error)
}

// OrderService is the checkout surface: placing orders and pricing coupon
// previews against a prospective cart.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
	QuoteCoupon(ctx context.Context, userID string, items []order.OrderItem, code string) (*coupon.Quote, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the JSON API, delegating business logic to the domain
// services.
type Handler struct {
	products     product.Repository
	coupons      CouponAdmin
	orders       OrderService
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg Config, products product.Repository, coupons CouponAdmin, orders OrderService) *Handler {
	return &Handler{
		products:     products,
		coupons:      coupons,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes builds the API mux. Admin routes are wrapped with the security
// handler's API key check.
func (h *Handler) Routes(sec *Security) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/coupons/validate", h.validateCoupon)
	mux.HandleFunc("POST /api/orders", h.placeOrder)

	admin := func(fn http.HandlerFunc) http.Handler { return sec.RequireAPIKey(fn) }
	mux.Handle("POST /api/coupons", admin(h.createCoupon))
	mux.Handle("GET /api/coupons", admin(h.listCoupons))
	mux.Handle("GET /api/coupons/{id}", admin(h.getCoupon))
	mux.Handle("PUT /api/coupons/{id}", admin(h.updateCoupon))
	mux.Handle("DELETE /api/coupons/{id}", admin(h.deleteCoupon))
	mux.Handle("GET /api/coupons/{id}/stats", admin(h.couponStats))

	return mux
}

// respond writes the encoder's buffer as an application/json response.
func respond(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// respondError writes a {code, message} error body. Server-side failures are
// logged with the request-scoped logger before a generic message goes out.
func respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Int("status", status), zap.Error(err))
		message = "internal server error"
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	respond(w, status, e)
}

// decodeJSON parses the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// encodeDecimal writes a decimal as a JSON number with two fraction digits.
func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}
