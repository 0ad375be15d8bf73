package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/salaudeen22/samrat-agencies/internal/domain/coupon"
	"github.com/salaudeen22/samrat-agencies/internal/domain/order"
)

// placeOrderReq is the checkout request body.
type placeOrderReq struct {
	UserID     string            `json:"userId"`
	Items      []order.OrderItem `json:"items"`
	CouponCode string            `json:"couponCode"`
}

// placeOrder runs checkout: validates items, applies the coupon, persists the
// order, and records the redemption.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderReq
	if err := decodeJSON(r, &req); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:     req.UserID,
		Items:      req.Items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.respondCartError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	o := result.Order
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range result.Products {
		h.encodeProduct(e, p)
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	encodeDecimal(e, o.Subtotal)
	e.FieldStart("discount")
	encodeDecimal(e, o.Discount)
	e.FieldStart("total")
	encodeDecimal(e, o.Total)
	e.FieldStart("couponCode")
	e.Str(o.CouponCode)
	e.FieldStart("freeShipping")
	e.Bool(o.FreeShipping)
	e.FieldStart("couponMessage")
	e.Str(result.CouponMessage)
	e.ObjEnd()
	respond(w, http.StatusCreated, e)
}

// respondCartError maps checkout and cart-pricing failures to HTTP status
// codes. Shared by the order and coupon-validate endpoints.
func (h *Handler) respondCartError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		iqErr  *order.InvalidQuantityError
		pnfErr *order.ProductNotFoundError
		crErr  *order.CouponRejectedError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		respondError(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &iqErr):
		respondError(r.Context(), w, http.StatusUnprocessableEntity, iqErr.Error(), nil)
	case errors.As(err, &pnfErr):
		respondError(r.Context(), w, http.StatusUnprocessableEntity, pnfErr.Error(), nil)
	case errors.As(err, &crErr):
		respondError(r.Context(), w, http.StatusUnprocessableEntity, crErr.Reason, nil)
	case errors.Is(err, coupon.ErrNotFound):
		respondError(r.Context(), w, http.StatusUnprocessableEntity, "Invalid coupon code", nil)
	case errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrUserLimitReached),
		errors.Is(err, coupon.ErrNotValid):
		respondError(r.Context(), w, http.StatusConflict, err.Error(), nil)
	default:
		respondError(r.Context(), w, http.StatusInternalServerError, "", err)
	}
}
