package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/salaudeen22/samrat-agencies/internal/domain/coupon"
	"github.com/salaudeen22/samrat-agencies/internal/domain/order"
)

// validateCouponReq is the checkout-preview request: a coupon code and the
// prospective cart, priced from the catalog.
type validateCouponReq struct {
	Code   string            `json:"code"`
	UserID string            `json:"userId"`
	Items  []order.OrderItem `json:"items"`
}

// validateCoupon prices a coupon against a prospective cart. Business
// rejections (unknown code, ineligible user, floor not met) come back as
// valid=false with a reason, not as HTTP errors.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponReq
	if err := decodeJSON(r, &req); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Code == "" {
		respondError(r.Context(), w, http.StatusBadRequest, "coupon code is required", nil)
		return
	}

	quote, err := h.orders.QuoteCoupon(r.Context(), req.UserID, req.Items, req.Code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			h.respondValidation(w, false, decimal.Zero, false, "Invalid coupon code")
			return
		}
		h.respondCartError(w, r, err)
		return
	}

	if !quote.Eligibility.Allowed {
		h.respondValidation(w, false, decimal.Zero, false, quote.Eligibility.Reason)
		return
	}

	res := quote.Result
	h.respondValidation(w, res.Applied(), res.Discount, res.FreeShipping, res.Message)
}

func (h *Handler) respondValidation(w http.ResponseWriter, valid bool, discount decimal.Decimal, freeShipping bool, message string) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(valid)
	e.FieldStart("discount")
	encodeDecimal(e, discount)
	e.FieldStart("freeShipping")
	e.Bool(freeShipping)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	respond(w, http.StatusOK, e)
}

// couponPayload is the admin create/update request body.
type couponPayload struct {
	Code                 string            `json:"code"`
	Description          string            `json:"description"`
	DiscountType         string            `json:"discountType"`
	DiscountValue        decimal.Decimal   `json:"discountValue"`
	ApplicationType      string            `json:"applicationType"`
	ApplicableProducts   []string          `json:"applicableProducts"`
	ApplicableCategories []string          `json:"applicableCategories"`
	MinPurchaseAmount    decimal.Decimal   `json:"minPurchaseAmount"`
	MinPurchaseQuantity  int               `json:"minPurchaseQuantity"`
	MaxDiscountAmount    decimal.Decimal   `json:"maxDiscountAmount"`
	FreeShipping         bool              `json:"freeShipping"`
	UsageLimit           int               `json:"usageLimit"`
	UsageLimitPerUser    int               `json:"usageLimitPerUser"`
	UserRestriction      string            `json:"userRestriction"`
	SpecificUsers        []string          `json:"specificUsers"`
	BulkPurchaseRules    []coupon.BulkRule `json:"bulkPurchaseRules"`
	StartDate            time.Time         `json:"startDate"`
	EndDate              time.Time         `json:"endDate"`
	IsActive             *bool             `json:"isActive"`
}

// toDomain converts the payload to a domain coupon, rejecting unknown enum
// values before any engine logic runs.
func (p *couponPayload) toDomain() (*coupon.Coupon, error) {
	switch coupon.DiscountType(p.DiscountType) {
	case coupon.DiscountPercentage, coupon.DiscountFixed:
	default:
		return nil, errors.Errorf("unknown discount type %q", p.DiscountType)
	}
	switch coupon.ApplicationType(p.ApplicationType) {
	case coupon.ApplicationCart, coupon.ApplicationProduct, coupon.ApplicationCategory, "":
	default:
		return nil, errors.Errorf("unknown application type %q", p.ApplicationType)
	}
	switch coupon.UserRestriction(p.UserRestriction) {
	case coupon.RestrictionAll, coupon.RestrictionFirstTime,
		coupon.RestrictionSpecificUsers, coupon.RestrictionNewUsers, "":
	default:
		return nil, errors.Errorf("unknown user restriction %q", p.UserRestriction)
	}

	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}

	return &coupon.Coupon{
		Code:                 p.Code,
		Description:          p.Description,
		DiscountType:         coupon.DiscountType(p.DiscountType),
		DiscountValue:        p.DiscountValue,
		ApplicationType:      coupon.ApplicationType(p.ApplicationType),
		ApplicableProducts:   p.ApplicableProducts,
		ApplicableCategories: p.ApplicableCategories,
		MinPurchaseAmount:    p.MinPurchaseAmount,
		MinPurchaseQuantity:  p.MinPurchaseQuantity,
		MaxDiscountAmount:    p.MaxDiscountAmount,
		FreeShipping:         p.FreeShipping,
		UsageLimit:           p.UsageLimit,
		UsageLimitPerUser:    p.UsageLimitPerUser,
		UserRestriction:      coupon.UserRestriction(p.UserRestriction),
		SpecificUsers:        p.SpecificUsers,
		BulkPurchaseRules:    p.BulkPurchaseRules,
		StartDate:            p.StartDate,
		EndDate:              p.EndDate,
		IsActive:             active,
	}, nil
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var payload couponPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	c, err := payload.toDomain()
	if err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		h.respondCouponError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	h.encodeCoupon(e, *c, false)
	respond(w, http.StatusCreated, e)
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	var payload couponPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	c, err := payload.toDomain()
	if err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	c.ID = r.PathValue("id")

	if err := h.coupons.Update(r.Context(), c); err != nil {
		h.respondCouponError(w, r, err)
		return
	}

	// The usage counter and ledger are not writable through updates; re-read
	// so the response reflects the persisted state.
	stored, err := h.coupons.Get(r.Context(), c.ID)
	if err != nil {
		h.respondCouponError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	h.encodeCoupon(e, *stored, false)
	respond(w, http.StatusOK, e)
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		respondError(r.Context(), w, http.StatusInternalServerError, "", err)
		return
	}

	e := &jx.Encoder{}
	e.ArrStart()
	for _, c := range coupons {
		h.encodeCoupon(e, c, false)
	}
	e.ArrEnd()
	respond(w, http.StatusOK, e)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondCouponError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	h.encodeCoupon(e, *c, true)
	respond(w, http.StatusOK, e)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	deactivated, err := h.coupons.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondCouponError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("deleted")
	e.Bool(!deactivated)
	e.FieldStart("deactivated")
	e.Bool(deactivated)
	e.ObjEnd()
	respond(w, http.StatusOK, e)
}

func (h *Handler) couponStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.coupons.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondCouponError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("totalUses")
	e.Int(stats.TotalUses)
	e.FieldStart("uniqueUsers")
	e.Int(stats.UniqueUsers)
	e.FieldStart("totalDiscount")
	encodeDecimal(e, stats.TotalDiscount)
	e.FieldStart("avgDiscount")
	encodeDecimal(e, stats.AvgDiscount)
	e.ObjEnd()
	respond(w, http.StatusOK, e)
}

// respondCouponError maps domain errors from the admin surface to HTTP
// status codes.
func (h *Handler) respondCouponError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		respondError(r.Context(), w, http.StatusNotFound, "coupon not found", nil)
	case errors.Is(err, coupon.ErrDuplicateCode):
		respondError(r.Context(), w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, coupon.ErrCodeRequired),
		errors.Is(err, coupon.ErrInvalidDateRange),
		errors.Is(err, coupon.ErrInvalidDiscount),
		errors.Is(err, coupon.ErrPercentageOverLimit):
		respondError(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
	default:
		respondError(r.Context(), w, http.StatusInternalServerError, "", err)
	}
}

// encodeCoupon writes one coupon object, with the usage ledger included when
// withHistory is set.
func (h *Handler) encodeCoupon(e *jx.Encoder, c coupon.Coupon, withHistory bool) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("code")
	e.Str(c.Code)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("discountType")
	e.Str(string(c.DiscountType))
	e.FieldStart("discountValue")
	encodeDecimal(e, c.DiscountValue)
	e.FieldStart("applicationType")
	e.Str(string(c.ApplicationType))
	e.FieldStart("applicableProducts")
	encodeStrings(e, c.ApplicableProducts)
	e.FieldStart("applicableCategories")
	encodeStrings(e, c.ApplicableCategories)
	e.FieldStart("minPurchaseAmount")
	encodeDecimal(e, c.MinPurchaseAmount)
	e.FieldStart("minPurchaseQuantity")
	e.Int(c.MinPurchaseQuantity)
	e.FieldStart("maxDiscountAmount")
	encodeDecimal(e, c.MaxDiscountAmount)
	e.FieldStart("freeShipping")
	e.Bool(c.FreeShipping)
	e.FieldStart("usageLimit")
	e.Int(c.UsageLimit)
	e.FieldStart("usageLimitPerUser")
	e.Int(c.UsageLimitPerUser)
	e.FieldStart("usedCount")
	e.Int(c.UsedCount)
	e.FieldStart("userRestriction")
	e.Str(string(c.UserRestriction))
	e.FieldStart("specificUsers")
	encodeStrings(e, c.SpecificUsers)
	e.FieldStart("bulkPurchaseRules")
	e.ArrStart()
	for _, rule := range c.BulkPurchaseRules {
		e.ObjStart()
		e.FieldStart("minQuantity")
		e.Int(rule.MinQuantity)
		e.FieldStart("discountType")
		e.Str(string(rule.DiscountType))
		e.FieldStart("discountValue")
		encodeDecimal(e, rule.Value)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("startDate")
	e.Str(c.StartDate.Format(time.RFC3339))
	e.FieldStart("endDate")
	e.Str(c.EndDate.Format(time.RFC3339))
	e.FieldStart("isActive")
	e.Bool(c.IsActive)
	if withHistory {
		e.FieldStart("usageHistory")
		e.ArrStart()
		for _, u := range c.UsageHistory {
			e.ObjStart()
			e.FieldStart("userId")
			e.Str(u.UserID)
			e.FieldStart("orderId")
			e.Str(u.OrderID)
			e.FieldStart("discountApplied")
			encodeDecimal(e, u.DiscountApplied)
			e.FieldStart("usedAt")
			e.Str(u.UsedAt.Format(time.RFC3339))
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}
