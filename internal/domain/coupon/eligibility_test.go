package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func activeCoupon(now time.Time) *Coupon {
	return &Coupon{
		Code:              "FESTIVE",
		DiscountType:      DiscountPercentage,
		DiscountValue:     decimal.NewFromInt(10),
		ApplicationType:   ApplicationCart,
		UserRestriction:   RestrictionAll,
		UsageLimitPerUser: 1,
		StartDate:         now.Add(-24 * time.Hour),
		EndDate:           now.Add(24 * time.Hour),
		IsActive:          true,
	}
}

func TestCanRedeem(t *testing.T) {
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		mutate     func(*Coupon)
		userID     string
		firstTime  bool
		wantAllow  bool
		wantReason string
	}{
		{
			name:      "unrestricted coupon allows any user",
			mutate:    func(*Coupon) {},
			userID:    "u1",
			wantAllow: true,
		},
		{
			name:       "inactive coupon rejected",
			mutate:     func(c *Coupon) { c.IsActive = false },
			userID:     "u1",
			wantReason: "Coupon is not valid or has expired",
		},
		{
			name:       "coupon before start date rejected",
			mutate:     func(c *Coupon) { c.StartDate = now.Add(time.Hour) },
			userID:     "u1",
			wantReason: "Coupon is not valid or has expired",
		},
		{
			name:      "now equal to end date still valid",
			mutate:    func(c *Coupon) { c.EndDate = now },
			userID:    "u1",
			wantAllow: true,
		},
		{
			name:      "now equal to start date still valid",
			mutate:    func(c *Coupon) { c.StartDate = now },
			userID:    "u1",
			wantAllow: true,
		},
		{
			name: "global usage cap exhausted",
			mutate: func(c *Coupon) {
				c.UsageLimit = 3
				c.UsedCount = 3
			},
			userID:     "u1",
			wantReason: "Coupon is not valid or has expired",
		},
		{
			name: "global usage cap with room left",
			mutate: func(c *Coupon) {
				c.UsageLimit = 3
				c.UsedCount = 2
			},
			userID:    "u1",
			wantAllow: true,
		},
		{
			name:       "first-time restriction rejects returning customer",
			mutate:     func(c *Coupon) { c.UserRestriction = RestrictionFirstTime },
			userID:     "u1",
			firstTime:  false,
			wantReason: "Coupon is only valid for first-time customers",
		},
		{
			name:      "first-time restriction allows first-time buyer",
			mutate:    func(c *Coupon) { c.UserRestriction = RestrictionFirstTime },
			userID:    "u1",
			firstTime: true,
			wantAllow: true,
		},
		{
			name:       "new-users restriction behaves like first-time",
			mutate:     func(c *Coupon) { c.UserRestriction = RestrictionNewUsers },
			userID:     "u1",
			firstTime:  false,
			wantReason: "Coupon is only valid for first-time customers",
		},
		{
			name: "specific-users restriction rejects unlisted user",
			mutate: func(c *Coupon) {
				c.UserRestriction = RestrictionSpecificUsers
				c.SpecificUsers = []string{"vip-1", "vip-2"}
			},
			userID:     "u1",
			wantReason: "Coupon is not available for your account",
		},
		{
			name: "specific-users restriction allows listed user",
			mutate: func(c *Coupon) {
				c.UserRestriction = RestrictionSpecificUsers
				c.SpecificUsers = []string{"vip-1", "vip-2"}
			},
			userID:    "vip-2",
			wantAllow: true,
		},
		{
			name: "anonymous user never matches specific-users",
			mutate: func(c *Coupon) {
				c.UserRestriction = RestrictionSpecificUsers
				c.SpecificUsers = []string{"vip-1"}
			},
			userID:     "",
			wantReason: "Coupon is not available for your account",
		},
		{
			name: "per-user cap reached rejects repeat redemption",
			mutate: func(c *Coupon) {
				c.UsageHistory = []Usage{{UserID: "u1", OrderID: "o1", DiscountApplied: decimal.NewFromInt(100)}}
			},
			userID:     "u1",
			wantReason: "You have reached the maximum usage limit for this coupon",
		},
		{
			name: "per-user cap counts only the requesting user",
			mutate: func(c *Coupon) {
				c.UsageHistory = []Usage{{UserID: "other", OrderID: "o1", DiscountApplied: decimal.NewFromInt(100)}}
			},
			userID:    "u1",
			wantAllow: true,
		},
		{
			name: "anonymous user never exceeds the per-user cap",
			mutate: func(c *Coupon) {
				c.UsageHistory = []Usage{
					{UserID: "", OrderID: "o1"},
					{UserID: "", OrderID: "o2"},
				}
			},
			userID:    "",
			wantAllow: true,
		},
		{
			name: "per-user cap above one allows a second use",
			mutate: func(c *Coupon) {
				c.UsageLimitPerUser = 2
				c.UsageHistory = []Usage{{UserID: "u1", OrderID: "o1"}}
			},
			userID:    "u1",
			wantAllow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCoupon(now)
			tt.mutate(c)

			got := CanRedeem(c, tt.userID, tt.firstTime, now)

			assert.Equal(t, tt.wantAllow, got.Allowed)
			if tt.wantAllow {
				assert.Empty(t, got.Reason)
			} else {
				assert.Equal(t, tt.wantReason, got.Reason)
			}
		})
	}
}
