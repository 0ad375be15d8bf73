package coupon

import "time"

// Eligibility is the outcome of an eligibility evaluation. Reason is a
// customer-facing explanation, set only when Allowed is false.
type Eligibility struct {
	Allowed bool
	Reason  string
}

const (
	reasonNotValid       = "Coupon is not valid or has expired"
	reasonFirstTimeOnly  = "Coupon is only valid for first-time customers"
	reasonNotForAccount  = "Coupon is not available for your account"
	reasonUserCapReached = "You have reached the maximum usage limit for this coupon"
)

func allowed() Eligibility        { return Eligibility{Allowed: true} }
func denied(r string) Eligibility { return Eligibility{Reason: r} }

// CanRedeem decides whether the given user may currently redeem the coupon.
// Checks run in order and short-circuit on the first failure:
//
//  1. derived validity (active, date window, global cap)
//  2. first-time / new-user restriction
//  3. specific-users restriction
//  4. per-user usage cap against the ledger
//
// firstTimeBuyer is computed by the caller from order history; the evaluator
// treats it as opaque. An empty userID (anonymous checkout) never matches a
// specific-users list and never exceeds a per-user cap.
func CanRedeem(c *Coupon, userID string, firstTimeBuyer bool, now time.Time) Eligibility {
	if !c.IsValid(now) {
		return denied(reasonNotValid)
	}

	switch c.UserRestriction {
	case RestrictionFirstTime, RestrictionNewUsers:
		if !firstTimeBuyer {
			return denied(reasonFirstTimeOnly)
		}
	case RestrictionSpecificUsers:
		if userID == "" || !contains(c.SpecificUsers, userID) {
			return denied(reasonNotForAccount)
		}
	}

	if c.UsageLimitPerUser > 0 && c.UsesBy(userID) >= c.UsageLimitPerUser {
		return denied(reasonUserCapReached)
	}

	return allowed()
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
