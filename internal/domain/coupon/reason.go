package coupon

import "fmt"

// Reason classifies why a coupon code was rejected. Every rejection is
// coupon-level: it removes one code from the batch without aborting the order.
type Reason string

const (
	ReasonNotFound      Reason = "not_found"
	ReasonInactive      Reason = "inactive"
	ReasonNotYetValid   Reason = "not_yet_valid"
	ReasonExpired       Reason = "expired"
	ReasonGlobalLimit   Reason = "global_limit_exceeded"
	ReasonPerUserLimit  Reason = "per_user_limit_exceeded"
	ReasonNotApplicable Reason = "not_applicable"
	ReasonAlreadyUsed   Reason = "already_used"
	ReasonMinimumNotMet Reason = "minimum_not_met"
	// ReasonRaceLost means a concurrent checkout won the unique-constraint
	// race on a usage row, or exhausted the global cap, between validation
	// and commit.
	ReasonRaceLost Reason = "race_lost"
)

// Rejection is the error returned by validation gates. It carries the reason
// code plus a human-readable message suitable for the checkout response.
type Rejection struct {
	Reason  Reason
	Message string
}

func (e *Rejection) Error() string {
	return string(e.Reason) + ": " + e.Message
}

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Failure reports one rejected coupon code in an allocation result.
type Failure struct {
	Code    string
	Reason  Reason
	Message string
}
