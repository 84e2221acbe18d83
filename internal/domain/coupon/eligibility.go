package coupon

// FilterEligible returns the subset of lines the coupon may legally discount.
//
// Product-restricted coupons (non-global with a non-empty product list) are
// narrowed to matching lines first; lines the user has already consumed this
// coupon against are removed second. The order matters for error reporting:
// an empty set after the restriction filter is "not applicable", an empty set
// after the used filter is "already used".
//
// The input slice is never modified.
func FilterEligible(c *Coupon, lines []Line, used map[string]struct{}) ([]Line, error) {
	eligible := lines

	if !c.Global && len(c.ProductIDs) > 0 {
		allowed := make(map[string]struct{}, len(c.ProductIDs))
		for _, id := range c.ProductIDs {
			allowed[id] = struct{}{}
		}

		restricted := make([]Line, 0, len(eligible))
		for _, l := range eligible {
			if _, ok := allowed[l.ProductID]; ok {
				restricted = append(restricted, l)
			}
		}
		if len(restricted) == 0 {
			return nil, reject(ReasonNotApplicable, "coupon %s does not apply to any product in this order", c.Code)
		}
		eligible = restricted
	}

	if len(used) > 0 {
		fresh := make([]Line, 0, len(eligible))
		for _, l := range eligible {
			if _, ok := used[l.ProductID]; !ok {
				fresh = append(fresh, l)
			}
		}
		if len(fresh) == 0 {
			return nil, reject(ReasonAlreadyUsed, "coupon %s has already been used on every eligible product", c.Code)
		}
		eligible = fresh
	}

	return eligible, nil
}
