package grants

import "time"

// NextExpiry computes the additive-stacking merge for one entitlement
// window: an unexpired window extends from its current expiry, an
// expired or never-granted one restarts from now. Stores that implement
// atomic merges must produce exactly this outcome.
func NextExpiry(now time.Time, current time.Time, duration time.Duration) time.Time {
	base := now
	if current.After(now) {
		base = current
	}
	return base.Add(duration).UTC()
}
