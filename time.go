package authgate

import "time"

// IsOutsideThresholdPeriod reports whether the window that started at t has
// elapsed. Used for login-attempt cooldowns and token expiry checks.
func IsOutsideThresholdPeriod(t time.Time, window time.Duration) bool {
	return time.Since(t) > window
}
