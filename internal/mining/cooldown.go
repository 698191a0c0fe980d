package mining

import (
	"fmt"
	"time"
)

// Cooldown is the minimum interval between two successful claims
const Cooldown = 24 * time.Hour

// CanClaim reports whether a claim is allowed at now. The exact boundary
// counts as allowed.
func CanClaim(lastClaimAt *time.Time, now time.Time) bool {
	if lastClaimAt == nil {
		return true
	}
	return now.Sub(*lastClaimAt) >= Cooldown
}

// TimeUntilNextClaim is the remaining cooldown, never negative
func TimeUntilNextClaim(lastClaimAt *time.Time, now time.Time) time.Duration {
	if lastClaimAt == nil {
		return 0
	}
	remaining := lastClaimAt.Add(Cooldown).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NextClaimAt is when the cooldown ends; nil when a claim is possible now
func NextClaimAt(lastClaimAt *time.Time, now time.Time) *time.Time {
	if CanClaim(lastClaimAt, now) {
		return nil
	}
	next := lastClaimAt.Add(Cooldown)
	return &next
}

// FormatRemaining renders a countdown as "Xh Ym", or "Ready!" at zero
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "Ready!"
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
