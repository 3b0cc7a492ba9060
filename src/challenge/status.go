package challenge

import (
	"fmt"
	"time"
)

const (
	secondsPerHour = 60 * 60
	secondsPerDay  = 24 * secondsPerHour
)

// DeriveStatus partitions every (now, deadline, participants) combination
// into exactly one of active, refundable or ended. A challenge that is
// past its deadline but still inside the grace window, or that filled up,
// is ended.
func DeriveStatus(rec Record, nowSeconds int64) Status {
	open := rec.CurrentParticipants < rec.MaxParticipants
	switch {
	case open && nowSeconds <= rec.Deadline:
		return StatusActive
	case open && nowSeconds > rec.Deadline+GraceSeconds:
		return StatusRefundable
	default:
		return StatusEnded
	}
}

// IsActive reports whether new completions are still accepted.
func IsActive(rec Record, nowSeconds int64) bool {
	return DeriveStatus(rec, nowSeconds) == StatusActive
}

// IsRefundable reports whether the creator may reclaim the unclaimed pool.
func IsRefundable(rec Record, nowSeconds int64) bool {
	return DeriveStatus(rec, nowSeconds) == StatusRefundable
}

// TimeLeft renders the remaining time as "{d}d {h}h" or "{h}h". Hours are
// truncated, so the last hour reads "0h".
func TimeLeft(deadline, nowSeconds int64) string {
	if deadline <= nowSeconds {
		return "Ended"
	}
	remaining := deadline - nowSeconds
	days := remaining / secondsPerDay
	hours := (remaining % secondsPerDay) / secondsPerHour
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dh", hours)
}

// ClaimDeadline is the moment after which an unfilled challenge becomes
// refundable.
func ClaimDeadline(rec Record) time.Time {
	return time.Unix(rec.Deadline+GraceSeconds, 0)
}
