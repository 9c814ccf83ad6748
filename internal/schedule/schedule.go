package schedule

import (
	"math"
	"time"

	"github.com/conorfennell/memoria/internal/domain"
)

// Day is the base interval and the interval after a failure.
const Day = 24 * time.Hour

// Growth multiplies the base interval once per consecutive success.
const Growth = 2.5

// Policy computes review intervals. The zero value is uncapped.
type Policy struct {
	// MaxInterval caps the interval after a success. Zero means no cap.
	MaxInterval time.Duration
}

// DefaultPolicy returns the uncapped policy.
func DefaultPolicy() *Policy {
	return &Policy{}
}

// NextInterval returns the new streak count and the wait before the next
// review, given the current streak and the latest outcome.
func (p *Policy) NextInterval(streak int, outcome domain.Outcome) (int, time.Duration) {
	if outcome == domain.Failure {
		return 0, Day
	}
	if streak <= 0 {
		return 1, Day
	}

	interval := growInterval(streak)
	if p.MaxInterval > 0 && interval > p.MaxInterval {
		interval = p.MaxInterval
	}
	return streak + 1, interval
}

// Apply runs the policy against a record and stamps it as reviewed at now.
// A success also marks the record memorized.
func (p *Policy) Apply(rec *domain.ReviewRecord, outcome domain.Outcome, now time.Time) {
	streak, interval := p.NextInterval(rec.ReviewCount, outcome)
	rec.ReviewCount = streak
	rec.LastReviewAt = now
	rec.NextReviewAt = now.Add(interval)
	if outcome == domain.Success {
		rec.Memorized = true
	}
}

// growInterval returns Day * Growth^streak, saturating at the largest
// representable duration.
func growInterval(streak int) time.Duration {
	f := float64(Day) * math.Pow(Growth, float64(streak))
	if f >= math.MaxInt64 || math.IsInf(f, 1) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Round(f))
}
