package schedule

import (
	"math"
	"testing"
	"time"

	"github.com/conorfennell/memoria/internal/domain"
)

func TestNextInterval(t *testing.T) {
	p := DefaultPolicy()

	testCases := []struct {
		name           string
		streak         int
		outcome        domain.Outcome
		expectedStreak int
		expected       time.Duration
	}{
		{"first success", 0, domain.Success, 1, Day},
		{"second success", 1, domain.Success, 2, 216000 * time.Second},
		{"third success", 2, domain.Success, 3, time.Duration(6.25 * float64(Day))},
		{"failure from zero", 0, domain.Failure, 0, Day},
		{"failure from long streak", 7, domain.Failure, 0, Day},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			streak, interval := p.NextInterval(tc.streak, tc.outcome)
			if streak != tc.expectedStreak {
				t.Errorf("Expected streak %d, got %d", tc.expectedStreak, streak)
			}
			if interval != tc.expected {
				t.Errorf("Expected interval %v, got %v", tc.expected, interval)
			}
		})
	}
}

func TestNextIntervalMonotonic(t *testing.T) {
	p := DefaultPolicy()
	for n := 1; n <= 10; n++ {
		_, prev := p.NextInterval(n-1, domain.Success)
		_, cur := p.NextInterval(n, domain.Success)
		if cur <= prev {
			t.Errorf("Expected interval at streak %d (%v) to exceed streak %d (%v)", n, cur, n-1, prev)
		}
	}
}

func TestNextIntervalFailureResets(t *testing.T) {
	p := DefaultPolicy()
	for n := 0; n <= 50; n++ {
		streak, interval := p.NextInterval(n, domain.Failure)
		if streak != 0 || interval != Day {
			t.Errorf("streak %d: expected (0, %v), got (%d, %v)", n, Day, streak, interval)
		}
	}
}

func TestNextIntervalSaturates(t *testing.T) {
	p := DefaultPolicy()
	_, interval := p.NextInterval(200, domain.Success)
	if interval != time.Duration(math.MaxInt64) {
		t.Errorf("Expected saturated interval, got %v", interval)
	}
}

func TestNextIntervalCap(t *testing.T) {
	p := &Policy{MaxInterval: 365 * Day}

	_, interval := p.NextInterval(20, domain.Success)
	if interval != 365*Day {
		t.Errorf("Expected capped interval %v, got %v", 365*Day, interval)
	}

	_, interval = p.NextInterval(1, domain.Success)
	if interval != 216000*time.Second {
		t.Errorf("Expected uncapped interval below the cap, got %v", interval)
	}
}

func TestApply(t *testing.T) {
	p := DefaultPolicy()
	start := time.UnixMilli(1000)

	rec := domain.ReviewRecord{}
	p.Apply(&rec, domain.Success, start)
	if !rec.Memorized || rec.ReviewCount != 1 {
		t.Fatalf("Expected memorized record with count 1, got %+v", rec)
	}
	if got := rec.NextReviewAt.UnixMilli(); got != 1000+86400000 {
		t.Errorf("Expected next review at %d, got %d", 1000+86400000, got)
	}

	p.Apply(&rec, domain.Success, time.UnixMilli(2000))
	if rec.ReviewCount != 2 {
		t.Errorf("Expected count 2, got %d", rec.ReviewCount)
	}
	if got := rec.NextReviewAt.UnixMilli(); got != 2000+216000000 {
		t.Errorf("Expected next review at %d, got %d", 2000+216000000, got)
	}

	p.Apply(&rec, domain.Failure, time.UnixMilli(5000))
	if rec.ReviewCount != 0 {
		t.Errorf("Expected count reset to 0, got %d", rec.ReviewCount)
	}
	if !rec.Memorized {
		t.Error("Expected failure to leave the record memorized")
	}
	if got := rec.NextReviewAt.UnixMilli(); got != 5000+86400000 {
		t.Errorf("Expected next review at %d, got %d", 5000+86400000, got)
	}
	if !rec.LastReviewAt.Equal(time.UnixMilli(5000)) {
		t.Errorf("Expected last review at 5000ms, got %v", rec.LastReviewAt)
	}
}
