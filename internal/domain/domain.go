package domain

import (
	"strings"
	"time"
)

// ContentUnit is a memorizable piece of material (a chapter, a fiche) and
// the metadata shown alongside its review.
type ContentUnit struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Body    string `json:"body,omitempty"`
	Digest  string `json:"-"`
}

// ReviewRecord is the review state of one content unit for one user.
// ReviewCount counts consecutive successful reviews since the last failure.
type ReviewRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	ContentUnitID string    `json:"contentUnitId"`
	Memorized     bool      `json:"memorized"`
	LastReviewAt  time.Time `json:"lastReviewAt"`
	NextReviewAt  time.Time `json:"nextReviewAt"`
	ReviewCount   int       `json:"reviewCount"`
	Version       int64     `json:"-"`
}

// IsDue reports whether the record is memorized and its next review is at or
// before now.
func (r ReviewRecord) IsDue(now time.Time) bool {
	return r.Memorized && !r.NextReviewAt.After(now)
}

// Outcome is the result of a single review.
type Outcome int

const (
	Failure Outcome = iota
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Caller identifies who is making a request. The zero value is anonymous.
type Caller struct {
	UserID string
}

// Anonymous returns the unauthenticated caller.
func Anonymous() Caller { return Caller{} }

// NewCaller builds a caller from a verified email, which is the user key.
func NewCaller(email string) Caller {
	return Caller{UserID: strings.ToLower(strings.TrimSpace(email))}
}

// Authenticated reports whether the caller carries a verified identity.
func (c Caller) Authenticated() bool { return c.UserID != "" }

// DueReview is a due record joined with its content unit metadata.
type DueReview struct {
	ContentUnitID string       `json:"contentUnitId"`
	Title         string       `json:"title"`
	Summary       string       `json:"summary"`
	Review        ReviewRecord `json:"review"`
}

// Stats summarises a user's memorization progress.
// StreakPlaceholder is min(memorized, 30), not a day streak.
type Stats struct {
	MemorizedCount    int `json:"memorizedCount"`
	DueTodayCount     int `json:"dueTodayCount"`
	Level             int `json:"level"`
	StreakPlaceholder int `json:"streakPlaceholder"`
}
