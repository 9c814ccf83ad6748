package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/memoria/internal/domain"
	"github.com/conorfennell/memoria/internal/schedule"
)

// ErrRecordExists is returned by Store.CreateReviewRecord when a record for
// the same (user, content unit) pair is already stored.
var ErrRecordExists = errors.New("review record already exists")

type (
	// Store persists review records.
	//
	// FindReviewRecord returns nil, nil when no record exists.
	// UpdateReviewRecord only succeeds when rec.Version matches the stored
	// version and returns ErrConflict otherwise; on success rec.Version is
	// advanced.
	Store interface {
		FindReviewRecord(ctx context.Context, userID, contentUnitID string) (*domain.ReviewRecord, error)
		CreateReviewRecord(ctx context.Context, rec *domain.ReviewRecord) error
		UpdateReviewRecord(ctx context.Context, rec *domain.ReviewRecord) error
		ListDueReviewRecords(ctx context.Context, userID string, now time.Time) ([]domain.ReviewRecord, error)
		ListReviewRecords(ctx context.Context, userID string) ([]domain.ReviewRecord, error)
	}

	// Catalog resolves content unit metadata. FindContentUnit returns nil, nil
	// for unknown units.
	Catalog interface {
		FindContentUnit(ctx context.Context, id string) (*domain.ContentUnit, error)
	}

	// Service schedules reviews of memorized content units.
	Service struct {
		store    Store
		catalog  Catalog
		policy   *schedule.Policy
		now      func() time.Time
		log      *slog.Logger
		validate *validator.Validate
	}

	// Option configures a Service.
	Option func(*Service)
)

// WithPolicy sets the interval policy.
func WithPolicy(p *schedule.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService returns a Service using the default policy and wall clock.
func NewService(store Store, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		store:    store,
		catalog:  catalog,
		policy:   schedule.DefaultPolicy(),
		now:      time.Now,
		log:      slog.Default(),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "review")
	return s
}

type unitRef struct {
	ContentUnitID string `json:"contentUnitId" validate:"required,max=128,printascii"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) check(caller domain.Caller, contentUnitID string) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	if err := s.validate.Struct(unitRef{ContentUnitID: contentUnitID}); err != nil {
		return newValidationError(err)
	}
	return nil
}

// MarkAsMemorized records that the caller has learned a content unit. The
// first call creates the record; later calls count as a successful review.
func (s *Service) MarkAsMemorized(ctx context.Context, caller domain.Caller, contentUnitID string) error {
	if err := s.check(caller, contentUnitID); err != nil {
		return err
	}
	now := s.now()

	rec, err := s.store.FindReviewRecord(ctx, caller.UserID, contentUnitID)
	if err != nil {
		return fmt.Errorf("find review record: %w", err)
	}
	if rec == nil {
		rec = &domain.ReviewRecord{UserID: caller.UserID, ContentUnitID: contentUnitID}
		s.policy.Apply(rec, domain.Success, now)
		err := s.store.CreateReviewRecord(ctx, rec)
		if err == nil {
			s.log.Debug("content unit memorized", "user", caller.UserID, "unit", contentUnitID)
			return nil
		}
		if !errors.Is(err, ErrRecordExists) {
			return fmt.Errorf("create review record: %w", err)
		}
		// Lost a race with another create; treat this call as a review.
		rec, err = s.store.FindReviewRecord(ctx, caller.UserID, contentUnitID)
		if err != nil {
			return fmt.Errorf("find review record: %w", err)
		}
		if rec == nil {
			return ErrConflict
		}
	}

	s.policy.Apply(rec, domain.Success, now)
	if err := s.store.UpdateReviewRecord(ctx, rec); err != nil {
		return fmt.Errorf("update review record: %w", err)
	}
	s.log.Debug("content unit re-memorized", "user", caller.UserID, "unit", contentUnitID, "review_count", rec.ReviewCount)
	return nil
}

// RecordReviewOutcome applies a review result to an existing record.
func (s *Service) RecordReviewOutcome(ctx context.Context, caller domain.Caller, contentUnitID string, success bool) error {
	if err := s.check(caller, contentUnitID); err != nil {
		return err
	}

	rec, err := s.store.FindReviewRecord(ctx, caller.UserID, contentUnitID)
	if err != nil {
		return fmt.Errorf("find review record: %w", err)
	}
	if rec == nil {
		return ErrNotFound
	}

	outcome := domain.Failure
	if success {
		outcome = domain.Success
	}
	s.policy.Apply(rec, outcome, s.now())
	if err := s.store.UpdateReviewRecord(ctx, rec); err != nil {
		return fmt.Errorf("update review record: %w", err)
	}
	s.log.Debug("review recorded",
		"user", caller.UserID,
		"unit", contentUnitID,
		"outcome", outcome,
		"review_count", rec.ReviewCount,
		"next_review_at", rec.NextReviewAt,
	)
	return nil
}

// ListDueReviews returns the caller's due records joined with their content
// metadata. Records whose content unit no longer exists are skipped.
// Anonymous callers get an empty list.
func (s *Service) ListDueReviews(ctx context.Context, caller domain.Caller) ([]domain.DueReview, error) {
	due := []domain.DueReview{}
	if !caller.Authenticated() {
		return due, nil
	}

	recs, err := s.store.ListDueReviewRecords(ctx, caller.UserID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list due review records: %w", err)
	}
	for _, rec := range recs {
		unit, err := s.catalog.FindContentUnit(ctx, rec.ContentUnitID)
		if err != nil {
			return nil, fmt.Errorf("find content unit %s: %w", rec.ContentUnitID, err)
		}
		if unit == nil {
			continue
		}
		due = append(due, domain.DueReview{
			ContentUnitID: rec.ContentUnitID,
			Title:         unit.Title,
			Summary:       unit.Summary,
			Review:        rec,
		})
	}
	return due, nil
}

// GetUserStats aggregates the caller's records. Anonymous callers get zeroed
// stats.
func (s *Service) GetUserStats(ctx context.Context, caller domain.Caller) (domain.Stats, error) {
	if !caller.Authenticated() {
		return domain.Stats{}, nil
	}

	recs, err := s.store.ListReviewRecords(ctx, caller.UserID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("list review records: %w", err)
	}

	now := s.now()
	var stats domain.Stats
	for _, rec := range recs {
		if !rec.Memorized {
			continue
		}
		stats.MemorizedCount++
		if rec.IsDue(now) {
			stats.DueTodayCount++
		}
	}
	stats.Level = stats.MemorizedCount/5 + 1
	stats.StreakPlaceholder = min(stats.MemorizedCount, 30)
	return stats, nil
}
