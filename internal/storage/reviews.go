package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/memoria/internal/domain"
	"github.com/conorfennell/memoria/internal/review"
)

const reviewColumns = `id, user_id, content_unit_id, memorized, last_review_at, next_review_at, review_count, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReviewRecord(row rowScanner) (domain.ReviewRecord, error) {
	var (
		rec            domain.ReviewRecord
		lastMs, nextMs int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ContentUnitID,
		&rec.Memorized,
		&lastMs,
		&nextMs,
		&rec.ReviewCount,
		&rec.Version,
	)
	if err != nil {
		return rec, err
	}
	rec.LastReviewAt = time.UnixMilli(lastMs)
	rec.NextReviewAt = time.UnixMilli(nextMs)
	return rec, nil
}

// FindReviewRecord retrieves the record for a user and content unit.
// It returns nil, nil when none exists.
func (db *DB) FindReviewRecord(ctx context.Context, userID, contentUnitID string) (*domain.ReviewRecord, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+reviewColumns+`
		FROM review_records WHERE user_id = ? AND content_unit_id = ?
	`, userID, contentUnitID)

	rec, err := scanReviewRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find review record %s/%s: %w", userID, contentUnitID, err)
	}
	return &rec, nil
}

// CreateReviewRecord inserts a new record, assigning its ID and version.
// It returns review.ErrRecordExists if the (user, content unit) pair is taken.
func (db *DB) CreateReviewRecord(ctx context.Context, rec *domain.ReviewRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_records (id, user_id, content_unit_id, memorized, last_review_at, next_review_at, review_count, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(user_id, content_unit_id) DO NOTHING
	`,
		id,
		rec.UserID,
		rec.ContentUnitID,
		rec.Memorized,
		rec.LastReviewAt.UnixMilli(),
		rec.NextReviewAt.UnixMilli(),
		rec.ReviewCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review record %s/%s: %w", rec.UserID, rec.ContentUnitID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert of review record %s/%s: %w", rec.UserID, rec.ContentUnitID, err)
	}
	if n == 0 {
		return review.ErrRecordExists
	}
	rec.ID = id
	rec.Version = 1
	return nil
}

// UpdateReviewRecord writes the record's review state if its version still
// matches the stored one.
func (db *DB) UpdateReviewRecord(ctx context.Context, rec *domain.ReviewRecord) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE review_records
		SET memorized = ?, last_review_at = ?, next_review_at = ?, review_count = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		rec.Memorized,
		rec.LastReviewAt.UnixMilli(),
		rec.NextReviewAt.UnixMilli(),
		rec.ReviewCount,
		rec.ID,
		rec.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update review record %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of review record %s: %w", rec.ID, err)
	}
	if n == 0 {
		return review.ErrConflict
	}
	rec.Version++
	return nil
}

// ListDueReviewRecords returns the user's memorized records whose next review
// is at or before now, in insertion order.
func (db *DB) ListDueReviewRecords(ctx context.Context, userID string, now time.Time) ([]domain.ReviewRecord, error) {
	return db.queryReviewRecords(ctx, `
		SELECT `+reviewColumns+`
		FROM review_records
		WHERE user_id = ? AND memorized = 1 AND next_review_at <= ?
		ORDER BY rowid
	`, userID, now.UnixMilli())
}

// ListReviewRecords returns all of the user's records in insertion order.
func (db *DB) ListReviewRecords(ctx context.Context, userID string) ([]domain.ReviewRecord, error) {
	return db.queryReviewRecords(ctx, `
		SELECT `+reviewColumns+`
		FROM review_records
		WHERE user_id = ?
		ORDER BY rowid
	`, userID)
}

func (db *DB) queryReviewRecords(ctx context.Context, query string, args ...any) ([]domain.ReviewRecord, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review records: %w", err)
	}
	defer rows.Close()

	var recs []domain.ReviewRecord
	for rows.Next() {
		rec, err := scanReviewRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review record row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review records: %w", err)
	}
	return recs, nil
}
