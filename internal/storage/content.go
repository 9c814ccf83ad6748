package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/memoria/internal/domain"
)

// ErrUnitClaimed is returned when a content unit ID is already owned by a
// different source.
var ErrUnitClaimed = errors.New("content unit belongs to another source")

// FindContentUnit retrieves a content unit by ID. It returns nil, nil when
// the unit does not exist.
func (db *DB) FindContentUnit(ctx context.Context, id string) (*domain.ContentUnit, error) {
	var u domain.ContentUnit
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, title, summary, body, digest
		FROM content_units WHERE id = ?
	`, id)

	err := row.Scan(&u.ID, &u.Title, &u.Summary, &u.Body, &u.Digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Content unit not found
		}
		return nil, fmt.Errorf("failed to find content unit %s: %w", id, err)
	}
	return &u, nil
}

// UpsertContentUnit inserts a content unit or replaces the metadata of an
// existing one owned by sourceID. A unit owned by another source is left
// untouched and ErrUnitClaimed is returned.
func (db *DB) UpsertContentUnit(ctx context.Context, u domain.ContentUnit, sourceID int64) error {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO content_units (id, title, summary, body, digest, source_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			body = excluded.body,
			digest = excluded.digest
		WHERE content_units.source_id = excluded.source_id
	`, u.ID, u.Title, u.Summary, u.Body, u.Digest, sourceID)
	if err != nil {
		return fmt.Errorf("failed to upsert content unit %s: %w", u.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to upsert content unit %s: %w", u.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("content unit %s: %w", u.ID, ErrUnitClaimed)
	}
	return nil
}

// ContentDigests returns the digest of every content unit from a source,
// keyed by unit ID.
func (db *DB) ContentDigests(ctx context.Context, sourceID int64) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, digest FROM content_units WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get content units for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	digests := make(map[string]string)
	for rows.Next() {
		var id, digest string
		if err := rows.Scan(&id, &digest); err != nil {
			return nil, fmt.Errorf("failed to scan content unit row for source ID %d: %w", sourceID, err)
		}
		digests[id] = digest
	}
	return digests, rows.Err()
}

// ListContentUnits returns all content units ordered by ID.
func (db *DB) ListContentUnits(ctx context.Context) ([]domain.ContentUnit, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, summary, body, digest
		FROM content_units ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list content units: %w", err)
	}
	defer rows.Close()

	var units []domain.ContentUnit
	for rows.Next() {
		var u domain.ContentUnit
		if err := rows.Scan(&u.ID, &u.Title, &u.Summary, &u.Body, &u.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan content unit row: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// DeleteContentUnit removes a content unit. Review records pointing at it are
// kept.
func (db *DB) DeleteContentUnit(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM content_units
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete content unit %s: %w", id, err)
	}
	return nil
}
