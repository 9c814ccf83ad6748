package storage

const schema = `
-- Review state per (user, content unit). Timestamps are unix milliseconds.
CREATE TABLE IF NOT EXISTS review_records (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content_unit_id TEXT NOT NULL,
    memorized INTEGER NOT NULL DEFAULT 0,
    last_review_at INTEGER NOT NULL,
    next_review_at INTEGER NOT NULL,
    review_count INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1,

    UNIQUE(user_id, content_unit_id)
);

CREATE INDEX IF NOT EXISTS idx_review_records_user ON review_records(user_id);
CREATE INDEX IF NOT EXISTS idx_review_records_due ON review_records(user_id, memorized, next_review_at);

-- The 'sources' table tracks where fiches come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME
);

-- Metadata for memorizable content units, loaded from fiche sources.
CREATE TABLE IF NOT EXISTS content_units (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    digest TEXT NOT NULL,
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_content_units_source ON content_units(source_id);
`
