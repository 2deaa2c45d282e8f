package store

import (
	"context"
	"database/sql"
	"fmt"
)

const ddlChannels = `
CREATE TABLE IF NOT EXISTS channels (
    id        TEXT  PRIMARY KEY,
    title     TEXT  NOT NULL,
    language  TEXT  NOT NULL DEFAULT ''
);
`

const ddlLessons = `
CREATE TABLE IF NOT EXISTS lessons (
    id          TEXT  PRIMARY KEY,
    channel_id  TEXT  NOT NULL REFERENCES channels (id) ON DELETE CASCADE,
    title       TEXT  NOT NULL,
    language    TEXT  NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_lessons_channel
    ON lessons (channel_id);
`

const ddlSentences = `
CREATE TABLE IF NOT EXISTS sentences (
    id             TEXT     PRIMARY KEY,
    lesson_id      TEXT     NOT NULL REFERENCES lessons (id) ON DELETE CASCADE,
    position       INTEGER  NOT NULL,
    text           TEXT     NOT NULL,
    audio_locator  TEXT     NOT NULL DEFAULT '',
    voice_id       TEXT     NOT NULL DEFAULT '',
    voice_language TEXT     NOT NULL DEFAULT '',
    voice_speed    REAL     NOT NULL DEFAULT 0,
    UNIQUE (lesson_id, position)
);

CREATE INDEX IF NOT EXISTS idx_sentences_lesson
    ON sentences (lesson_id);
`

const ddlProgress = `
CREATE TABLE IF NOT EXISTS progress (
    lesson_id            TEXT     PRIMARY KEY REFERENCES lessons (id) ON DELETE CASCADE,
    last_index           INTEGER  NOT NULL DEFAULT 0,
    completed_sentences  INTEGER  NOT NULL DEFAULT 0,
    practice_time_ns     INTEGER  NOT NULL DEFAULT 0,
    last_played          TIMESTAMP
);
`

// Migrate creates all required tables and indexes. Statements are
// idempotent, so running it on an up-to-date database is a no-op.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		ddlChannels,
		ddlLessons,
		ddlSentences,
		ddlProgress,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migrate: %w", err)
		}
	}
	return nil
}
