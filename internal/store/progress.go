package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/internal/lesson"
)

// LoadProgress implements [session.ProgressStore]. A lesson that was never
// played returns a zero Progress and no error.
func (s *Store) LoadProgress(ctx context.Context, lessonID uuid.UUID) (lesson.Progress, error) {
	const q = `
		SELECT last_index, completed_sentences, practice_time_ns, last_played
		FROM   progress
		WHERE  lesson_id = ?`

	p := lesson.Progress{LessonID: lessonID}
	var practiceNS int64
	var lastPlayed sql.NullTime
	err := s.db.QueryRowContext(ctx, q, lessonID.String()).
		Scan(&p.LastIndex, &p.CompletedSentences, &practiceNS, &lastPlayed)
	if errors.Is(err, sql.ErrNoRows) {
		return lesson.Progress{LessonID: lessonID}, nil
	}
	if err != nil {
		return lesson.Progress{}, fmt.Errorf("store: load progress: %w", err)
	}

	p.PracticeTime = time.Duration(practiceNS)
	if lastPlayed.Valid {
		p.LastPlayed = lastPlayed.Time
	}
	return p, nil
}

// SaveProgress implements [session.ProgressStore], replacing any previous
// record for the same lesson.
func (s *Store) SaveProgress(ctx context.Context, p lesson.Progress) error {
	const q = `
		INSERT INTO progress (lesson_id, last_index, completed_sentences, practice_time_ns, last_played)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (lesson_id) DO UPDATE SET
		    last_index          = excluded.last_index,
		    completed_sentences = excluded.completed_sentences,
		    practice_time_ns    = excluded.practice_time_ns,
		    last_played         = excluded.last_played`

	var lastPlayed any
	if !p.LastPlayed.IsZero() {
		lastPlayed = p.LastPlayed
	}
	if _, err := s.db.ExecContext(ctx, q,
		p.LessonID.String(), p.LastIndex, p.CompletedSentences,
		p.PracticeTime.Nanoseconds(), lastPlayed,
	); err != nil {
		return fmt.Errorf("store: save progress: %w", err)
	}
	return nil
}
