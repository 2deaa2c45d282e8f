package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/internal/lesson"
	"github.com/voxloop/voxloop/pkg/types"
)

// ErrNotFound is returned when the requested channel or lesson does not
// exist.
var ErrNotFound = errors.New("store: not found")

// UpsertChannel inserts or updates a channel.
func (s *Store) UpsertChannel(ctx context.Context, ch lesson.Channel) error {
	const q = `
		INSERT INTO channels (id, title, language)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, language = excluded.language`

	if _, err := s.db.ExecContext(ctx, q, ch.ID.String(), ch.Title, ch.Language); err != nil {
		return fmt.Errorf("store: upsert channel: %w", err)
	}
	return nil
}

// Channels returns all channels ordered by title.
func (s *Store) Channels(ctx context.Context) ([]lesson.Channel, error) {
	const q = `SELECT id, title, language FROM channels ORDER BY title`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	defer rows.Close()

	var channels []lesson.Channel
	for rows.Next() {
		var ch lesson.Channel
		var id string
		if err := rows.Scan(&id, &ch.Title, &ch.Language); err != nil {
			return nil, fmt.Errorf("store: scan channel: %w", err)
		}
		if ch.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: channel id %q: %w", id, err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	return channels, nil
}

// DeleteChannel removes a channel together with its lessons, their
// sentences and all related progress. The cleanup is explicit so a partial
// delete can never leave orphaned rows, regardless of pragma settings.
func (s *Store) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(t *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM progress  WHERE lesson_id IN (SELECT id FROM lessons WHERE channel_id = ?)`,
			`DELETE FROM sentences WHERE lesson_id IN (SELECT id FROM lessons WHERE channel_id = ?)`,
			`DELETE FROM lessons   WHERE channel_id = ?`,
		} {
			if _, err := t.ExecContext(ctx, q, id.String()); err != nil {
				return fmt.Errorf("store: delete channel contents: %w", err)
			}
		}
		if _, err := t.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id.String()); err != nil {
			return fmt.Errorf("store: delete channel: %w", err)
		}
		return nil
	})
}

// SaveLesson inserts or replaces a lesson and its full sentence list.
func (s *Store) SaveLesson(ctx context.Context, l lesson.Lesson) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return s.tx(ctx, func(t *sql.Tx) error {
		const upsert = `
			INSERT INTO lessons (id, channel_id, title, language)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
			    channel_id = excluded.channel_id,
			    title      = excluded.title,
			    language   = excluded.language`
		if _, err := t.ExecContext(ctx, upsert, l.ID.String(), l.ChannelID.String(), l.Title, l.Language); err != nil {
			return fmt.Errorf("store: upsert lesson: %w", err)
		}

		// Replace the sentence list wholesale; positions may have shifted.
		if _, err := t.ExecContext(ctx, `DELETE FROM sentences WHERE lesson_id = ?`, l.ID.String()); err != nil {
			return fmt.Errorf("store: clear sentences: %w", err)
		}
		const insert = `
			INSERT INTO sentences (id, lesson_id, position, text, audio_locator, voice_id, voice_language, voice_speed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		for _, sn := range l.Sentences {
			if _, err := t.ExecContext(ctx, insert,
				sn.ID.String(), l.ID.String(), sn.Position, sn.Text, sn.AudioLocator,
				sn.Voice.ID, sn.Voice.Language, sn.Voice.SpeedFactor,
			); err != nil {
				return fmt.Errorf("store: insert sentence %d: %w", sn.Position, err)
			}
		}
		return nil
	})
}

// Lesson loads one lesson with its sentences ordered by position.
// Returns [ErrNotFound] if no lesson has the given id.
func (s *Store) Lesson(ctx context.Context, id uuid.UUID) (lesson.Lesson, error) {
	const q = `SELECT channel_id, title, language FROM lessons WHERE id = ?`

	var l lesson.Lesson
	var channelID string
	err := s.db.QueryRowContext(ctx, q, id.String()).Scan(&channelID, &l.Title, &l.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return lesson.Lesson{}, fmt.Errorf("%w: lesson %s", ErrNotFound, id)
	}
	if err != nil {
		return lesson.Lesson{}, fmt.Errorf("store: load lesson: %w", err)
	}
	l.ID = id
	if l.ChannelID, err = uuid.Parse(channelID); err != nil {
		return lesson.Lesson{}, fmt.Errorf("store: lesson channel id %q: %w", channelID, err)
	}

	if l.Sentences, err = s.sentences(ctx, id); err != nil {
		return lesson.Lesson{}, err
	}
	return l, nil
}

// LessonsByChannel returns all lessons of a channel, sentences included,
// ordered by title.
func (s *Store) LessonsByChannel(ctx context.Context, channelID uuid.UUID) ([]lesson.Lesson, error) {
	const q = `SELECT id, title, language FROM lessons WHERE channel_id = ? ORDER BY title`

	rows, err := s.db.QueryContext(ctx, q, channelID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []lesson.Lesson
	for rows.Next() {
		l := lesson.Lesson{ChannelID: channelID}
		var id string
		if err := rows.Scan(&id, &l.Title, &l.Language); err != nil {
			return nil, fmt.Errorf("store: scan lesson: %w", err)
		}
		if l.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: lesson id %q: %w", id, err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list lessons: %w", err)
	}

	for i := range lessons {
		if lessons[i].Sentences, err = s.sentences(ctx, lessons[i].ID); err != nil {
			return nil, err
		}
	}
	return lessons, nil
}

// DeleteLesson removes a lesson, its sentences and its progress record.
func (s *Store) DeleteLesson(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(t *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM progress  WHERE lesson_id = ?`,
			`DELETE FROM sentences WHERE lesson_id = ?`,
			`DELETE FROM lessons   WHERE id = ?`,
		} {
			if _, err := t.ExecContext(ctx, q, id.String()); err != nil {
				return fmt.Errorf("store: delete lesson: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) sentences(ctx context.Context, lessonID uuid.UUID) ([]lesson.Sentence, error) {
	const q = `
		SELECT id, position, text, audio_locator, voice_id, voice_language, voice_speed
		FROM   sentences
		WHERE  lesson_id = ?
		ORDER  BY position`

	rows, err := s.db.QueryContext(ctx, q, lessonID.String())
	if err != nil {
		return nil, fmt.Errorf("store: load sentences: %w", err)
	}
	defer rows.Close()

	var sentences []lesson.Sentence
	for rows.Next() {
		var sn lesson.Sentence
		var id string
		var voice types.VoiceProfile
		if err := rows.Scan(&id, &sn.Position, &sn.Text, &sn.AudioLocator,
			&voice.ID, &voice.Language, &voice.SpeedFactor); err != nil {
			return nil, fmt.Errorf("store: scan sentence: %w", err)
		}
		if sn.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: sentence id %q: %w", id, err)
		}
		sn.Voice = voice
		sentences = append(sentences, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load sentences: %w", err)
	}
	return sentences, nil
}
