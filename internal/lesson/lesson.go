// Package lesson defines the content model for shadowing practice: channels
// group lessons, lessons hold ordered sentences, and progress tracks where a
// learner is within a lesson.
//
// Everything here is a plain value record. Relationships are expressed by ID
// reference and resolved by the store; deleting a lesson and cleaning up its
// sentences is the store's job, not a behaviour of these types.
package lesson

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/pkg/types"
)

const (
	// speakingRate is the assumed reference speaking speed in words per
	// second, used when a sentence has no recorded clip to measure.
	speakingRate = 2.5

	// minSentenceDuration floors the estimate so very short sentences still
	// get a sensible playback window.
	minSentenceDuration = 2 * time.Second
)

// Channel is a curated collection of lessons sharing a language and topic.
type Channel struct {
	ID       uuid.UUID
	Title    string
	Language string
}

// Sentence is one unit of shadowing practice: a line of reference text with
// an optional pre-recorded clip.
type Sentence struct {
	ID uuid.UUID

	// Position is the sentence's index within its lesson. Positions in a
	// valid lesson are dense: 0..N-1 with no gaps or duplicates.
	Position int

	// Text is the reference text the learner shadows.
	Text string

	// AudioLocator addresses the pre-recorded reference clip (a URL or local
	// path resolvable by the audio cache). Empty means the clip must be
	// synthesized from Text.
	AudioLocator string

	// Voice selects the synthesis voice for text-only sentences. Zero value
	// defers to provider defaults.
	Voice types.VoiceProfile
}

// EstimatedDuration approximates how long the reference audio for this
// sentence runs, for UI progress display before the clip is fetched. Assumes
// a speaking rate of 2.5 words per second with a 2 second minimum.
func (s Sentence) EstimatedDuration() time.Duration {
	words := len(strings.Fields(s.Text))
	d := time.Duration(float64(words) / speakingRate * float64(time.Second))
	if d < minSentenceDuration {
		return minSentenceDuration
	}
	return d
}

// Lesson is an ordered sequence of sentences belonging to a channel.
type Lesson struct {
	ID        uuid.UUID
	ChannelID uuid.UUID
	Title     string
	Language  string
	Sentences []Sentence
}

// Validate checks structural integrity: at least one sentence, no empty
// text, and dense sentence positions 0..N-1. All violations are reported
// together.
func (l Lesson) Validate() error {
	var errs []error
	if l.Title == "" {
		errs = append(errs, errors.New("title must not be empty"))
	}
	if len(l.Sentences) == 0 {
		errs = append(errs, errors.New("lesson must contain at least one sentence"))
	}

	seen := make(map[int]bool, len(l.Sentences))
	for i, s := range l.Sentences {
		if strings.TrimSpace(s.Text) == "" {
			errs = append(errs, fmt.Errorf("sentence %d: text must not be empty", i))
		}
		if s.Position < 0 || s.Position >= len(l.Sentences) {
			errs = append(errs, fmt.Errorf("sentence %d: position %d out of range [0, %d)", i, s.Position, len(l.Sentences)))
			continue
		}
		if seen[s.Position] {
			errs = append(errs, fmt.Errorf("sentence %d: duplicate position %d", i, s.Position))
		}
		seen[s.Position] = true
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("lesson: invalid lesson %q: %w", l.Title, err)
	}
	return nil
}

// SentenceAt returns the sentence with the given position, not the slice
// index. Returns false when out of range.
func (l Lesson) SentenceAt(position int) (Sentence, bool) {
	for _, s := range l.Sentences {
		if s.Position == position {
			return s, true
		}
	}
	return Sentence{}, false
}

// EstimatedDuration sums the per-sentence estimates.
func (l Lesson) EstimatedDuration() time.Duration {
	var total time.Duration
	for _, s := range l.Sentences {
		total += s.EstimatedDuration()
	}
	return total
}
