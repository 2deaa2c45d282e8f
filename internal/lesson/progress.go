package lesson

import (
	"time"

	"github.com/google/uuid"
)

// Progress records a learner's position within one lesson. It is a value
// record persisted by the store at session transition points, so a crash
// never loses more than the current sentence.
type Progress struct {
	LessonID uuid.UUID

	// LastIndex is the position of the sentence the learner most recently
	// practiced.
	LastIndex int

	// CompletedSentences counts sentences the learner has finished at least
	// once. It only grows; revisiting a sentence does not decrement it.
	CompletedSentences int

	// PracticeTime is the accumulated active practice duration across all
	// sessions of this lesson.
	PracticeTime time.Duration

	// LastPlayed is when the lesson was last practiced.
	LastPlayed time.Time
}

// Advance records that the sentence at index was completed at the given
// time. CompletedSentences grows only when the index extends past the
// furthest completed sentence.
func (p Progress) Advance(index int, at time.Time) Progress {
	p.LastIndex = index
	if index+1 > p.CompletedSentences {
		p.CompletedSentences = index + 1
	}
	p.LastPlayed = at
	return p
}

// AddPracticeTime accumulates active practice duration.
func (p Progress) AddPracticeTime(d time.Duration) Progress {
	if d > 0 {
		p.PracticeTime += d
	}
	return p
}

// Reset clears position and completion but keeps the lesson identity.
// Accumulated practice time survives a restart.
func (p Progress) Reset() Progress {
	p.LastIndex = 0
	p.CompletedSentences = 0
	return p
}

// IsCompleted reports whether every sentence of a lesson with totalSentences
// sentences has been practiced.
func (p Progress) IsCompleted(totalSentences int) bool {
	return totalSentences > 0 && p.CompletedSentences >= totalSentences
}
