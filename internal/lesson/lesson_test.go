package lesson

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func sentences(texts ...string) []Sentence {
	out := make([]Sentence, len(texts))
	for i, text := range texts {
		out[i] = Sentence{ID: uuid.New(), Position: i, Text: text}
	}
	return out
}

func TestSentence_EstimatedDuration(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Duration
	}{
		{"empty text floors at minimum", "", 2 * time.Second},
		{"one word floors at minimum", "bonjour", 2 * time.Second},
		{"five words at 2.5 wps", "je voudrais un café noir", 2 * time.Second},
		{"ten words", "the quick brown fox jumps over the lazy dog again", 4 * time.Second},
		{"whitespace only floors", "   \t  ", 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sentence{Text: tt.text}
			if got := s.EstimatedDuration(); got != tt.want {
				t.Errorf("EstimatedDuration = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestLesson_Validate(t *testing.T) {
	valid := Lesson{
		ID:        uuid.New(),
		Title:     "Ordering coffee",
		Language:  "fr",
		Sentences: sentences("Bonjour", "Un café, s'il vous plaît", "Merci beaucoup"),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid lesson rejected: %v", err)
	}

	t.Run("empty lesson", func(t *testing.T) {
		l := Lesson{Title: "Empty"}
		if err := l.Validate(); err == nil {
			t.Error("expected error for lesson with no sentences")
		}
	})

	t.Run("missing title", func(t *testing.T) {
		l := valid
		l.Title = ""
		if err := l.Validate(); err == nil {
			t.Error("expected error for missing title")
		}
	})

	t.Run("blank sentence text", func(t *testing.T) {
		l := valid
		l.Sentences = sentences("Bonjour", "  ")
		if err := l.Validate(); err == nil {
			t.Error("expected error for blank sentence text")
		}
	})

	t.Run("position gap", func(t *testing.T) {
		l := valid
		l.Sentences = sentences("a", "b", "c")
		l.Sentences[2].Position = 5
		if err := l.Validate(); err == nil {
			t.Error("expected error for out-of-range position")
		}
	})

	t.Run("duplicate position", func(t *testing.T) {
		l := valid
		l.Sentences = sentences("a", "b", "c")
		l.Sentences[2].Position = 1
		if err := l.Validate(); err == nil {
			t.Error("expected error for duplicate position")
		}
	})

	t.Run("all violations reported together", func(t *testing.T) {
		l := Lesson{Sentences: []Sentence{{Position: 3, Text: ""}}}
		err := l.Validate()
		if err == nil {
			t.Fatal("expected error")
		}
		// Joined error must mention both the blank text and the bad position.
		msg := err.Error()
		for _, want := range []string{"text must not be empty", "out of range"} {
			if !containsSubstring(msg, want) {
				t.Errorf("error %q missing %q", msg, want)
			}
		}
	})
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestLesson_SentenceAt(t *testing.T) {
	l := Lesson{Sentences: sentences("a", "b", "c")}

	s, ok := l.SentenceAt(1)
	if !ok || s.Text != "b" {
		t.Errorf("SentenceAt(1) = %q, %v; want \"b\", true", s.Text, ok)
	}
	if _, ok := l.SentenceAt(3); ok {
		t.Error("SentenceAt(3) should report false")
	}
	if _, ok := l.SentenceAt(-1); ok {
		t.Error("SentenceAt(-1) should report false")
	}
}

func TestProgress_Advance(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	var p Progress

	p = p.Advance(0, now)
	if p.CompletedSentences != 1 || p.LastIndex != 0 {
		t.Fatalf("after first advance: %+v", p)
	}

	p = p.Advance(1, now)
	p = p.Advance(2, now)
	if p.CompletedSentences != 3 {
		t.Errorf("CompletedSentences = %d; want 3", p.CompletedSentences)
	}

	// Revisiting an earlier sentence moves the index but never shrinks the
	// completion count.
	p = p.Advance(0, now)
	if p.LastIndex != 0 {
		t.Errorf("LastIndex = %d; want 0", p.LastIndex)
	}
	if p.CompletedSentences != 3 {
		t.Errorf("CompletedSentences shrank to %d on revisit", p.CompletedSentences)
	}
	if !p.LastPlayed.Equal(now) {
		t.Errorf("LastPlayed = %v; want %v", p.LastPlayed, now)
	}
}

func TestProgress_Reset(t *testing.T) {
	now := time.Now()
	p := Progress{LessonID: uuid.New()}
	p = p.Advance(4, now)
	p = p.AddPracticeTime(3 * time.Minute)

	r := p.Reset()
	if r.LastIndex != 0 || r.CompletedSentences != 0 {
		t.Errorf("Reset left position state: %+v", r)
	}
	if r.PracticeTime != 3*time.Minute {
		t.Errorf("Reset dropped practice time: %v", r.PracticeTime)
	}
	if r.LessonID != p.LessonID {
		t.Error("Reset changed lesson identity")
	}
}

func TestProgress_IsCompleted(t *testing.T) {
	var p Progress
	if p.IsCompleted(0) {
		t.Error("empty lesson should never be completed")
	}
	p.CompletedSentences = 2
	if p.IsCompleted(3) {
		t.Error("2 of 3 should not be completed")
	}
	p.CompletedSentences = 3
	if !p.IsCompleted(3) {
		t.Error("3 of 3 should be completed")
	}
}

func TestProgress_AddPracticeTime(t *testing.T) {
	var p Progress
	p = p.AddPracticeTime(90 * time.Second)
	p = p.AddPracticeTime(30 * time.Second)
	p = p.AddPracticeTime(-10 * time.Second) // ignored
	if p.PracticeTime != 2*time.Minute {
		t.Errorf("PracticeTime = %v; want 2m", p.PracticeTime)
	}
}
