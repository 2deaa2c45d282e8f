// Package score rates how closely a learner's transcribed speech matches the
// reference sentence. Scores are display-only feedback: nothing in session
// control branches on them, so a misheard word never blocks practice.
//
// Two views are produced from one comparison:
//
//  1. Accuracy — a normalised 0..1 similarity over the whole sentence,
//     derived from Levenshtein edit distance on the cleaned-up strings.
//  2. Word spans — a per-reference-word verdict (hit, near, miss) using
//     Jaro-Winkler similarity against the positionally aligned spoken word,
//     for highlighting which words need work.
package score

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultHitThreshold  = 0.92
	defaultNearThreshold = 0.75
)

// Verdict classifies one reference word against the learner's rendition.
type Verdict int

const (
	// Miss means the word was absent or unrecognisable.
	Miss Verdict = iota
	// Near means the word was attempted but noticeably off.
	Near
	// Hit means the word matched.
	Hit
)

// String returns the verdict name for logs and test failures.
func (v Verdict) String() string {
	switch v {
	case Hit:
		return "hit"
	case Near:
		return "near"
	case Miss:
		return "miss"
	}
	return "unknown"
}

// WordSpan is the per-word comparison outcome, in reference order.
type WordSpan struct {
	// Reference is the expected word as written in the sentence.
	Reference string
	// Spoken is the aligned word from the transcript, empty when missing.
	Spoken string
	// Similarity is the Jaro-Winkler score between the normalised words.
	Similarity float64
	Verdict    Verdict
}

// Result is the outcome of comparing a transcript against a reference
// sentence.
type Result struct {
	// Accuracy is the whole-sentence similarity in [0, 1].
	Accuracy float64
	// Words holds one span per reference word.
	Words []WordSpan
}

// Option is a functional option for configuring a Scorer.
type Option func(*Scorer)

// WithHitThreshold sets the minimum per-word Jaro-Winkler score counted as a
// hit. Default 0.92.
func WithHitThreshold(t float64) Option {
	return func(s *Scorer) { s.hitThreshold = t }
}

// WithNearThreshold sets the minimum per-word Jaro-Winkler score counted as
// near (below the hit threshold). Default 0.75.
func WithNearThreshold(t float64) Option {
	return func(s *Scorer) { s.nearThreshold = t }
}

// Scorer compares transcripts against reference sentences. It is read-only
// after construction and safe for concurrent use.
type Scorer struct {
	hitThreshold  float64
	nearThreshold float64
}

// New returns a Scorer configured with the supplied options.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		hitThreshold:  defaultHitThreshold,
		nearThreshold: defaultNearThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Compare rates spoken against reference. An empty transcript scores 0 with
// every reference word a miss; an empty reference scores 0 with no spans.
func (s *Scorer) Compare(reference, spoken string) Result {
	refWords := normalizeWords(reference)
	spokenWords := normalizeWords(spoken)

	if len(refWords) == 0 {
		return Result{}
	}

	res := Result{
		Accuracy: sentenceAccuracy(strings.Join(refWords, " "), strings.Join(spokenWords, " ")),
		Words:    make([]WordSpan, len(refWords)),
	}

	for i, ref := range refWords {
		span := WordSpan{Reference: ref}
		if i < len(spokenWords) {
			span.Spoken = spokenWords[i]
			span.Similarity = matchr.JaroWinkler(ref, spokenWords[i], false)
		}
		switch {
		case span.Similarity >= s.hitThreshold:
			span.Verdict = Hit
		case span.Similarity >= s.nearThreshold:
			span.Verdict = Near
		default:
			span.Verdict = Miss
		}
		res.Words[i] = span
	}

	return res
}

// sentenceAccuracy maps Levenshtein edit distance to a 0..1 similarity.
func sentenceAccuracy(ref, spoken string) float64 {
	if ref == "" && spoken == "" {
		return 0
	}
	if spoken == "" || ref == "" {
		return 0
	}
	dist := matchr.Levenshtein(ref, spoken)
	longest := len([]rune(ref))
	if l := len([]rune(spoken)); l > longest {
		longest = l
	}
	if dist >= longest {
		return 0
	}
	return 1 - float64(dist)/float64(longest)
}

// normalizeWords lowercases, strips punctuation, and splits on whitespace so
// "Café!" and "cafe" compare by content, not typography. Diacritics are
// preserved: they are part of the word in most practice languages.
func normalizeWords(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
		// Everything else (punctuation, symbols) is dropped.
	}
	return strings.Fields(b.String())
}
