package sentiment

import (
	"context"
	"strings"

	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"
)

// Scorer produces one sentiment record per speaker. A speaker with no input
// text yields (nil, nil), not a zero-confidence placeholder.
type Scorer interface {
	Score(ctx context.Context, speaker string, texts []string) (*meeting.SentimentRecord, error)
}

// Lexicon is the built-in scorer: a word-list balance between positive and
// negative vocabulary over the speaker's combined turns. It is deliberately
// simple; a model-backed scorer plugs in behind the same interface.
type Lexicon struct{}

func NewLexicon() *Lexicon { return &Lexicon{} }

var positiveWords = wordSet(
	"good", "great", "excellent", "agree", "agreed", "love", "happy", "glad",
	"perfect", "awesome", "fantastic", "win", "works", "resolved", "done",
	"progress", "excited", "helpful", "thanks", "thank", "yes", "success",
	"improved", "improvement", "better", "best", "confident", "clear",
)

var negativeWords = wordSet(
	"bad", "terrible", "awful", "disagree", "hate", "angry", "blocked",
	"blocker", "problem", "problems", "issue", "issues", "fail", "failed",
	"failing", "broken", "worse", "worst", "concern", "concerned", "worried",
	"risk", "delay", "delayed", "missing", "wrong", "bug", "bugs", "no",
	"unhappy", "frustrated", "frustrating", "stuck",
)

// Score combines up to the speaker's first ten turns and classifies them by
// lexicon balance. Confidence reflects how one-sided the vocabulary is.
func (l *Lexicon) Score(_ context.Context, speaker string, texts []string) (*meeting.SentimentRecord, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	limit := len(texts)
	if limit > 10 {
		limit = 10
	}
	combined := strings.ToLower(strings.Join(texts[:limit], " "))

	var pos, neg int
	for _, word := range strings.FieldsFunc(combined, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
	}) {
		if positiveWords[word] {
			pos++
		}
		if negativeWords[word] {
			neg++
		}
	}

	label := meeting.SentimentNeutral
	confidence := 0.5
	if total := pos + neg; total > 0 {
		balance := float64(pos-neg) / float64(total)
		switch {
		case balance > 0.2:
			label = meeting.SentimentPositive
		case balance < -0.2:
			label = meeting.SentimentNegative
		}
		confidence = 0.5 + 0.5*abs(balance)
	}

	return &meeting.SentimentRecord{
		Speaker:    speaker,
		Sentiment:  label,
		Confidence: confidence,
		KeyPhrases: keyPhrases(texts),
	}, nil
}

// keyPhrases returns up to three distinct openings of the speaker's longer
// turns, eight words each.
func keyPhrases(texts []string) []string {
	var phrases []string
	for _, text := range texts {
		words := strings.Fields(text)
		if len(words) <= 3 {
			continue
		}
		if len(words) > 8 {
			words = words[:8]
		}
		phrase := strings.Join(words, " ")
		if !contains(phrases, phrase) {
			phrases = append(phrases, phrase)
		}
		if len(phrases) >= 3 {
			break
		}
	}
	return phrases
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
