package redact

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

// Entity is one detected PII span.
type Entity struct {
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Result of a redaction pass.
type Result struct {
	RedactedText string   `json:"redacted_text"`
	Entities     []Entity `json:"entities,omitempty"`
	Count        int      `json:"redaction_count"`
}

// Redactor replaces personally identifying spans with placeholder tokens.
// Implementations that depend on an external detector return an error when
// it cannot run; the pipeline treats that as fatal for sensitive transcripts.
type Redactor interface {
	Redact(ctx context.Context, text string) (*Result, error)
}

// pattern order matters: longer, more specific spans are replaced first so a
// credit card number is not half-eaten by the phone pattern.
var patterns = []struct {
	entityType string
	re         *regexp.Regexp
}{
	{"EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"CREDIT_CARD", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"PHONE", regexp.MustCompile(`\b(?:\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{"IP_ADDRESS", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// Regex is the built-in pattern-based redactor. It covers the common
// machine-recognizable PII shapes; names and locations need a real entity
// detector behind the same interface.
type Regex struct{}

func NewRegex() *Regex { return &Regex{} }

// Redact replaces every match with a <TYPE> placeholder and reports the
// spans found in the original text.
func (r *Regex) Redact(_ context.Context, text string) (*Result, error) {
	var entities []Entity
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{Type: p.entityType, Start: loc[0], End: loc[1]})
		}
	}

	// Drop spans swallowed by an earlier, higher-priority match.
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Start != entities[j].Start {
			return entities[i].Start < entities[j].Start
		}
		return entities[i].End > entities[j].End
	})
	kept := entities[:0]
	lastEnd := -1
	for _, e := range entities {
		if e.Start < lastEnd {
			continue
		}
		kept = append(kept, e)
		lastEnd = e.End
	}
	entities = kept

	// Rebuild from the back so offsets stay valid.
	redacted := text
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		redacted = redacted[:e.Start] + fmt.Sprintf("<%s>", e.Type) + redacted[e.End:]
	}

	return &Result{
		RedactedText: redacted,
		Entities:     entities,
		Count:        len(entities),
	}, nil
}
