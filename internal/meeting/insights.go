package meeting

import (
	"fmt"
	"strings"
	"time"
)

// Decision is an extracted decision from the meeting.
type Decision struct {
	Topic      string   `json:"topic"`
	Decision   string   `json:"decision"`
	Deciders   []string `json:"deciders,omitempty"`
	Confidence float64  `json:"confidence"`
}

// ActionItem is a task assigned during the meeting.
type ActionItem struct {
	Task     string `json:"task"`
	Owner    string `json:"owner"`
	Deadline string `json:"deadline,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// Topic is a key topic discussed in the meeting.
type Topic struct {
	Name            string   `json:"name"`
	Importance      string   `json:"importance"`
	RelatedSpeakers []string `json:"related_speakers,omitempty"`
}

// OpenQuestion is an unresolved question from the meeting.
type OpenQuestion struct {
	Question     string   `json:"question"`
	Context      string   `json:"context,omitempty"`
	Stakeholders []string `json:"stakeholders,omitempty"`
}

// InsightBundle is the structured output of insight extraction.
type InsightBundle struct {
	MeetingTitle  string         `json:"meeting_title"`
	MeetingDate   string         `json:"meeting_date,omitempty"`
	Summary       string         `json:"summary"`
	Decisions     []Decision     `json:"decisions,omitempty"`
	ActionItems   []ActionItem   `json:"action_items,omitempty"`
	KeyTopics     []Topic        `json:"key_topics,omitempty"`
	OpenQuestions []OpenQuestion `json:"open_questions,omitempty"`
}

// Validate rejects out-of-range confidence values instead of clamping them.
func (b *InsightBundle) Validate() error {
	if b.Summary == "" {
		return fmt.Errorf("%w: insight bundle missing summary", ErrValidation)
	}
	for i, d := range b.Decisions {
		if d.Confidence < 0.0 || d.Confidence > 1.0 {
			return fmt.Errorf("%w: decision %d confidence %v outside [0,1]", ErrValidation, i, d.Confidence)
		}
	}
	return nil
}

// SearchDocument renders the bundle as the text that gets embedded and
// searched: summary, decisions, action items, topics, in that order.
func (b *InsightBundle) SearchDocument() string {
	var sb strings.Builder

	sb.WriteString("Summary: " + b.Summary + "\n")

	if len(b.Decisions) > 0 {
		sb.WriteString("\nDecisions:\n")
		for _, d := range b.Decisions {
			fmt.Fprintf(&sb, "- %s: %s\n", d.Topic, d.Decision)
		}
	}

	if len(b.ActionItems) > 0 {
		sb.WriteString("\nAction Items:\n")
		for _, a := range b.ActionItems {
			if a.Deadline != "" {
				fmt.Fprintf(&sb, "- %s: %s (by %s)\n", a.Owner, a.Task, a.Deadline)
			} else {
				fmt.Fprintf(&sb, "- %s: %s\n", a.Owner, a.Task)
			}
		}
	}

	if len(b.KeyTopics) > 0 {
		sb.WriteString("\nTopics:\n")
		for _, t := range b.KeyTopics {
			fmt.Fprintf(&sb, "- %s (%s)\n", t.Name, t.Importance)
		}
	}

	return sb.String()
}

// Sentiment labels produced by the scorer.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// SentimentRecord is the per-speaker sentiment result.
type SentimentRecord struct {
	Speaker    string   `json:"speaker"`
	Sentiment  string   `json:"overall_sentiment"`
	Confidence float64  `json:"confidence"`
	KeyPhrases []string `json:"key_phrases,omitempty"`
}

// Validate checks the label and confidence range.
func (r *SentimentRecord) Validate() error {
	switch r.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		return fmt.Errorf("%w: unknown sentiment label %q", ErrValidation, r.Sentiment)
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return fmt.Errorf("%w: sentiment confidence %v outside [0,1]", ErrValidation, r.Confidence)
	}
	if len(r.KeyPhrases) > 3 {
		return fmt.Errorf("%w: at most 3 key phrases, got %d", ErrValidation, len(r.KeyPhrases))
	}
	return nil
}

// AuditEntry records one pipeline step's outcome. The audit log is
// append-only and travels with the processed meeting.
type AuditEntry struct {
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
}

// ProcessedMeeting is the output of a successful pipeline run. It is created
// whole at the end of the run and never patched in place.
type ProcessedMeeting struct {
	MeetingID   string            `json:"meeting_id"`
	Tier        Tier              `json:"tier"`
	Insights    InsightBundle     `json:"insights"`
	Sentiments  []SentimentRecord `json:"sentiments,omitempty"`
	VectorID    string            `json:"vector_id,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
	AuditLog    []AuditEntry      `json:"audit_log"`
}
