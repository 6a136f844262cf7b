package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anderson-ufrj/meeting-intelligence/internal/embedding"
	"github.com/anderson-ufrj/meeting-intelligence/internal/extract"
	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"
	"github.com/anderson-ufrj/meeting-intelligence/internal/redact"
	"github.com/anderson-ufrj/meeting-intelligence/internal/sentiment"
	"github.com/anderson-ufrj/meeting-intelligence/internal/store"
)

// Audit step names, one per pipeline state transition.
const (
	StepReceived   = "received"
	StepRedaction  = "redaction"
	StepExtraction = "extraction"
	StepSentiment  = "sentiment"
	StepIndexing   = "indexing"
)

// Pipeline sequences redaction, extraction, sentiment scoring, and indexing
// for a single transcript. It is an explicitly constructed context object —
// collaborators and store are injected, there is no package-level state —
// so concurrent transcripts share nothing but the record store.
type Pipeline struct {
	redactor  redact.Redactor
	extractor extract.Extractor
	scorer    sentiment.Scorer
	embedder  embedding.Embedder
	store     store.RecordStore
}

func New(r redact.Redactor, x extract.Extractor, s sentiment.Scorer, e embedding.Embedder, st store.RecordStore) *Pipeline {
	return &Pipeline{
		redactor:  r,
		extractor: x,
		scorer:    s,
		embedder:  e,
		store:     st,
	}
}

// Process runs one transcript end to end. Steps execute strictly in order;
// for a sensitive transcript every step after redaction sees only redacted
// text. A failed run returns an error from the taxonomy in
// internal/meeting; indexing failure alone still yields a processed meeting.
func (p *Pipeline) Process(ctx context.Context, tr meeting.Transcript) (*meeting.ProcessedMeeting, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	audit := []meeting.AuditEntry{auditEntry(StepReceived, fmt.Sprintf("tier=%s", tr.Tier))}

	// Redaction, sensitive tier only. Fail-closed: an unavailable redactor
	// must never let unredacted text continue downstream, and the call is
	// never retried — inconsistent partial redaction is worse than failing.
	working := tr
	if tr.Tier == meeting.TierSensitive {
		res, err := p.redactor.Redact(ctx, tr.WorkingText())
		if err != nil {
			slog.Error("redaction unavailable, failing pipeline",
				"meeting_id", tr.MeetingID, "error", err)
			return nil, fmt.Errorf("%w: %v", meeting.ErrRedactionUnavailable, err)
		}
		working = redactedCopy(tr, res.RedactedText)
		audit = append(audit, auditEntry(StepRedaction, fmt.Sprintf("redacted %d entities", res.Count)))
	}

	// Extraction. The collaborator owns its bounded schema retries; an error
	// here is terminal for the run.
	insights, err := p.extractor.Extract(ctx, working.WorkingText(), participantNames(tr))
	if err != nil {
		slog.Error("extraction failed", "meeting_id", tr.MeetingID, "error", err)
		return nil, fmt.Errorf("%w: %v", meeting.ErrExtractionFailed, err)
	}
	insights.MeetingTitle = tr.Title
	if tr.Date != nil {
		insights.MeetingDate = tr.Date.Format(time.RFC3339)
	}
	audit = append(audit, auditEntry(StepExtraction,
		fmt.Sprintf("extracted %d decisions, %d actions", len(insights.Decisions), len(insights.ActionItems))))

	// Sentiment, per speaker over the working (possibly redacted) text. A
	// speaker whose scoring fails simply has no record; the run continues.
	var sentiments []meeting.SentimentRecord
	var scoreFailures int
	for _, group := range working.GroupBySpeaker() {
		rec, err := p.scorer.Score(ctx, group.Speaker, group.Texts)
		if err != nil {
			scoreFailures++
			slog.Warn("sentiment scoring failed for speaker",
				"meeting_id", tr.MeetingID, "speaker", group.Speaker, "error", err)
			continue
		}
		if rec != nil {
			sentiments = append(sentiments, *rec)
		}
	}
	outcome := fmt.Sprintf("scored %d speakers", len(sentiments))
	if scoreFailures > 0 {
		outcome += fmt.Sprintf(" (%d failed)", scoreFailures)
	}
	audit = append(audit, auditEntry(StepSentiment, outcome))

	processed := &meeting.ProcessedMeeting{
		MeetingID:   tr.MeetingID,
		Tier:        tr.Tier,
		Insights:    *insights,
		Sentiments:  sentiments,
		ProcessedAt: time.Now().UTC(),
	}

	// Indexing. Non-fatal by policy: the extraction and sentiment work is
	// not discarded because storage hiccuped; the meeting is returned
	// unsearchable with the failure on its audit log.
	vectorID, err := p.index(ctx, tr, processed)
	if err != nil {
		slog.Error("indexing failed, returning unindexed meeting",
			"meeting_id", tr.MeetingID, "error", err)
		audit = append(audit, auditEntry(StepIndexing,
			fmt.Sprintf("failed: %v", fmt.Errorf("%w: %v", meeting.ErrIndexingFailed, err))))
	} else {
		processed.VectorID = vectorID
		audit = append(audit, auditEntry(StepIndexing, fmt.Sprintf("indexed as %s", vectorID)))
	}

	processed.AuditLog = audit
	return processed, nil
}

// index builds the search document, embeds it, and writes the record into
// the transcript's namespace. The raw text key keeps the submitted
// transcript as-is for later retrieval within the same partition.
func (p *Pipeline) index(ctx context.Context, tr meeting.Transcript, processed *meeting.ProcessedMeeting) (string, error) {
	document := processed.Insights.SearchDocument()

	vector, err := p.embedder.Embed(ctx, document)
	if err != nil {
		return "", fmt.Errorf("embed document: %w", err)
	}

	ns := store.ForTier(tr.Tier)

	meetingJSON, err := json.Marshal(processed)
	if err != nil {
		return "", fmt.Errorf("marshal processed meeting: %w", err)
	}

	meta := store.Metadata{
		MeetingID:   tr.MeetingID,
		Title:       tr.Title,
		Tier:        string(tr.Tier),
		ProcessedAt: processed.ProcessedAt,
		Meeting:     meetingJSON,
	}

	if err := p.store.Add(ctx, ns, tr.MeetingID, document, meta, vector, tr.WorkingText()); err != nil {
		return "", fmt.Errorf("store record: %w", err)
	}

	return fmt.Sprintf("%s_%s", ns, tr.MeetingID), nil
}

// redactedCopy rebuilds the transcript around the redacted text. Turns are
// dropped so every downstream reader parses the redacted lines instead.
func redactedCopy(tr meeting.Transcript, redactedText string) meeting.Transcript {
	return meeting.Transcript{
		MeetingID:    tr.MeetingID,
		Title:        tr.Title,
		Date:         tr.Date,
		Tier:         tr.Tier,
		Participants: tr.Participants,
		RawText:      redactedText,
	}
}

func participantNames(tr meeting.Transcript) []string {
	names := make([]string, 0, len(tr.Participants))
	for _, p := range tr.Participants {
		names = append(names, p.Name)
	}
	return names
}

func auditEntry(step, outcome string) meeting.AuditEntry {
	return meeting.AuditEntry{
		Step:      step,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
	}
}
