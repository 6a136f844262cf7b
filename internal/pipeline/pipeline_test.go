package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"
	"github.com/anderson-ufrj/meeting-intelligence/internal/redact"
	"github.com/anderson-ufrj/meeting-intelligence/internal/sentiment"
	"github.com/anderson-ufrj/meeting-intelligence/internal/store"
	"github.com/anderson-ufrj/meeting-intelligence/internal/testutil"
)

const testDim = 16

func ordinaryTranscript() meeting.Transcript {
	return meeting.Transcript{
		MeetingID: "meeting_ord1",
		Title:     "Weekly Standup",
		Tier:      meeting.TierOrdinary,
		Turns: []meeting.DialogueTurn{
			{Timestamp: "00:00", Speaker: "Alice", Text: "good progress on the migration this week"},
			{Timestamp: "00:10", Speaker: "Bob", Text: "the deploy failed twice, still blocked"},
		},
	}
}

func sensitiveTranscript() meeting.Transcript {
	return meeting.Transcript{
		MeetingID: "meeting_sen1",
		Title:     "Compensation Review",
		Tier:      meeting.TierSensitive,
		Turns: []meeting.DialogueTurn{
			{Timestamp: "00:00", Speaker: "Alice", Text: "send the offer to john@acme.com today"},
		},
	}
}

func auditSteps(entries []meeting.AuditEntry) []string {
	steps := make([]string, len(entries))
	for i, e := range entries {
		steps[i] = e.Step
	}
	return steps
}

func TestProcess_OrdinarySkipsRedaction(t *testing.T) {
	mem := store.NewMemory(testDim)
	x := &testutil.StubExtractor{}
	p := New(testutil.FailingRedactor{}, x, &testutil.StubScorer{}, testutil.NewStubEmbedder(testDim), mem)

	processed, err := p.Process(context.Background(), ordinaryTranscript())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The broken redactor was never consulted.
	steps := auditSteps(processed.AuditLog)
	for _, s := range steps {
		if s == StepRedaction {
			t.Errorf("expected no redaction step for ordinary tier, got %v", steps)
		}
	}
	if !strings.Contains(x.ReceivedText(), "good progress on the migration") {
		t.Errorf("extractor did not receive the transcript text: %q", x.ReceivedText())
	}
}

func TestProcess_SensitiveTextIsRedactedBeforeExtraction(t *testing.T) {
	mem := store.NewMemory(testDim)
	x := &testutil.StubExtractor{}
	p := New(redact.NewRegex(), x, &testutil.StubScorer{}, testutil.NewStubEmbedder(testDim), mem)

	processed, err := p.Process(context.Background(), sensitiveTranscript())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(x.ReceivedText(), "john@acme.com") {
		t.Errorf("unredacted email reached the extractor: %q", x.ReceivedText())
	}
	if !strings.Contains(x.ReceivedText(), "<EMAIL>") {
		t.Errorf("expected placeholder in extractor input, got %q", x.ReceivedText())
	}

	steps := auditSteps(processed.AuditLog)
	want := []string{StepReceived, StepRedaction, StepExtraction, StepSentiment, StepIndexing}
	if len(steps) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], steps[i])
		}
	}
}

func TestProcess_RedactionFailureFailsClosed(t *testing.T) {
	mem := store.NewMemory(testDim)
	x := &testutil.StubExtractor{}
	p := New(testutil.FailingRedactor{}, x, &testutil.StubScorer{}, testutil.NewStubEmbedder(testDim), mem)

	_, err := p.Process(context.Background(), sensitiveTranscript())
	if !errors.Is(err, meeting.ErrRedactionUnavailable) {
		t.Fatalf("expected ErrRedactionUnavailable, got %v", err)
	}

	// No unredacted text escaped to the extractor or the store.
	if x.Calls != 0 {
		t.Errorf("extractor was called %d times after redaction failure", x.Calls)
	}
	list, _ := mem.List(context.Background(), store.NamespaceSensitive)
	if len(list) != 0 {
		t.Errorf("expected nothing stored, got %d records", len(list))
	}
}

func TestProcess_ExtractionFailureIsTerminal(t *testing.T) {
	mem := store.NewMemory(testDim)
	x := &testutil.StubExtractor{Err: errors.New("model unavailable")}
	p := New(redact.NewRegex(), x, &testutil.StubScorer{}, testutil.NewStubEmbedder(testDim), mem)

	_, err := p.Process(context.Background(), ordinaryTranscript())
	if !errors.Is(err, meeting.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}

	list, _ := mem.List(context.Background(), store.NamespaceOrdinary)
	if len(list) != 0 {
		t.Errorf("expected nothing stored, got %d records", len(list))
	}
}

func TestProcess_SentimentFailureDegrades(t *testing.T) {
	mem := store.NewMemory(testDim)
	scorer := &testutil.StubScorer{FailSpeaker: "Bob"}
	p := New(redact.NewRegex(), &testutil.StubExtractor{}, scorer, testutil.NewStubEmbedder(testDim), mem)

	processed, err := p.Process(context.Background(), ordinaryTranscript())
	if err != nil {
		t.Fatalf("expected run to continue past sentiment failure, got %v", err)
	}

	if len(processed.Sentiments) != 1 {
		t.Fatalf("expected 1 sentiment record, got %d", len(processed.Sentiments))
	}
	if processed.Sentiments[0].Speaker != "Alice" {
		t.Errorf("expected Alice scored, got %s", processed.Sentiments[0].Speaker)
	}

	var sentimentOutcome string
	for _, e := range processed.AuditLog {
		if e.Step == StepSentiment {
			sentimentOutcome = e.Outcome
		}
	}
	if !strings.Contains(sentimentOutcome, "1 failed") {
		t.Errorf("expected failure count in audit outcome, got %q", sentimentOutcome)
	}
}

func TestProcess_IndexingFailureStillReturnsMeeting(t *testing.T) {
	mem := store.NewMemory(testDim)
	p := New(redact.NewRegex(), &testutil.StubExtractor{}, &testutil.StubScorer{},
		&testutil.FailingEmbedder{Dim: testDim}, mem)

	processed, err := p.Process(context.Background(), ordinaryTranscript())
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}

	if processed.VectorID != "" {
		t.Errorf("expected empty vector id, got %q", processed.VectorID)
	}
	last := processed.AuditLog[len(processed.AuditLog)-1]
	if last.Step != StepIndexing || !strings.Contains(last.Outcome, "failed") {
		t.Errorf("expected failed indexing audit entry, got %+v", last)
	}
	if len(processed.Insights.Summary) == 0 {
		t.Error("expected insights preserved despite indexing failure")
	}
}

func TestProcess_SuccessfulRunIsSearchable(t *testing.T) {
	mem := store.NewMemory(testDim)
	x := &testutil.StubExtractor{Bundle: &meeting.InsightBundle{
		Summary: "migration plan approved",
		Decisions: []meeting.Decision{
			{Topic: "migration", Decision: "go ahead in April", Confidence: 0.8},
		},
	}}
	p := New(redact.NewRegex(), x, sentiment.NewLexicon(), testutil.NewStubEmbedder(testDim), mem)

	tr := ordinaryTranscript()
	processed, err := p.Process(context.Background(), tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if processed.VectorID != "ordinary_meeting_ord1" {
		t.Errorf("expected vector id ordinary_meeting_ord1, got %q", processed.VectorID)
	}
	if processed.Insights.MeetingTitle != "Weekly Standup" {
		t.Errorf("expected title stamped onto insights, got %q", processed.Insights.MeetingTitle)
	}

	rec, err := mem.Get(context.Background(), store.NamespaceOrdinary, tr.MeetingID)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if !strings.Contains(rec.Document, "migration plan approved") {
		t.Errorf("search document missing summary: %q", rec.Document)
	}
	if !strings.Contains(rec.Document, "go ahead in April") {
		t.Errorf("search document missing decision: %q", rec.Document)
	}

	raw, err := mem.GetRawText(context.Background(), store.NamespaceOrdinary, tr.MeetingID)
	if err != nil {
		t.Fatalf("raw text missing: %v", err)
	}
	if !strings.Contains(raw, "good progress on the migration") {
		t.Errorf("expected submitted transcript preserved, got %q", raw)
	}
}

func TestProcess_SensitiveRecordStaysInSensitiveNamespace(t *testing.T) {
	mem := store.NewMemory(testDim)
	p := New(redact.NewRegex(), &testutil.StubExtractor{}, &testutil.StubScorer{},
		testutil.NewStubEmbedder(testDim), mem)

	tr := sensitiveTranscript()
	if _, err := p.Process(context.Background(), tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := mem.Get(context.Background(), store.NamespaceSensitive, tr.MeetingID); err != nil {
		t.Errorf("expected record in sensitive namespace: %v", err)
	}
	if _, err := mem.Get(context.Background(), store.NamespaceOrdinary, tr.MeetingID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("record leaked into ordinary namespace: %v", err)
	}
}

func TestProcess_InvalidTranscriptRejected(t *testing.T) {
	p := New(redact.NewRegex(), &testutil.StubExtractor{}, &testutil.StubScorer{},
		testutil.NewStubEmbedder(testDim), store.NewMemory(testDim))

	_, err := p.Process(context.Background(), meeting.Transcript{Tier: meeting.TierOrdinary})
	if !errors.Is(err, meeting.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
