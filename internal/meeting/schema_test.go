package meeting

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNormalize_ValidTranscript(t *testing.T) {
	date := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	raw, _ := json.Marshal(map[string]any{
		"meeting_id": "meeting_abc123",
		"title":      "Q1 Planning",
		"date":       date.Format(time.RFC3339),
		"tier":       "sensitive",
		"turns": []map[string]any{
			{"timestamp": "00:00", "speaker": "Alice", "text": "Let's get started."},
		},
	})

	tr, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tr.MeetingID != "meeting_abc123" {
		t.Errorf("expected meeting_id meeting_abc123, got %s", tr.MeetingID)
	}
	if tr.Tier != TierSensitive {
		t.Errorf("expected tier sensitive, got %s", tr.Tier)
	}
	if len(tr.Turns) != 1 {
		t.Errorf("expected 1 turn, got %d", len(tr.Turns))
	}
}

func TestNormalize_MissingMeetingID(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"title":    "Standup",
		"tier":     "ordinary",
		"raw_text": "[00:00] Alice: hello everyone",
	})

	tr, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tr.MeetingID == "" {
		t.Error("expected generated meeting_id, got empty string")
	}
	// "meeting_" plus 12 hex chars from the UUID.
	if len(tr.MeetingID) != len("meeting_")+12 {
		t.Errorf("unexpected meeting_id format: %s", tr.MeetingID)
	}
}

func TestNormalize_MissingTierDefaultsToOrdinary(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"title":    "Standup",
		"raw_text": "[00:00] Alice: hello",
	})

	tr, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Tier != TierOrdinary {
		t.Errorf("expected default tier ordinary, got %s", tr.Tier)
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	_, err := Normalize([]byte("{not json"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestValidate_MissingTitle(t *testing.T) {
	tr := Transcript{Tier: TierOrdinary, RawText: "hello"}
	if err := tr.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestValidate_UnknownTier(t *testing.T) {
	tr := Transcript{Title: "Standup", Tier: "secret", RawText: "hello"}
	if err := tr.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestValidate_EmptyContent(t *testing.T) {
	tr := Transcript{Title: "Standup", Tier: TierOrdinary, RawText: "   "}
	if err := tr.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestWorkingText_RawTextWins(t *testing.T) {
	tr := Transcript{
		Title:   "Standup",
		Tier:    TierOrdinary,
		RawText: "the raw version",
		Turns: []DialogueTurn{
			{Timestamp: "00:00", Speaker: "Alice", Text: "the structured version"},
		},
	}

	if got := tr.WorkingText(); got != "the raw version" {
		t.Errorf("expected raw text to win, got %q", got)
	}
}

func TestWorkingText_RendersTurns(t *testing.T) {
	tr := Transcript{
		Turns: []DialogueTurn{
			{Timestamp: "00:00", Speaker: "Alice", Text: "hello"},
			{Timestamp: "00:05", Speaker: "Bob", Text: "hi"},
		},
	}

	want := "[00:00] Alice: hello\n[00:05] Bob: hi\n"
	if got := tr.WorkingText(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestGroupBySpeaker_OrderedByFirstAppearance(t *testing.T) {
	tr := Transcript{
		Turns: []DialogueTurn{
			{Speaker: "Bob", Text: "first"},
			{Speaker: "Alice", Text: "second"},
			{Speaker: "Bob", Text: "third"},
		},
	}

	groups := tr.GroupBySpeaker()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Speaker != "Bob" || groups[1].Speaker != "Alice" {
		t.Errorf("expected order [Bob Alice], got [%s %s]", groups[0].Speaker, groups[1].Speaker)
	}
	if len(groups[0].Texts) != 2 {
		t.Errorf("expected Bob to have 2 turns, got %d", len(groups[0].Texts))
	}
}

func TestGroupBySpeaker_ParsesRawText(t *testing.T) {
	tr := Transcript{
		RawText: "[00:00] Alice: hello there\nnot a turn line\n[00:05] Bob: hi Alice\n[00:10] Alice: update time",
	}

	groups := tr.GroupBySpeaker()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Speaker != "Alice" {
		t.Errorf("expected first speaker Alice, got %s", groups[0].Speaker)
	}
	if len(groups[0].Texts) != 2 {
		t.Errorf("expected Alice to have 2 turns, got %d", len(groups[0].Texts))
	}
	if groups[1].Texts[0] != "hi Alice" {
		t.Errorf("expected Bob's turn 'hi Alice', got %q", groups[1].Texts[0])
	}
}

func TestParseTier_Invalid(t *testing.T) {
	if _, err := ParseTier("classified"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
