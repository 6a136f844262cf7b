package meeting

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tier is the privacy classification of a meeting. It is fixed at submission
// and never inferred from content.
type Tier string

const (
	TierOrdinary  Tier = "ordinary"
	TierSensitive Tier = "sensitive"
)

// ParseTier validates a tier string.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierOrdinary, TierSensitive:
		return Tier(s), nil
	}
	return "", fmt.Errorf("%w: unknown tier %q", ErrValidation, s)
}

// Speaker is a meeting participant.
type Speaker struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// DialogueTurn is a single speaker turn in the transcript.
type DialogueTurn struct {
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

// Transcript is the immutable input to the pipeline. At least one of Turns
// or RawText must be present.
type Transcript struct {
	MeetingID    string         `json:"meeting_id"`
	Title        string         `json:"title"`
	Date         *time.Time     `json:"date,omitempty"`
	Tier         Tier           `json:"tier"`
	Participants []Speaker      `json:"participants,omitempty"`
	Turns        []DialogueTurn `json:"turns,omitempty"`
	RawText      string         `json:"raw_text,omitempty"`
}

// Normalize unmarshals a raw transcript payload and fills in missing fields
// with sensible defaults. It does not validate; call Validate afterwards.
func Normalize(raw []byte) (Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(raw, &t); err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if t.MeetingID == "" {
		t.MeetingID = "meeting_" + uuid.New().String()[:12]
	}

	if t.Tier == "" {
		slog.Warn("transcript missing tier, defaulting to ordinary", "meeting_id", t.MeetingID)
		t.Tier = TierOrdinary
	}

	return t, nil
}

// Validate rejects malformed transcripts before any collaborator is called.
func (t *Transcript) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if _, err := ParseTier(string(t.Tier)); err != nil {
		return err
	}
	if len(t.Turns) == 0 && strings.TrimSpace(t.RawText) == "" {
		return fmt.Errorf("%w: transcript needs turns or raw text", ErrValidation)
	}
	return nil
}

// WorkingText renders the transcript as "[timestamp] Speaker: text" lines.
// RawText wins when both are present, matching what was actually submitted.
func (t *Transcript) WorkingText() string {
	if strings.TrimSpace(t.RawText) != "" {
		return t.RawText
	}
	var sb strings.Builder
	for _, turn := range t.Turns {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", turn.Timestamp, turn.Speaker, turn.Text)
	}
	return sb.String()
}

// SpeakerTurns groups one speaker's contributions in submission order.
type SpeakerTurns struct {
	Speaker string
	Texts   []string
}

// GroupBySpeaker collects each speaker's turns, ordered by first appearance.
// When only raw text is available it parses "[ts] Speaker: text" lines; lines
// that don't match the shape are ignored.
func (t *Transcript) GroupBySpeaker() []SpeakerTurns {
	if len(t.Turns) > 0 {
		return groupTurns(t.Turns)
	}
	return parseRawTurns(t.RawText)
}

func groupTurns(turns []DialogueTurn) []SpeakerTurns {
	byName := map[string]int{}
	var groups []SpeakerTurns
	for _, turn := range turns {
		if turn.Speaker == "" || strings.TrimSpace(turn.Text) == "" {
			continue
		}
		i, ok := byName[turn.Speaker]
		if !ok {
			i = len(groups)
			byName[turn.Speaker] = i
			groups = append(groups, SpeakerTurns{Speaker: turn.Speaker})
		}
		groups[i].Texts = append(groups[i].Texts, turn.Text)
	}
	return groups
}

func parseRawTurns(raw string) []SpeakerTurns {
	byName := map[string]int{}
	var groups []SpeakerTurns
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "---") {
			continue
		}
		// Expect "[timestamp] Speaker: text".
		closing := strings.Index(line, "]")
		if closing < 0 || !strings.HasPrefix(line, "[") {
			continue
		}
		rest := strings.TrimSpace(line[closing+1:])
		speaker, text, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		speaker = strings.TrimSpace(speaker)
		text = strings.TrimSpace(text)
		if speaker == "" || text == "" {
			continue
		}
		i, ok := byName[speaker]
		if !ok {
			i = len(groups)
			byName[speaker] = i
			groups = append(groups, SpeakerTurns{Speaker: speaker})
		}
		groups[i].Texts = append(groups[i].Texts, text)
	}
	return groups
}
