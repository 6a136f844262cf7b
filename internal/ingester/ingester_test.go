package ingester

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// stubPipe satisfies Processor without any real collaborators.
type stubPipe struct {
	err  error
	last meeting.Transcript
}

func (p *stubPipe) Process(_ context.Context, tr meeting.Transcript) (*meeting.ProcessedMeeting, error) {
	p.last = tr
	if p.err != nil {
		return nil, p.err
	}
	return &meeting.ProcessedMeeting{
		MeetingID:   tr.MeetingID,
		Tier:        tr.Tier,
		VectorID:    string(tr.Tier) + "_" + tr.MeetingID,
		ProcessedAt: time.Now().UTC(),
	}, nil
}

func testIngester(pipe Processor) *Ingester {
	ictx, ican := context.WithCancel(context.Background())
	return &Ingester{pipe: pipe, ctx: ictx, cancel: ican}
}

func transcriptPayload(id, title, tier string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"meeting_id": id,
		"title":      title,
		"tier":       tier,
		"raw_text":   "[00:00] Alice: quick update on the rollout",
	})
	return raw
}

func TestHandleMessage_ProcessesValidTranscript(t *testing.T) {
	pipe := &stubPipe{}
	ing := testIngester(pipe)

	msg := &fakeMsg{subject: SubjectSubmitted, data: transcriptPayload("meeting_n1", "Rollout Sync", "ordinary")}
	ing.handleMessage(msg)

	if pipe.last.MeetingID != "meeting_n1" {
		t.Errorf("expected pipeline to receive meeting_n1, got %q", pipe.last.MeetingID)
	}
	if !msg.acked {
		t.Error("expected message acked after successful run")
	}
}

func TestHandleMessage_MalformedTranscriptAckedAndSkipped(t *testing.T) {
	pipe := &stubPipe{}
	ing := testIngester(pipe)

	// Missing title fails validation; the message must not redeliver forever.
	msg := &fakeMsg{subject: SubjectSubmitted, data: transcriptPayload("meeting_n2", "", "ordinary")}
	ing.handleMessage(msg)

	if pipe.last.MeetingID != "" {
		t.Error("pipeline should not run for malformed transcripts")
	}
	if !msg.acked {
		t.Error("expected malformed message acked to stop redelivery")
	}
}

func TestHandleMessage_FailureHandlerCalled(t *testing.T) {
	pipe := &stubPipe{err: errors.New("extraction exploded")}
	ing := testIngester(pipe)

	var gotID, gotTier, gotReason string
	ing.SetFailureHandler(func(_ context.Context, meetingID, tier, reason string) {
		gotID, gotTier, gotReason = meetingID, tier, reason
	})

	msg := &fakeMsg{subject: SubjectSubmitted, data: transcriptPayload("meeting_n3", "Doomed Sync", "sensitive")}
	ing.handleMessage(msg)

	if gotID != "meeting_n3" {
		t.Errorf("expected failure handler for meeting_n3, got %q", gotID)
	}
	if gotTier != "sensitive" {
		t.Errorf("expected tier sensitive, got %q", gotTier)
	}
	if gotReason != "extraction exploded" {
		t.Errorf("expected reason from pipeline error, got %q", gotReason)
	}
	if !msg.acked {
		t.Error("expected failed message acked")
	}
}

func TestHandleMessage_NilFailureHandlerNoPanic(t *testing.T) {
	pipe := &stubPipe{err: errors.New("boom")}
	ing := testIngester(pipe)

	msg := &fakeMsg{subject: SubjectSubmitted, data: transcriptPayload("meeting_n4", "Sync", "ordinary")}
	ing.handleMessage(msg)

	if !msg.acked {
		t.Error("expected message acked")
	}
}

// fakeMsg implements jetstream.Msg for unit testing without a real NATS connection.
type fakeMsg struct {
	subject string
	data    []byte
	acked   bool
}

func (m *fakeMsg) Data() []byte                       { return m.data }
func (m *fakeMsg) Subject() string                    { return m.subject }
func (m *fakeMsg) Ack() error                         { m.acked = true; return nil }
func (m *fakeMsg) Nak() error                         { return nil }
func (m *fakeMsg) NakWithDelay(d time.Duration) error { return nil }
func (m *fakeMsg) InProgress() error                  { return nil }
func (m *fakeMsg) Term() error                        { return nil }
func (m *fakeMsg) TermWithReason(reason string) error { return nil }
func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return nil, nil
}
func (m *fakeMsg) Headers() nats.Header                { return nil }
func (m *fakeMsg) Reply() string                       { return "" }
func (m *fakeMsg) DoubleAck(ctx context.Context) error { return nil }
