package ingester

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anderson-ufrj/meeting-intelligence/internal/meeting"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Subjects for transcript intake and result publication.
const (
	SubjectSubmitted = "meetings.transcript.submitted"
	SubjectProcessed = "meetings.meeting.processed"
	SubjectFailed    = "meetings.meeting.failed"
)

const streamName = "MEETINGS"

// Processor runs one transcript through the pipeline. Satisfied by
// *pipeline.Pipeline.
type Processor interface {
	Process(ctx context.Context, tr meeting.Transcript) (*meeting.ProcessedMeeting, error)
}

// FailureHandlerFunc is called for every failed pipeline run (for alerting).
type FailureHandlerFunc func(ctx context.Context, meetingID, tier, reason string)

// Ingester consumes submitted transcripts from a JetStream stream, runs
// each through the pipeline, and publishes the outcome.
type Ingester struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	pipe      Processor
	subs      []jetstream.ConsumeContext
	onFailure FailureHandlerFunc
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(natsURL string, pipe Processor) (*Ingester, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ictx, ican := context.WithCancel(context.Background())
	return &Ingester{
		nc:     nc,
		js:     js,
		pipe:   pipe,
		ctx:    ictx,
		cancel: ican,
	}, nil
}

// Start binds a durable consumer to the transcript stream and begins
// consuming.
func (ing *Ingester) Start() error {
	ctx := context.Background()

	if err := ing.ensureStream(ctx); err != nil {
		return fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	consumerName := fmt.Sprintf("meetingd-%s", streamName)
	consumer, err := ing.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    3,
		AckWait:       5 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		ing.handleMessage(msg)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", consumerName, err)
	}

	ing.subs = append(ing.subs, cc)
	slog.Info("subscribed to stream", "stream", streamName, "consumer", consumerName)
	return nil
}

func (ing *Ingester) ensureStream(ctx context.Context) error {
	_, err := ing.js.Stream(ctx, streamName)
	if err == nil {
		return nil
	}

	_, err = ing.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{SubjectSubmitted},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", streamName, err)
	}

	slog.Info("created stream", "name", streamName, "subject", SubjectSubmitted)
	return nil
}

func (ing *Ingester) handleMessage(msg jetstream.Msg) {
	tr, err := meeting.Normalize(msg.Data())
	if err == nil {
		err = tr.Validate()
	}
	if err != nil {
		slog.Warn("malformed transcript, skipping",
			"subject", msg.Subject(),
			"error", err,
		)
		// Ack to avoid redelivery of permanently broken messages.
		_ = msg.Ack()
		return
	}

	processed, err := ing.pipe.Process(ing.ctx, tr)
	if err != nil {
		slog.Error("pipeline run failed",
			"meeting_id", tr.MeetingID, "tier", tr.Tier, "error", err)

		if ing.onFailure != nil {
			ing.onFailure(ing.ctx, tr.MeetingID, string(tr.Tier), err.Error())
		}

		payload, _ := json.Marshal(map[string]any{
			"meeting_id": tr.MeetingID,
			"tier":       tr.Tier,
			"error":      err.Error(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
		if perr := ing.Publish(SubjectFailed, payload); perr != nil {
			slog.Warn("failed to publish failure event", "meeting_id", tr.MeetingID, "error", perr)
		}

		// Ack: the pipeline's own retry policy has already run its course;
		// redelivering a transcript that fails validation-or-redaction would
		// just fail again.
		_ = msg.Ack()
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"meeting_id": processed.MeetingID,
		"tier":       processed.Tier,
		"vector_id":  processed.VectorID,
		"timestamp":  processed.ProcessedAt.Format(time.RFC3339),
	})
	if perr := ing.Publish(SubjectProcessed, payload); perr != nil {
		slog.Warn("failed to publish processed event", "meeting_id", processed.MeetingID, "error", perr)
	}

	if err := msg.Ack(); err != nil {
		slog.Warn("failed to ack message", "subject", msg.Subject(), "error", err)
	}
}

// SetFailureHandler registers a callback for failed pipeline runs.
func (ing *Ingester) SetFailureHandler(fn FailureHandlerFunc) {
	ing.onFailure = fn
}

// Publish sends a message to NATS (also used for announcing lifecycle).
// A nil connection drops the message; unit tests run without one.
func (ing *Ingester) Publish(subject string, data []byte) error {
	if ing.nc == nil {
		return nil
	}
	return ing.nc.Publish(subject, data)
}

// Close drains subscriptions and closes the NATS connection.
func (ing *Ingester) Close() {
	ing.cancel()
	for _, cc := range ing.subs {
		cc.Stop()
	}
	ing.nc.Drain()
}
