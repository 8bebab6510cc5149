// Package dlq parks game reports the processor can never accept.
package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/common/messaging"
	natsclient "github.com/telhawk-systems/sportsagg/common/messaging/nats"
	"github.com/telhawk-systems/sportsagg/processor/internal/metrics"
)

// Dead-letter reasons. Each becomes the last token of the DLQ subject.
const (
	ReasonMalformed  = "malformed"
	ReasonMaxDeliver = "max_deliver"
)

// FailedEvent is one dead-lettered report.
type FailedEvent struct {
	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
	Subject    string    `json:"subject"`
	Payload    []byte    `json:"payload"`
	Error      string    `json:"error"`
	Reason     string    `json:"reason"`
	Attempts   uint64    `json:"attempts"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Writer records reports that will not be retried.
type Writer interface {
	Write(ctx context.Context, msg *messaging.Message, cause error, reason string) error
}

// JetStreamQueue writes failed reports to the GAMES_DLQ stream. Safe for use
// across processor instances.
type JetStreamQueue struct {
	js      *natsclient.JetStreamClient
	stream  jetstream.Stream
	logger  *slog.Logger
	written atomic.Uint64
}

// NewJetStreamQueue ensures the DLQ stream exists and returns a queue on it.
func NewJetStreamQueue(ctx context.Context, js *natsclient.JetStreamClient, logger *slog.Logger) (*JetStreamQueue, error) {
	if js == nil {
		return nil, errors.New("jetstream client is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	stream, err := js.CreateOrUpdateStream(ctx, natsclient.GamesDLQStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	logger = logger.With(slog.String("component", "dlq"))
	logger.Info("dlq stream ready", slog.String("stream", natsclient.GamesDLQStream.Name))

	return &JetStreamQueue{
		js:     js,
		stream: stream,
		logger: logger,
	}, nil
}

// Write publishes msg and the reason it failed to games.dlq.<reason>.
func (q *JetStreamQueue) Write(ctx context.Context, msg *messaging.Message, cause error, reason string) error {
	if msg == nil {
		return errors.New("nil message")
	}

	failed := FailedEvent{
		Timestamp:  time.Now().UTC(),
		ReceivedAt: msg.Timestamp.UTC(),
		Subject:    msg.Subject,
		Payload:    msg.Data,
		Reason:     reason,
		Attempts:   msg.Attempt,
		RequestID:  msg.Header(messaging.HeaderRequestID),
	}
	if cause != nil {
		failed.Error = cause.Error()
	}

	data, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := messaging.GamesDLQSubject(reason)
	if _, err := q.js.PublishSync(ctx, subject, data); err != nil {
		q.logger.ErrorContext(ctx, "failed to publish dlq entry",
			logging.Subject(subject),
			logging.Error(err))
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	q.written.Add(1)
	metrics.DLQTotal.WithLabelValues(reason).Inc()
	q.logger.WarnContext(ctx, "dead-lettered game report",
		slog.String("reason", reason),
		logging.Subject(msg.Subject),
		logging.Error(cause))
	return nil
}

// Stats returns DLQ counters from JetStream.
func (q *JetStreamQueue) Stats(ctx context.Context) map[string]any {
	if q == nil {
		return map[string]any{"enabled": false}
	}

	stats := map[string]any{
		"enabled":       true,
		"written_local": q.written.Load(),
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	stats["total_messages"] = info.State.Msgs
	stats["total_bytes"] = info.State.Bytes
	return stats
}

// List returns up to limit dead-lettered reports, oldest first.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]FailedEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{messaging.SubjectGamesDLQAll},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch dlq entries: %w", err)
	}

	var events []FailedEvent
	for msg := range batch.Messages() {
		var failed FailedEvent
		if err := json.Unmarshal(msg.Data(), &failed); err != nil {
			q.logger.WarnContext(ctx, "skipping unreadable dlq entry", logging.Error(err))
			continue
		}
		events = append(events, failed)
	}
	if err := batch.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) {
		return events, fmt.Errorf("fetch dlq entries: %w", err)
	}
	return events, nil
}
