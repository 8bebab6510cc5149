// Package publisher sends game reports to the games stream.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/sportsagg/common/messaging"
	"github.com/telhawk-systems/sportsagg/common/middleware"
	"github.com/telhawk-systems/sportsagg/common/models"
)

// StreamPublisher is the JetStream publish call the Publisher needs.
type StreamPublisher interface {
	PublishSync(ctx context.Context, subject string, data []byte, opts ...messaging.PublishOption) (*jetstream.PubAck, error)
}

// Publisher encodes reports and publishes each to games.ingested.<sport>.
type Publisher struct {
	js     StreamPublisher
	logger *slog.Logger
}

// New creates a Publisher.
func New(js StreamPublisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{js: js, logger: logger.With(slog.String("component", "publisher"))}
}

// PublishOne publishes a single report and returns the stream sequence.
func (p *Publisher) PublishOne(ctx context.Context, event *models.IngestedEvent) (uint64, error) {
	data, err := models.EncodeIngestedEvent(event)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}

	subject := messaging.GamesIngestedSubject(event.SportType)
	ack, err := p.js.PublishSync(ctx, subject, data,
		messaging.WithHeader(messaging.HeaderRequestID, middleware.NewRequestID()),
		messaging.WithHeader(messaging.HeaderSource, event.Source),
	)
	if err != nil {
		return 0, err
	}
	return ack.Sequence, nil
}

// Publish sends events in order and stops at the first failure. It returns
// how many were published.
func (p *Publisher) Publish(ctx context.Context, events []models.IngestedEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	for i := range events {
		if _, err := p.PublishOne(ctx, &events[i]); err != nil {
			return i, fmt.Errorf("publish game %d of %d: %w", i+1, len(events), err)
		}
	}

	p.logger.InfoContext(ctx, "Published game messages",
		slog.Int("count", len(events)),
		slog.String("source", events[0].Source))
	return len(events), nil
}
