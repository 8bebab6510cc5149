// Package nats feeds game reports from JetStream into the processor.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/common/messaging"
	natsclient "github.com/telhawk-systems/sportsagg/common/messaging/nats"
	"github.com/telhawk-systems/sportsagg/common/middleware"
	"github.com/telhawk-systems/sportsagg/common/models"
	"github.com/telhawk-systems/sportsagg/processor/internal/dlq"
	"github.com/telhawk-systems/sportsagg/processor/internal/service"
)

// Processor runs one decoded report through the pipeline.
type Processor interface {
	Process(ctx context.Context, event *models.IngestedEvent) (service.Result, error)
}

// Config controls the durable consumer.
type Config struct {
	Stream     string
	Consumer   string
	MaxWorkers int
	AckWait    time.Duration
	MaxDeliver int
	NakDelay   time.Duration
}

// Handler consumes games.ingested.> and settles each message according to
// the processing result.
type Handler struct {
	client    *natsclient.JetStreamClient
	processor Processor
	dlq       dlq.Writer
	cfg       Config
	logger    *slog.Logger

	mu   sync.Mutex
	stop func()
}

// NewHandler creates a new handler. dead may be nil, in which case malformed
// reports are terminated without being recorded.
func NewHandler(client *natsclient.JetStreamClient, processor Processor, dead dlq.Writer, cfg Config, logger *slog.Logger) *Handler {
	if cfg.Stream == "" {
		cfg.Stream = messaging.StreamGames
	}
	if cfg.Consumer == "" {
		cfg.Consumer = messaging.ConsumerGameProcessor
	}
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client:    client,
		processor: processor,
		dlq:       dead,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "nats-handler")),
	}
}

// Start ensures the games stream and durable consumer exist and begins
// consuming with at most MaxWorkers reports in flight.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return errors.New("handler already started")
	}

	streamCfg := natsclient.GamesStream
	streamCfg.Name = h.cfg.Stream
	if _, err := h.client.CreateOrUpdateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("ensure games stream: %w", err)
	}

	consumerCfg := natsclient.DefaultConsumerConfig(h.cfg.Consumer, messaging.SubjectGamesIngestedAll)
	consumerCfg.MaxAckPending = 2 * h.cfg.MaxWorkers
	if h.cfg.AckWait > 0 {
		consumerCfg.AckWait = h.cfg.AckWait
	}
	if h.cfg.MaxDeliver > 0 {
		consumerCfg.MaxDeliver = h.cfg.MaxDeliver
	}
	if _, err := h.client.CreateOrUpdateConsumer(ctx, h.cfg.Stream, consumerCfg); err != nil {
		return fmt.Errorf("ensure consumer: %w", err)
	}

	opts := []messaging.SubscribeOption{messaging.WithMaxInFlight(h.cfg.MaxWorkers)}
	if h.cfg.NakDelay > 0 {
		opts = append(opts, messaging.WithNakDelay(h.cfg.NakDelay))
	}

	stop, err := h.client.ConsumeMessages(ctx, h.cfg.Stream, h.cfg.Consumer, h.HandleMessage, opts...)
	if err != nil {
		return fmt.Errorf("failed to consume game reports: %w", err)
	}
	h.stop = stop

	h.logger.Info("NATS handler started",
		slog.String("stream", h.cfg.Stream),
		slog.String("consumer", h.cfg.Consumer),
		logging.Subject(messaging.SubjectGamesIngestedAll),
		slog.Int("max_workers", h.cfg.MaxWorkers),
		slog.Int("max_ack_pending", consumerCfg.MaxAckPending))
	return nil
}

// Stop stops pulling new reports and waits for in-flight ones to settle.
func (h *Handler) Stop() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	if stop == nil {
		return
	}
	h.logger.Info("Stopping NATS handler")
	stop()
}

// Client returns the underlying client for health checks.
func (h *Handler) Client() *natsclient.JetStreamClient {
	return h.client
}

// HandleMessage decodes and processes one report. The returned error decides
// the acknowledgment: nil acks, messaging.ErrPermanent terminates, anything
// else is redelivered after a delay.
func (h *Handler) HandleMessage(ctx context.Context, msg *messaging.Message) error {
	requestID := msg.Header(messaging.HeaderRequestID)
	if requestID == "" {
		requestID = middleware.NewRequestID()
	}
	ctx = middleware.WithRequestID(ctx, requestID)

	event, err := models.DecodeIngestedEvent(msg.Data)
	if err == nil {
		if event.Source == "" {
			event.Source = msg.Header(messaging.HeaderSource)
		}
		if event.IngestedAtUTC.IsZero() && !msg.Timestamp.IsZero() {
			event.IngestedAtUTC = msg.Timestamp
		}
		_, err = h.processor.Process(ctx, event)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrMalformedEvent):
		return h.deadLetter(ctx, msg, err, dlq.ReasonMalformed)
	case ctx.Err() != nil:
		return err
	case h.cfg.MaxDeliver > 0 && msg.Attempt >= uint64(h.cfg.MaxDeliver):
		return h.deadLetter(ctx, msg, err, dlq.ReasonMaxDeliver)
	default:
		return err
	}
}

// deadLetter records msg and marks cause permanent. If the record cannot be
// written the report is redelivered instead of being dropped.
func (h *Handler) deadLetter(ctx context.Context, msg *messaging.Message, cause error, reason string) error {
	if h.dlq == nil {
		return messaging.Permanent(cause)
	}
	if err := h.dlq.Write(ctx, msg, cause, reason); err != nil {
		h.logger.ErrorContext(ctx, "failed to dead-letter report, will retry",
			logging.Subject(msg.Subject),
			slog.String("reason", reason),
			logging.Error(err))
		return fmt.Errorf("dead-letter %s report: %w", reason, errors.Join(cause, err))
	}
	return messaging.Permanent(cause)
}
