package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/common/messaging"
)

// JetStreamClient extends Client with JetStream persistence capabilities.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	// Name is the stream name.
	Name string

	// Subjects are the subjects this stream captures.
	Subjects []string

	// MaxAge is the maximum age of messages in the stream.
	MaxAge time.Duration

	// MaxBytes is the maximum total size of the stream.
	MaxBytes int64

	// MaxMsgs is the maximum number of messages in the stream.
	MaxMsgs int64

	// Retention policy (LimitsPolicy, InterestPolicy, WorkQueuePolicy).
	Retention jetstream.RetentionPolicy

	// Storage type (FileStorage, MemoryStorage).
	Storage jetstream.StorageType

	// Duplicates is the publish deduplication window for Nats-Msg-Id.
	Duplicates time.Duration
}

// ConsumerConfig defines a JetStream consumer configuration.
type ConsumerConfig struct {
	// Name is the durable consumer name.
	Name string

	// FilterSubject filters which messages this consumer receives.
	FilterSubject string

	// AckWait is time to wait for acknowledgment before redelivery.
	AckWait time.Duration

	// MaxDeliver is maximum delivery attempts before giving up.
	MaxDeliver int

	// MaxAckPending is maximum unacknowledged messages.
	MaxAckPending int
}

// DefaultConsumerConfig returns sensible defaults for a consumer.
func DefaultConsumerConfig(name, filterSubject string) ConsumerConfig {
	return ConsumerConfig{
		Name:          name,
		FilterSubject: filterSubject,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		MaxAckPending: 100,
	}
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{
		Client: client,
		js:     js,
	}, nil
}

// JetStream exposes the underlying JetStream context.
func (c *JetStreamClient) JetStream() jetstream.JetStream {
	return c.js
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:       cfg.Name,
		Subjects:   cfg.Subjects,
		MaxAge:     cfg.MaxAge,
		MaxBytes:   cfg.MaxBytes,
		MaxMsgs:    cfg.MaxMsgs,
		Retention:  cfg.Retention,
		Storage:    cfg.Storage,
		Duplicates: cfg.Duplicates,
	}

	stream, err := c.js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}

	return stream, nil
}

// CreateOrUpdateConsumer creates or updates a durable consumer.
func (c *JetStreamClient) CreateOrUpdateConsumer(ctx context.Context, streamName string, cfg ConsumerConfig) (jetstream.Consumer, error) {
	consumerCfg := jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: cfg.FilterSubject,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", cfg.Name, err)
	}

	return consumer, nil
}

// PublishSync publishes a message and waits for the stream acknowledgment.
func (c *JetStreamClient) PublishSync(ctx context.Context, subject string, data []byte, opts ...messaging.PublishOption) (*jetstream.PubAck, error) {
	settings := messaging.ApplyPublishOptions(opts...)

	msg := messageToNats(&messaging.Message{
		Subject:  subject,
		Data:     data,
		Metadata: settings.Headers,
	})

	var pubOpts []jetstream.PublishOpt
	if settings.MsgID != "" {
		pubOpts = append(pubOpts, jetstream.WithMsgID(settings.MsgID))
	}

	ack, err := c.js.PublishMsg(ctx, msg, pubOpts...)
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", subject, err)
	}
	return ack, nil
}

// ConsumeMessages starts consuming from a durable consumer.
//
// The handler runs on at most MaxInFlight goroutines. When all slots are busy
// the delivery callback blocks, which stops further pulls until a slot frees.
// Handlers receive ctx; cancelling it abandons in-flight messages without
// acknowledgment. The returned stop function stops pulling and waits for
// in-flight handlers to finish.
func (c *JetStreamClient) ConsumeMessages(ctx context.Context, streamName, consumerName string, handler messaging.MessageHandler, opts ...messaging.SubscribeOption) (func(), error) {
	settings := messaging.ApplySubscribeOptions(opts...)

	stream, err := c.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
	}

	consumer, err := stream.Consumer(ctx, consumerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", consumerName, err)
	}

	logger := c.logger.With(slog.String("stream", streamName), slog.String("consumer", consumerName))

	var (
		sem     = make(chan struct{}, settings.MaxInFlight)
		stopCh  = make(chan struct{})
		mu      sync.Mutex
		stopped bool
		wg      sync.WaitGroup
	)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		select {
		case sem <- struct{}{}:
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}

		mu.Lock()
		if stopped {
			mu.Unlock()
			<-sem
			return
		}
		wg.Add(1)
		mu.Unlock()

		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			dispatch(ctx, logger, msg, handler, settings)
		}()
	},
		jetstream.PullMaxMessages(settings.MaxInFlight),
		jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
			logger.Warn("consume error", logging.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			cons.Stop()
			mu.Lock()
			stopped = true
			mu.Unlock()
			wg.Wait()
		})
	}, nil
}

// dispatch runs handler and settles msg according to the result.
func dispatch(ctx context.Context, logger *slog.Logger, msg jetstream.Msg, handler messaging.MessageHandler, settings messaging.SubscribeSettings) {
	m := jetStreamToMessage(msg)

	err := handler(ctx, m)
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			logger.Warn("ack failed", logging.Subject(m.Subject), logging.Error(ackErr))
		}
	case ctx.Err() != nil:
		// Cancelled mid-flight: leave unacknowledged so it is redelivered.
		logger.Debug("message abandoned", logging.Subject(m.Subject), logging.Error(err))
	case errors.Is(err, messaging.ErrPermanent):
		if termErr := msg.TermWithReason(err.Error()); termErr != nil {
			logger.Warn("term failed", logging.Subject(m.Subject), logging.Error(termErr))
		}
	default:
		if nakErr := msg.NakWithDelay(settings.NakDelay); nakErr != nil {
			logger.Warn("nak failed", logging.Subject(m.Subject), logging.Error(nakErr))
		}
	}
}

func jetStreamToMessage(msg jetstream.Msg) *messaging.Message {
	m := &messaging.Message{
		Subject:   msg.Subject(),
		Data:      msg.Data(),
		Timestamp: time.Now(),
		Metadata:  headersToMap(msg.Headers()),
	}
	if meta, err := msg.Metadata(); err == nil {
		m.Timestamp = meta.Timestamp
		m.Attempt = meta.NumDelivered
	}
	return m
}

// Stream configurations for the game pipeline.
var (
	// GamesStream holds raw game reports until the processor settles them.
	GamesStream = StreamConfig{
		Name:       messaging.StreamGames,
		Subjects:   []string{messaging.SubjectGamesIngestedAll},
		MaxAge:     24 * time.Hour,
		MaxBytes:   1024 * 1024 * 1024, // 1GB
		MaxMsgs:    1000000,
		Retention:  jetstream.WorkQueuePolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: 2 * time.Minute,
	}

	// GamesDLQStream keeps reports that can never be processed.
	GamesDLQStream = StreamConfig{
		Name:      messaging.StreamGamesDLQ,
		Subjects:  []string{messaging.SubjectGamesDLQAll},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  100 * 1024 * 1024, // 100MB
		MaxMsgs:   100000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	}
)
