// Package messaging provides abstractions for message broker communication.
// It defines interfaces that allow services to publish and consume messages
// without being coupled to a specific broker implementation.
package messaging

import (
	"context"
	"errors"
	"time"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic/channel the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Reply is an optional subject for request/reply patterns.
	Reply string

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was published.
	Timestamp time.Time

	// Attempt is the delivery attempt, starting at 1. Zero for core messages.
	Attempt uint64
}

// Header returns a metadata value, or "" when absent.
func (m *Message) Header(key string) string {
	if m == nil || m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// MessageHandler processes a received message.
//
// A nil return acknowledges the message. An error wrapping ErrPermanent
// terminates it without redelivery. Any other error requests redelivery,
// unless the context was cancelled, in which case the message is left
// unacknowledged for the broker to redeliver after the ack wait.
type MessageHandler func(ctx context.Context, msg *Message) error

// ErrPermanent marks handler failures that redelivery cannot fix.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

func (e *permanentError) Is(target error) bool { return target == ErrPermanent }

// Permanent wraps err so that errors.Is(err, ErrPermanent) reports true while
// the original chain stays inspectable. Permanent(nil) returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with full control over headers and metadata.
	PublishMsg(ctx context.Context, msg *Message) error

	// Request sends a message and waits for a response (request/reply pattern).
	Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*Message, error)

	// Close releases any resources held by the publisher.
	Close() error
}

// Client is a Publisher with connection lifecycle control.
type Client interface {
	Publisher

	// Drain gracefully closes the connection, allowing in-flight messages to complete.
	Drain() error

	// IsConnected returns true if the client is connected to the broker.
	IsConnected() bool
}

// PublishOption configures message publishing behavior.
type PublishOption func(*PublishSettings)

// PublishSettings is the resolved form of a set of PublishOptions.
type PublishSettings struct {
	Headers map[string]string
	MsgID   string
}

// ApplyPublishOptions resolves opts.
func ApplyPublishOptions(opts ...PublishOption) PublishSettings {
	var s PublishSettings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithHeader adds a header to the published message.
func WithHeader(key, value string) PublishOption {
	return func(o *PublishSettings) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		o.Headers[key] = value
	}
}

// WithMsgID sets the broker-level message id used for publish deduplication.
func WithMsgID(id string) PublishOption {
	return func(o *PublishSettings) {
		o.MsgID = id
	}
}

// SubscribeOption configures subscription behavior.
type SubscribeOption func(*SubscribeSettings)

// SubscribeSettings is the resolved form of a set of SubscribeOptions.
type SubscribeSettings struct {
	MaxInFlight int
	AckWait     time.Duration
	NakDelay    time.Duration
}

// Subscription defaults.
const (
	DefaultMaxInFlight = 1
	DefaultNakDelay    = 5 * time.Second
)

// ApplySubscribeOptions resolves opts on top of the defaults.
func ApplySubscribeOptions(opts ...SubscribeOption) SubscribeSettings {
	s := SubscribeSettings{
		MaxInFlight: DefaultMaxInFlight,
		NakDelay:    DefaultNakDelay,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.MaxInFlight < 1 {
		s.MaxInFlight = DefaultMaxInFlight
	}
	if s.NakDelay < 0 {
		s.NakDelay = 0
	}
	return s
}

// WithMaxInFlight sets the maximum number of messages handled concurrently.
func WithMaxInFlight(n int) SubscribeOption {
	return func(o *SubscribeSettings) {
		o.MaxInFlight = n
	}
}

// WithAckWait sets the time to wait for acknowledgment before redelivery.
func WithAckWait(d time.Duration) SubscribeOption {
	return func(o *SubscribeSettings) {
		o.AckWait = d
	}
}

// WithNakDelay sets how long the broker waits before redelivering a failed message.
func WithNakDelay(d time.Duration) SubscribeOption {
	return func(o *SubscribeSettings) {
		o.NakDelay = d
	}
}
