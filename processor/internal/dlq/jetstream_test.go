package dlq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/common/messaging"
	natsclient "github.com/telhawk-systems/sportsagg/common/messaging/nats"
)

func newTestQueue(t *testing.T) *JetStreamQueue {
	t.Helper()

	srv, err := natsclient.StartEmbedded(natsclient.EmbeddedConfig{Port: -1, StoreDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	cfg := natsclient.DefaultConfig()
	cfg.URL = srv.ClientURL()
	cfg.Name = t.Name()
	client, err := natsclient.NewJetStreamClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	q, err := NewJetStreamQueue(context.Background(), client, logging.Discard().Logger)
	require.NoError(t, err)
	return q
}

func TestNewJetStreamQueue_NilClient(t *testing.T) {
	_, err := NewJetStreamQueue(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestJetStreamQueue_WriteAndList(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	received := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	msg := &messaging.Message{
		Subject:   "games.ingested.football",
		Data:      []byte(`{"sportType":`),
		Timestamp: received,
		Attempt:   2,
		Metadata:  map[string]string{messaging.HeaderRequestID: "req-7"},
	}
	require.NoError(t, q.Write(ctx, msg, errors.New("unexpected end of JSON input"), ReasonMalformed))
	require.NoError(t, q.Write(ctx, msg, nil, ReasonMaxDeliver))

	entries, err := q.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, ReasonMalformed, first.Reason)
	assert.Equal(t, "games.ingested.football", first.Subject)
	assert.Equal(t, `{"sportType":`, string(first.Payload))
	assert.Equal(t, "unexpected end of JSON input", first.Error)
	assert.Equal(t, uint64(2), first.Attempts)
	assert.Equal(t, "req-7", first.RequestID)
	assert.True(t, first.ReceivedAt.Equal(received))

	assert.Equal(t, ReasonMaxDeliver, entries[1].Reason)
	assert.Empty(t, entries[1].Error)

	stats := q.Stats(ctx)
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, uint64(2), stats["written_local"])
	assert.Equal(t, uint64(2), stats["total_messages"])
}

func TestJetStreamQueue_WriteNil(t *testing.T) {
	q := newTestQueue(t)
	assert.Error(t, q.Write(context.Background(), nil, nil, ReasonMalformed))
}

func TestJetStreamQueue_NilStats(t *testing.T) {
	var q *JetStreamQueue
	assert.Equal(t, map[string]any{"enabled": false}, q.Stats(context.Background()))
}
