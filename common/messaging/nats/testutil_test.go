package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *EmbeddedServer {
	t.Helper()

	srv, err := StartEmbedded(EmbeddedConfig{Port: -1, StoreDir: t.TempDir()})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func newTestJetStream(t *testing.T, srv *EmbeddedServer) *JetStreamClient {
	t.Helper()

	cfg := DefaultConfig()
	cfg.URL = srv.ClientURL()
	cfg.Name = t.Name()

	client, err := NewJetStreamClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
