package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}
	return natsServer, natsConnection
}

func TestKVPublisher(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	js, err := natsConnection.JetStream()
	require.NoError(t, err)

	p, err := NewKVPublisher(js, "", zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, slideBroadcast(map[string]SlideContent{"en-US": {Text: "Cells."}})))
	require.NoError(t, p.Publish(ctx, slideBroadcast(map[string]SlideContent{"zh-CN": {Text: "细胞。"}})))

	langs, err := p.SlideLanguages(ctx, "bio101", "cells", "3")
	require.NoError(t, err)
	require.Len(t, langs, 2)
	require.Equal(t, "Cells.", langs["en-US"].Text)

	lp, ok, err := p.Live(ctx, "bio101")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, lp.LatestLanguages, 1)
	require.Equal(t, "细胞。", lp.LatestLanguages["zh-CN"].Text)

	_, ok, err = p.Live(ctx, "other")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVPublisherWatchLive(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	js, err := natsConnection.JetStream()
	require.NoError(t, err)

	p, err := NewKVPublisher(js, "watch_bucket", zaptest.NewLogger(t))
	require.NoError(t, err)

	watcher, err := p.kv.Watch(liveKey(DefaultScope), nats.UpdatesOnly())
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, p.Publish(context.Background(), Broadcast{
		Languages: map[string]SlideContent{"en-US": {Text: "Welcome."}},
	}))

	select {
	case entry := <-watcher.Updates():
		require.NotNil(t, entry)
		require.Equal(t, "current.live", entry.Key())
	case <-time.After(5 * time.Second):
		t.Fatal("no live pointer update received")
	}
}

func TestKeyToken(t *testing.T) {
	require.Equal(t, "intro_to_bio_v2", KeyToken("intro to bio.v2"))
	require.Equal(t, "zh-CN", KeyToken("zh-CN"))
}
