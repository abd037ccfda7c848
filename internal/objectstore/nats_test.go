package objectstore

import (
	"context"
	"errors"
	"testing"

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

func TestNatsStoreUploadExistsDownload(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	js, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := NewNatsStore(js, "narration-audio", "https://gw.example.com/v1/audio", zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	name := "speech_zh-CN_0123456789ab.mp3"

	ok, err := store.Exists(ctx, name)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Upload(ctx, name, []byte("mp3 bytes"), ContentTypeMP3))

	ok, err = store.Exists(ctx, name)
	require.NoError(t, err)
	require.True(t, ok)

	data, contentType, err := store.Download(ctx, name)
	require.NoError(t, err)
	require.Equal(t, []byte("mp3 bytes"), data)
	require.Equal(t, ContentTypeMP3, contentType)

	require.Equal(t, "https://gw.example.com/v1/audio/"+name, store.PublicURL(name))

	_, _, err = store.Download(ctx, "missing.mp3")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestNatsStoreBindsExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	js, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := NewNatsStore(js, "shared", "", nil)
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "a.mp3", []byte("a"), ContentTypeMP3))

	second, err := NewNatsStore(js, "shared", "", nil)
	require.NoError(t, err)

	ok, err := second.Exists(context.Background(), "a.mp3")
	require.NoError(t, err)
	require.True(t, ok)
}
