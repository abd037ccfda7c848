package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

const headerContentType = "Content-Type"

// NatsStore keeps audio in a JetStream object store bucket.
type NatsStore struct {
	store         nats.ObjectStore
	bucket        string
	publicBaseURL string
	logger        *zap.Logger
}

// NewNatsStore creates the bucket, or binds to it when it already exists.
func NewNatsStore(js nats.JetStreamContext, bucket, publicBaseURL string, logger *zap.Logger) (*NatsStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Synthesized audio for the %s bucket.", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucket, err)
		}
	}

	return &NatsStore{
		store:         store,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		logger:        logger.Named("natsstore"),
	}, nil
}

func (n *NatsStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := n.store.GetInfo(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, nats.ErrObjectNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat object '%s' in bucket '%s': %w", name, n.bucket, err)
}

// Upload puts data under name, replacing any previous object.
func (n *NatsStore) Upload(_ context.Context, name string, data []byte, contentType string) error {
	meta := &nats.ObjectMeta{Name: name}
	if contentType != "" {
		meta.Headers = nats.Header{headerContentType: []string{contentType}}
	}

	if _, err := n.store.Put(meta, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", name, n.bucket, err)
	}
	n.logger.Debug("uploaded object", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

// Download returns the object bytes and stored content type.
func (n *NatsStore) Download(_ context.Context, name string) ([]byte, string, error) {
	obj, err := n.store.Get(name)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("object '%s': %w", name, ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to get object '%s' from bucket '%s': %w", name, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, "", fmt.Errorf("failed to read object '%s': %w", name, readErr)
	}
	if closeErr != nil {
		return data, "", fmt.Errorf("failed to close object '%s': %w", name, closeErr)
	}

	contentType := ContentTypeMP3
	if info, err := obj.Info(); err == nil && info.Headers != nil {
		if ct := info.Headers.Get(headerContentType); ct != "" {
			contentType = ct
		}
	}
	return data, contentType, nil
}

func (n *NatsStore) PublicURL(name string) string {
	return joinURL(n.publicBaseURL, name)
}
