// Package objectstore holds synthesized audio objects under deterministic
// names and builds their public URLs.
package objectstore

import (
	"context"
	"errors"
	"strings"
)

const ContentTypeMP3 = "audio/mpeg"

// ErrNotFound is returned by Download for a missing object.
var ErrNotFound = errors.New("object not found")

// Store is where synthesized audio lives.
type Store interface {
	Exists(ctx context.Context, name string) (bool, error)
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	PublicURL(name string) string
}

// Reader is implemented by stores that can serve objects back through the
// gateway.
type Reader interface {
	Download(ctx context.Context, name string) ([]byte, string, error)
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}
