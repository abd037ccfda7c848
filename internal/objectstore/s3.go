package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"
)

type S3Config struct {
	Bucket string
	// PublicBaseURL replaces the virtual-hosted bucket URL, e.g. a CDN.
	PublicBaseURL string
}

// S3Store keeps audio in one S3 bucket.
type S3Store struct {
	client s3iface.S3API
	cfg    S3Config
	logger *zap.Logger
}

func NewS3Store(client s3iface.S3API, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store: bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{client: client, cfg: cfg, logger: logger.Named("s3store")}, nil
}

// Exists issues HeadObject. A 404 means absent; other errors are returned.
func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(name),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head object %q: %w", name, err)
}

func (s *S3Store) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("failed to upload object to S3",
			zap.String("bucket", s.cfg.Bucket),
			zap.String("key", name),
			zap.Error(err),
		)
		return fmt.Errorf("s3 put object %q: %w", name, err)
	}

	s.logger.Debug("uploaded object to S3", zap.String("key", name), zap.Int("bytes", len(data)))
	return nil
}

func (s *S3Store) PublicURL(name string) string {
	if s.cfg.PublicBaseURL != "" {
		return joinURL(s.cfg.PublicBaseURL, name)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.cfg.Bucket, name)
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "NotFound", s3.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}
