package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"casedocs/pkg/platform/sentinel"
)

const (
	defaultUploadAttempts = 4
	defaultUploadTimeout  = 50 * time.Second
	defaultInitialBackoff = time.Second
)

// GCS stores objects in one Google Cloud Storage bucket.
type GCS struct {
	bucket         *storage.BucketHandle
	name           string
	logger         *slog.Logger
	attempts       int
	attemptTimeout time.Duration
	backoff        time.Duration
	now            func() time.Time
}

type GCSOption func(*GCS)

func WithGCSLogger(logger *slog.Logger) GCSOption {
	return func(g *GCS) {
		g.logger = logger
	}
}

// WithUploadRetry overrides the attempt count, per-attempt timeout and first backoff.
func WithUploadRetry(attempts int, attemptTimeout, backoff time.Duration) GCSOption {
	return func(g *GCS) {
		g.attempts = attempts
		g.attemptTimeout = attemptTimeout
		g.backoff = backoff
	}
}

func NewGCS(client *storage.Client, bucket string, opts ...GCSOption) (*GCS, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	g := &GCS{
		bucket:         client.Bucket(bucket),
		name:           bucket,
		logger:         slog.Default(),
		attempts:       defaultUploadAttempts,
		attemptTimeout: defaultUploadTimeout,
		backoff:        defaultInitialBackoff,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GCS) Get(ctx context.Context, name string) ([]byte, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	r, err := g.bucket.Object(name).NewReader(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s/%s: %w", g.name, name, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("open object %s/%s: %w", g.name, name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", g.name, name, err)
	}
	return data, nil
}

// Put uploads data, retrying with exponential backoff.
func (g *GCS) Put(ctx context.Context, name string, data []byte, contentType string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	backoff := g.backoff
	var lastErr error
	for i := 0; i < g.attempts; i++ {
		lastErr = g.write(ctx, name, data, contentType)
		if lastErr == nil {
			return nil
		}
		g.logger.WarnContext(ctx, "object upload failed, will retry",
			"bucket", g.name,
			"object", name,
			"attempt", i+1,
			"max_attempts", g.attempts,
			"backoff", backoff.String(),
			"error", lastErr,
		)
		if i == g.attempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("upload %s/%s failed after %d attempts: %w", g.name, name, g.attempts, lastErr)
}

func (g *GCS) write(ctx context.Context, name string, data []byte, contentType string) error {
	writeCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	w := g.bucket.Object(name).NewWriter(writeCtx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// SignedURL issues a V4 signed GET URL using the client's credentials.
func (g *GCS) SignedURL(_ context.Context, name string, ttl time.Duration) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	url, err := g.bucket.SignedURL(name, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: g.now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %s/%s: %w", g.name, name, err)
	}
	return url, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
