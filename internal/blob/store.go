// Package blob reads and writes PDF binaries in an object store and issues
// time-limited retrieval URLs for them.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// Store is one bucket of objects.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte, contentType string) error
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// ContentTypePDF is the content type of every object the pipeline writes.
const ContentTypePDF = "application/pdf"

// cleanName rejects empty, absolute and escaping object names.
func cleanName(name string) (string, error) {
	cleaned := path.Clean(strings.TrimSpace(name))
	if cleaned == "." || cleaned == "" || strings.HasPrefix(cleaned, "/") ||
		cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return cleaned, nil
}
