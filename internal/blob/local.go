package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"casedocs/pkg/platform/sentinel"
)

// URLSigner issues retrieval tokens bound to an object key.
type URLSigner interface {
	SignFile(key string, expiresIn time.Duration) (string, error)
}

// Local stores objects under root/bucket on the filesystem. Retrieval URLs
// point at the server's /files route and carry a signed token.
type Local struct {
	root    string
	bucket  string
	baseURL string
	signer  URLSigner
}

func NewLocal(root, bucket, baseURL string, signer URLSigner) (*Local, error) {
	if root == "" {
		return nil, errors.New("root directory is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if signer == nil {
		return nil, errors.New("url signer is required")
	}
	return &Local{
		root:    root,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
	}, nil
}

func (l *Local) key(name string) string {
	return path.Join(l.bucket, name)
}

func (l *Local) Get(_ context.Context, name string) ([]byte, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(l.key(name))))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", l.key(name), sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read object %s: %w", l.key(name), err)
	}
	return data, nil
}

// Put writes through a temp file and rename so readers never see partial objects.
func (l *Local) Put(_ context.Context, name string, data []byte, _ string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	dst := filepath.Join(l.root, filepath.FromSlash(l.key(name)))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write object %s: %w", l.key(name), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", l.key(name), err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("commit object %s: %w", l.key(name), err)
	}
	return nil
}

func (l *Local) SignedURL(_ context.Context, name string, ttl time.Duration) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	key := l.key(name)
	token, err := l.signer.SignFile(key, ttl)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	return l.baseURL + "/files/" + key + "?token=" + url.QueryEscape(token), nil
}
