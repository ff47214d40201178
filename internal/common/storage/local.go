// internal/common/storage/local.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// LocalStore keeps objects under root/<bucket>/<key>.
type LocalStore struct {
	root          string
	publicBaseURL string
}

func NewLocalStore(root, publicBaseURL string) (*LocalStore, error) {
	if root == "" {
		root = "./data/uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if publicBaseURL == "" {
		publicBaseURL = "/files"
	}
	return &LocalStore{root: root, publicBaseURL: publicBaseURL}, nil
}

func (s *LocalStore) path(bucket, key string) (string, string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	b, err := cleanKey(bucket)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(b), filepath.FromSlash(k)), k, nil
}

func (s *LocalStore) Put(_ context.Context, bucket, key string, body io.Reader, _ int64, _ string) error {
	p, _, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}

	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(p)
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}

func (s *LocalStore) URL(_ context.Context, bucket, key string) (string, error) {
	_, k, err := s.path(bucket, key)
	if err != nil {
		return "", err
	}
	return joinURL(s.publicBaseURL, bucket, k), nil
}

func (s *LocalStore) Delete(_ context.Context, bucket, key string) error {
	p, _, err := s.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Handler serves stored objects read-only; mount it under the public base URL.
func (s *LocalStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.root))
}
