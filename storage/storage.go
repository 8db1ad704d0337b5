package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/basehub/basehub-go/logging"
	"github.com/basehub/basehub-go/transport"
)

// ErrBucketNotFound is returned when a bucket operation names a bucket the
// storage service does not know.
var ErrBucketNotFound = errors.New("bucket not found")

// Doer issues authenticated requests. *auth.Manager satisfies it.
type Doer interface {
	Do(ctx context.Context, req transport.Request) ([]byte, error)
}

// Bucket is the storage service's bucket record.
type Bucket struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// FileInfo describes one stored object.
type FileInfo struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Service exposes bucket and file operations against the storage service
// URL, which is separate from the API base URL.
type Service struct {
	doer       Doer
	storageURL string
	logger     *logging.Logger
}

func NewService(doer Doer, storageURL string, logger *logging.Logger) *Service {
	return &Service{doer: doer, storageURL: storageURL, logger: logger}
}

func (s *Service) CreateBucket(ctx context.Context, name string) (*Bucket, error) {
	if name == "" {
		return nil, transport.ValidationError("bucket name must not be empty", nil)
	}
	data, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    "/buckets",
		Body:    map[string]string{"name": name},
		BaseURL: s.storageURL,
	})
	if err != nil {
		return nil, err
	}
	bucket := Bucket{}
	if err := json.Unmarshal(data, &bucket); err != nil {
		return nil, err
	}
	return &bucket, nil
}

func (s *Service) ListBuckets(ctx context.Context) ([]Bucket, error) {
	data, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		Path:    "/buckets",
		BaseURL: s.storageURL,
	})
	if err != nil {
		return nil, err
	}
	buckets := []Bucket{}
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

func (s *Service) GetBucket(ctx context.Context, name string) (*Bucket, error) {
	data, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		Path:    s.bucketPath(name),
		BaseURL: s.storageURL,
	})
	if err != nil {
		return nil, translateBucketError(err)
	}
	bucket := Bucket{}
	if err := json.Unmarshal(data, &bucket); err != nil {
		return nil, err
	}
	return &bucket, nil
}

func (s *Service) DeleteBucket(ctx context.Context, name string) error {
	_, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodDelete,
		Path:    s.bucketPath(name),
		BaseURL: s.storageURL,
	})
	return translateBucketError(err)
}

func (s *Service) bucketPath(name string) string {
	return "/buckets/" + url.PathEscape(name)
}

// translateBucketError surfaces the storage service's 404 as the semantic
// bucket-not-found error so callers don't branch on status codes.
func translateBucketError(err error) error {
	if err == nil {
		return nil
	}
	var terr *transport.Error
	if errors.As(err, &terr) && terr.Kind == transport.KindAPI && terr.StatusCode == http.StatusNotFound {
		return ErrBucketNotFound
	}
	return err
}
