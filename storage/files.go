package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/basehub/basehub-go/logging"
	"github.com/basehub/basehub-go/transport"
)

// uploadTarget is the initiate-upload response: where the caller pushes the
// file bytes directly.
type uploadTarget struct {
	UploadURL string `json:"upload_url"`
	FileID    string `json:"file_id"`
}

// Upload stores a file through the two-phase protocol: initiate against the
// storage service, then PUT the bytes to the returned URL. This keeps large
// transfers off the API path.
func (s *Service) Upload(ctx context.Context, bucket, filename string, data []byte, contentType string) error {
	if bucket == "" || filename == "" {
		return transport.ValidationError("bucket and filename must not be empty", nil)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	initBody, err := s.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   s.filePath(bucket, filename) + "/initiate",
		Body: map[string]any{
			"filename":     filename,
			"size":         len(data),
			"content_type": contentType,
		},
		BaseURL: s.storageURL,
	})
	if err != nil {
		return translateBucketError(err)
	}
	target := uploadTarget{}
	if err := json.Unmarshal(initBody, &target); err != nil {
		return err
	}
	s.logger.Debug("upload initiated",
		logging.Field("bucket", bucket),
		logging.Field("file", filename),
		logging.Field("file_id", target.FileID),
	)

	_, err = s.doer.Do(ctx, transport.Request{
		Method:  http.MethodPut,
		BaseURL: target.UploadURL,
		RawBody: data,
		Headers: map[string]string{"Content-Type": contentType},
	})
	return err
}

// UploadMultipart stores a file with one direct multipart POST to the
// bucket-scoped endpoint. Suited to small files where the two-phase
// handshake is overhead.
func (s *Service) UploadMultipart(ctx context.Context, bucket, filename string, data []byte) (*FileInfo, error) {
	if bucket == "" || filename == "" {
		return nil, transport.ValidationError("bucket and filename must not be empty", nil)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	body, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    "/buckets/" + url.PathEscape(bucket) + "/files",
		RawBody: buf.Bytes(),
		Headers: map[string]string{"Content-Type": writer.FormDataContentType()},
		BaseURL: s.storageURL,
	})
	if err != nil {
		return nil, translateBucketError(err)
	}
	info := FileInfo{}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Download fetches a file's bytes.
func (s *Service) Download(ctx context.Context, bucket, filename string) ([]byte, error) {
	data, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		Path:    s.filePath(bucket, filename),
		BaseURL: s.storageURL,
	})
	if err != nil {
		return nil, translateBucketError(err)
	}
	return data, nil
}

// ListFiles enumerates a bucket's objects.
func (s *Service) ListFiles(ctx context.Context, bucket string) ([]FileInfo, error) {
	data, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		Path:    "/buckets/" + url.PathEscape(bucket) + "/files",
		BaseURL: s.storageURL,
	})
	if err != nil {
		return nil, translateBucketError(err)
	}
	files := []FileInfo{}
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// FileMetadata fetches one object's metadata without its bytes.
func (s *Service) FileMetadata(ctx context.Context, bucket, filename string) (*FileInfo, error) {
	data, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		Path:    s.filePath(bucket, filename) + "/metadata",
		BaseURL: s.storageURL,
	})
	if err != nil {
		return nil, translateBucketError(err)
	}
	info := FileInfo{}
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DeleteFile removes one object.
func (s *Service) DeleteFile(ctx context.Context, bucket, filename string) error {
	_, err := s.doer.Do(ctx, transport.Request{
		Method:  http.MethodDelete,
		Path:    s.filePath(bucket, filename),
		BaseURL: s.storageURL,
	})
	return translateBucketError(err)
}

func (s *Service) filePath(bucket, filename string) string {
	return "/buckets/" + url.PathEscape(bucket) + "/files/" + url.PathEscape(filename)
}
