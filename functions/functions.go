package functions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/basehub/basehub-go/transport"
)

// Doer issues authenticated requests. *auth.Manager satisfies it.
type Doer interface {
	Do(ctx context.Context, req transport.Request) ([]byte, error)
}

// Function is the backend's cloud-function record.
type Function struct {
	Name      string `json:"name"`
	Source    string `json:"source,omitempty"`
	Deployed  bool   `json:"deployed,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// LogEntry is one line of a function's execution log.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level,omitempty"`
	Message   string `json:"message"`
}

// Service wraps the cloud-function endpoints.
type Service struct {
	doer Doer
}

func NewService(doer Doer) *Service {
	return &Service{doer: doer}
}

func (s *Service) List(ctx context.Context) ([]Function, error) {
	data, err := s.doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/functions"})
	if err != nil {
		return nil, err
	}
	fns := []Function{}
	if err := json.Unmarshal(data, &fns); err != nil {
		return nil, err
	}
	return fns, nil
}

func (s *Service) Get(ctx context.Context, name string) (*Function, error) {
	data, err := s.doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: s.path(name)})
	if err != nil {
		return nil, err
	}
	fn := Function{}
	if err := json.Unmarshal(data, &fn); err != nil {
		return nil, err
	}
	return &fn, nil
}

func (s *Service) Create(ctx context.Context, fn Function) (*Function, error) {
	if fn.Name == "" {
		return nil, transport.ValidationError("function name must not be empty", nil)
	}
	data, err := s.doer.Do(ctx, transport.Request{Method: http.MethodPost, Path: "/functions", Body: fn})
	if err != nil {
		return nil, err
	}
	created := Function{}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Service) Update(ctx context.Context, fn Function) (*Function, error) {
	if fn.Name == "" {
		return nil, transport.ValidationError("function name must not be empty", nil)
	}
	data, err := s.doer.Do(ctx, transport.Request{Method: http.MethodPut, Path: s.path(fn.Name), Body: fn})
	if err != nil {
		return nil, err
	}
	updated := Function{}
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, name string) error {
	_, err := s.doer.Do(ctx, transport.Request{Method: http.MethodDelete, Path: s.path(name)})
	return err
}

// Invoke runs a deployed function by name and returns its raw result.
func (s *Service) Invoke(ctx context.Context, name string, payload any) (json.RawMessage, error) {
	data, err := s.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   s.path(name) + "/invoke",
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Deploy publishes the function's current source.
func (s *Service) Deploy(ctx context.Context, name string) (*Function, error) {
	data, err := s.doer.Do(ctx, transport.Request{Method: http.MethodPost, Path: s.path(name) + "/deploy"})
	if err != nil {
		return nil, err
	}
	fn := Function{}
	if err := json.Unmarshal(data, &fn); err != nil {
		return nil, err
	}
	return &fn, nil
}

// Logs retrieves recent execution log entries.
func (s *Service) Logs(ctx context.Context, name string) ([]LogEntry, error) {
	data, err := s.doer.Do(ctx, transport.Request{Method: http.MethodGet, Path: s.path(name) + "/logs"})
	if err != nil {
		return nil, err
	}
	entries := []LogEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) path(name string) string {
	return "/functions/" + url.PathEscape(name)
}
