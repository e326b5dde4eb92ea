package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/animus-labs/animus-prune/internal/domain"
)

var (
	ErrNotFound      = errors.New("tracking resource not found")
	ErrUnauthorized  = errors.New("tracking request unauthorized")
	ErrForbidden     = errors.New("tracking request forbidden")
	ErrUnexpectedAPI = errors.New("tracking unexpected response")
)

// Client is the subset of the tracking server used for pruning. Every call
// blocks until the server answers.
type Client interface {
	ListRegisteredModels(ctx context.Context) ([]domain.RegisteredModel, error)
	ListModelVersions(ctx context.Context, name string) ([]domain.ModelVersion, error)
	ListExperiments(ctx context.Context) ([]domain.Experiment, error)
	SearchRuns(ctx context.Context, experimentIDs []string, filter domain.RunFilter, view domain.ViewType) ([]domain.Run, error)
	DeleteModelVersion(ctx context.Context, name, version string) error
	DeleteRun(ctx context.Context, runID string) error
}

// APIError is a non-success answer from the tracking server.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.ErrorCode != "" && e.Message != "":
		return fmt.Sprintf("tracking api error (status=%d, code=%s): %s", e.StatusCode, e.ErrorCode, e.Message)
	case strings.TrimSpace(e.Body) != "":
		return fmt.Sprintf("tracking api error (status=%d): %s", e.StatusCode, strings.TrimSpace(e.Body))
	default:
		return fmt.Sprintf("tracking api error (status=%d)", e.StatusCode)
	}
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	default:
		return ErrUnexpectedAPI
	}
}
