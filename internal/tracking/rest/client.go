package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/animus-labs/animus-prune/internal/domain"
	"github.com/animus-labs/animus-prune/internal/tracking"
)

// ErrResponseTooLarge is returned instead of decoding a truncated body.
var ErrResponseTooLarge = errors.New("tracking response too large")

const (
	apiPrefix          = "/api/2.0/mlflow"
	defaultPageSize    = 1000
	maxPageSize        = 1000
	defaultTimeout     = 120 * time.Second
	maxResponseBytes   = 32 << 20
	maxErrorBodyLength = 4 << 10
)

type Config struct {
	TrackingURI string
	Token       string
	Username    string
	Password    string
	InsecureTLS bool
	Timeout     time.Duration
	PageSize    int
}

func (c Config) Validate() error {
	uri := strings.TrimSpace(c.TrackingURI)
	if uri == "" {
		return errors.New("tracking uri is required")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("parse tracking uri: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("tracking uri must be http(s): %q", uri)
	}
	if c.Token != "" && c.Username != "" {
		return errors.New("tracking token and username are mutually exclusive")
	}
	if c.Username != "" && c.Password == "" {
		return errors.New("tracking password is required with username")
	}
	if c.Timeout < 0 {
		return errors.New("request timeout must be >= 0")
	}
	if c.PageSize < 0 || c.PageSize > maxPageSize {
		return fmt.Errorf("page size must be at most %d", maxPageSize)
	}
	return nil
}

// Client talks to a tracking server's REST API.
type Client struct {
	baseURL  string
	token    string
	username string
	password string
	pageSize int
	// maxResponseBytes caps a single response body.
	maxResponseBytes int64
	http             *http.Client
	logger           *slog.Logger
}

// New builds a client. httpClient may carry its own authentication (for
// example an OAuth2 transport); when nil a client is built from cfg.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:          strings.TrimRight(strings.TrimSpace(cfg.TrackingURI), "/"),
		token:            cfg.Token,
		username:         cfg.Username,
		password:         cfg.Password,
		pageSize:         pageSize,
		maxResponseBytes: maxResponseBytes,
		http:             httpClient,
		logger:           logger,
	}, nil
}

func NewHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via MLFLOW_TRACKING_INSECURE_TLS
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) ListRegisteredModels(ctx context.Context) ([]domain.RegisteredModel, error) {
	models := make([]domain.RegisteredModel, 0)
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("max_results", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}
		var out searchRegisteredModelsResponse
		if err := c.call(ctx, http.MethodGet, "/registered-models/search", query, nil, &out); err != nil {
			return nil, fmt.Errorf("search registered models: %w", err)
		}
		for _, m := range out.RegisteredModels {
			model := m.toDomain()
			if err := model.Validate(); err != nil {
				return nil, fmt.Errorf("search registered models: %w", err)
			}
			models = append(models, model)
		}
		if out.NextPageToken == "" {
			return models, nil
		}
		pageToken = out.NextPageToken
	}
}

func (c *Client) ListModelVersions(ctx context.Context, name string) ([]domain.ModelVersion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("model name is required")
	}
	versions := make([]domain.ModelVersion, 0)
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("filter", "name="+quoteFilterValue(name))
		query.Set("max_results", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}
		var out searchModelVersionsResponse
		if err := c.call(ctx, http.MethodGet, "/model-versions/search", query, nil, &out); err != nil {
			return nil, fmt.Errorf("search model versions of %q: %w", name, err)
		}
		for _, v := range out.ModelVersions {
			version := v.toDomain()
			if err := version.Validate(); err != nil {
				return nil, fmt.Errorf("search model versions of %q: %w", name, err)
			}
			versions = append(versions, version)
		}
		if out.NextPageToken == "" {
			return versions, nil
		}
		pageToken = out.NextPageToken
	}
}

func (c *Client) ListExperiments(ctx context.Context) ([]domain.Experiment, error) {
	experiments := make([]domain.Experiment, 0)
	req := searchExperimentsRequest{
		MaxResults: c.pageSize,
		ViewType:   string(domain.ViewTypeActiveOnly),
	}
	for {
		var out searchExperimentsResponse
		if err := c.call(ctx, http.MethodPost, "/experiments/search", nil, req, &out); err != nil {
			return nil, fmt.Errorf("search experiments: %w", err)
		}
		for _, e := range out.Experiments {
			experiment := e.toDomain()
			if err := experiment.Validate(); err != nil {
				return nil, fmt.Errorf("search experiments: %w", err)
			}
			experiments = append(experiments, experiment)
		}
		if out.NextPageToken == "" {
			return experiments, nil
		}
		req.PageToken = out.NextPageToken
	}
}

func (c *Client) SearchRuns(ctx context.Context, experimentIDs []string, filter domain.RunFilter, view domain.ViewType) ([]domain.Run, error) {
	if len(experimentIDs) == 0 {
		return nil, errors.New("at least one experiment id is required")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if !view.Valid() {
		return nil, fmt.Errorf("invalid view type %q", view)
	}
	runs := make([]domain.Run, 0)
	req := searchRunsRequest{
		ExperimentIDs: experimentIDs,
		Filter:        filter.String(),
		RunViewType:   string(view),
		MaxResults:    c.pageSize,
	}
	for {
		var out searchRunsResponse
		if err := c.call(ctx, http.MethodPost, "/runs/search", nil, req, &out); err != nil {
			return nil, fmt.Errorf("search runs (%s): %w", req.Filter, err)
		}
		for _, r := range out.Runs {
			run := r.toDomain()
			if err := run.Validate(); err != nil {
				return nil, fmt.Errorf("search runs (%s): %w", req.Filter, err)
			}
			runs = append(runs, run)
		}
		if out.NextPageToken == "" {
			return runs, nil
		}
		req.PageToken = out.NextPageToken
	}
}

func (c *Client) DeleteModelVersion(ctx context.Context, name, version string) error {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" || version == "" {
		return errors.New("model name and version are required")
	}
	body := deleteModelVersionRequest{Name: name, Version: version}
	if err := c.call(ctx, http.MethodDelete, "/model-versions/delete", nil, body, nil); err != nil {
		return fmt.Errorf("delete model version %s/%s: %w", name, version, err)
	}
	return nil
}

func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := c.call(ctx, http.MethodPost, "/runs/delete", nil, deleteRunRequest{RunID: runID}, nil); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, in any, out any) error {
	endpoint := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return err
	}
	if int64(len(body)) > c.maxResponseBytes {
		return fmt.Errorf("%s %s: %w (limit %d bytes)", req.Method, req.URL.Path, ErrResponseTooLarge, c.maxResponseBytes)
	}
	c.logger.Debug("tracking request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode tracking response: %w", err)
		}
		return nil
	}

	apiErr := &tracking.APIError{StatusCode: resp.StatusCode}
	var payload errorResponse
	if json.Unmarshal(body, &payload) == nil && payload.ErrorCode != "" {
		apiErr.ErrorCode = payload.ErrorCode
		apiErr.Message = payload.Message
	} else {
		if len(body) > maxErrorBodyLength {
			body = body[:maxErrorBodyLength]
		}
		apiErr.Body = string(body)
	}
	return apiErr
}

// quoteFilterValue quotes a string literal for the search filter grammar,
// which accepts either quote style but has no escape sequences.
func quoteFilterValue(v string) string {
	if strings.Contains(v, "'") && !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	return "'" + v + "'"
}

var _ tracking.Client = (*Client)(nil)
