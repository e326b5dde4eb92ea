package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animus-labs/animus-prune/internal/domain"
	"github.com/animus-labs/animus-prune/internal/tracking"
)

func newTestClient(t *testing.T, handler http.Handler, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.TrackingURI = srv.URL
	client, err := New(cfg, srv.Client(), nil)
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestConfigValidate(t *testing.T) {
	valid := Config{TrackingURI: "https://mlflow.example.com"}
	require.NoError(t, valid.Validate())

	cases := map[string]Config{
		"missing uri":       {},
		"bad scheme":        {TrackingURI: "databricks://profile"},
		"token and user":    {TrackingURI: "http://x", Token: "t", Username: "u", Password: "p"},
		"user without pass": {TrackingURI: "http://x", Username: "u"},
		"negative timeout":  {TrackingURI: "http://x", Timeout: -1},
		"page too large":    {TrackingURI: "http://x", PageSize: 5000},
	}
	for name, cfg := range cases {
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestListRegisteredModelsFollowsPages(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/registered-models/search", func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "2", r.URL.Query().Get("max_results"))
		switch r.URL.Query().Get("page_token") {
		case "":
			writeJSON(t, w, http.StatusOK, map[string]any{
				"registered_models": []map[string]any{{"name": "churn"}, {"name": "fraud"}},
				"next_page_token":   "p2",
			})
		case "p2":
			writeJSON(t, w, http.StatusOK, map[string]any{
				"registered_models": []map[string]any{{"name": "ranker"}},
			})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("page_token"))
		}
	})
	client := newTestClient(t, mux, Config{PageSize: 2})

	models, err := client.ListRegisteredModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []domain.RegisteredModel{{Name: "churn"}, {Name: "fraud"}, {Name: "ranker"}}, models)
}

func TestListModelVersionsDecodesRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/model-versions/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "name='churn'", r.URL.Query().Get("filter"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"model_versions": []map[string]any{
				{"name": "churn", "version": "1", "current_stage": "None", "last_updated_timestamp": 1000, "run_id": "r1"},
				{"name": "churn", "version": "2", "current_stage": "Production", "last_updated_timestamp": "2000"},
			},
		})
	})
	client := newTestClient(t, mux, Config{})

	versions, err := client.ListModelVersions(context.Background(), "churn")
	require.NoError(t, err)
	assert.Equal(t, []domain.ModelVersion{
		{Name: "churn", Version: "1", Stage: domain.StageNone, LastUpdatedTimestamp: 1000, RunID: "r1"},
		{Name: "churn", Version: "2", Stage: "Production", LastUpdatedTimestamp: 2000},
	}, versions)
}

func TestListModelVersionsRejectsIncompleteRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/model-versions/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"model_versions": []map[string]any{{"name": "churn", "current_stage": "None"}},
		})
	})
	client := newTestClient(t, mux, Config{})

	_, err := client.ListModelVersions(context.Background(), "churn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version number is required")
}

func TestQuoteFilterValue(t *testing.T) {
	assert.Equal(t, "'churn'", quoteFilterValue("churn"))
	assert.Equal(t, `"bob's model"`, quoteFilterValue("bob's model"))
}

func TestListExperimentsActiveOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/experiments/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req searchExperimentsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ACTIVE_ONLY", req.ViewType)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"experiments": []map[string]any{{"experiment_id": "0", "name": "Default"}, {"experiment_id": "7", "name": "churn"}},
		})
	})
	client := newTestClient(t, mux, Config{})

	experiments, err := client.ListExperiments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Experiment{{ID: "0", Name: "Default"}, {ID: "7", Name: "churn"}}, experiments)
}

func TestSearchRunsSendsPredicate(t *testing.T) {
	var got []searchRunsRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/runs/search", func(w http.ResponseWriter, r *http.Request) {
		var req searchRunsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req)
		if req.PageToken == "" {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"runs":            []map[string]any{{"info": map[string]any{"run_id": "r1", "experiment_id": "7", "status": "FINISHED", "end_time": 10}}},
				"next_page_token": "next",
			})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"runs": []map[string]any{{"info": map[string]any{"run_id": "r2", "experiment_id": "7", "status": "FINISHED", "end_time": "20"}}},
		})
	})
	client := newTestClient(t, mux, Config{})

	filter := domain.RunFilter{EndedBefore: 500, Status: domain.RunStatusFinished}
	runs, err := client.SearchRuns(context.Background(), []string{"7"}, filter, domain.ViewTypeActiveOnly)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"7"}, got[0].ExperimentIDs)
	assert.Equal(t, "attributes.end_time < 500 AND attributes.status = 'FINISHED'", got[0].Filter)
	assert.Equal(t, "ACTIVE_ONLY", got[0].RunViewType)
	assert.Equal(t, "next", got[1].PageToken)
	assert.Equal(t, []domain.Run{
		{ID: "r1", ExperimentID: "7", Status: domain.RunStatusFinished, EndTime: 10},
		{ID: "r2", ExperimentID: "7", Status: domain.RunStatusFinished, EndTime: 20},
	}, runs)
}

func TestSearchRunsRequiresExperiments(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler(), Config{})
	_, err := client.SearchRuns(context.Background(), nil, domain.RunFilter{Status: domain.RunStatusFailed}, domain.ViewTypeActiveOnly)
	assert.Error(t, err)
}

func TestDeleteCalls(t *testing.T) {
	var modelBody deleteModelVersionRequest
	var runBody deleteRunRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/model-versions/delete", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&modelBody))
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/delete", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&runBody))
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})
	client := newTestClient(t, mux, Config{})

	require.NoError(t, client.DeleteModelVersion(context.Background(), "churn", "4"))
	require.NoError(t, client.DeleteRun(context.Background(), "r9"))
	assert.Equal(t, deleteModelVersionRequest{Name: "churn", Version: "4"}, modelBody)
	assert.Equal(t, deleteRunRequest{RunID: "r9"}, runBody)
}

func TestDeleteRunSurfacesServiceError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/runs/delete", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{
			"error_code": "RESOURCE_DOES_NOT_EXIST",
			"message":    "Run 'r9' not found",
		})
	})
	client := newTestClient(t, mux, Config{})

	err := client.DeleteRun(context.Background(), "r9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, tracking.ErrNotFound))
	var apiErr *tracking.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "RESOURCE_DOES_NOT_EXIST", apiErr.ErrorCode)
	assert.Contains(t, err.Error(), "r9")
}

func TestAuthHeaders(t *testing.T) {
	var header string
	var user, pass string
	var basic bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/runs/delete", func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		user, pass, basic = r.BasicAuth()
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	})

	tokenClient := newTestClient(t, mux, Config{Token: "secret"})
	require.NoError(t, tokenClient.DeleteRun(context.Background(), "r1"))
	assert.Equal(t, "Bearer secret", header)

	basicClient := newTestClient(t, mux, Config{Username: "alice", Password: "pw"})
	require.NoError(t, basicClient.DeleteRun(context.Background(), "r1"))
	assert.True(t, basic)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "pw", pass)
}

func TestMillisDecoding(t *testing.T) {
	var v struct {
		A millis `json:"a"`
		B millis `json:"b"`
		C millis `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": "34", "c": null}`), &v))
	assert.Equal(t, millis(12), v.A)
	assert.Equal(t, millis(34), v.B)
	assert.Equal(t, millis(0), v.C)
	assert.Error(t, json.Unmarshal([]byte(`{"a": "soon"}`), &v))
}

func TestOversizedResponseIsRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/2.0/mlflow/registered-models/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"registered_models": []map[string]any{{"name": strings.Repeat("m", 256)}},
		})
	})
	client := newTestClient(t, mux, Config{})
	client.maxResponseBytes = 64

	_, err := client.ListRegisteredModels(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResponseTooLarge), "err=%v", err)
	assert.NotContains(t, err.Error(), "decode")

	client.maxResponseBytes = 4096
	models, err := client.ListRegisteredModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 1)
}
