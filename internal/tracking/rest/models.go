package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/animus-labs/animus-prune/internal/domain"
)

// millis decodes an epoch-millisecond value that some server versions encode
// as a JSON string.
type millis int64

func (m *millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		data = []byte(s)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	*m = millis(v)
	return nil
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type registeredModel struct {
	Name string `json:"name"`
}

func (m registeredModel) toDomain() domain.RegisteredModel {
	return domain.RegisteredModel{Name: m.Name}
}

type searchRegisteredModelsResponse struct {
	RegisteredModels []registeredModel `json:"registered_models"`
	NextPageToken    string            `json:"next_page_token"`
}

type modelVersion struct {
	Name                 string `json:"name"`
	Version              string `json:"version"`
	CurrentStage         string `json:"current_stage"`
	LastUpdatedTimestamp millis `json:"last_updated_timestamp"`
	RunID                string `json:"run_id"`
}

func (v modelVersion) toDomain() domain.ModelVersion {
	stage := v.CurrentStage
	if stage == "" {
		stage = domain.StageNone
	}
	return domain.ModelVersion{
		Name:                 v.Name,
		Version:              v.Version,
		Stage:                stage,
		LastUpdatedTimestamp: int64(v.LastUpdatedTimestamp),
		RunID:                v.RunID,
	}
}

type searchModelVersionsResponse struct {
	ModelVersions []modelVersion `json:"model_versions"`
	NextPageToken string         `json:"next_page_token"`
}

type experiment struct {
	ExperimentID string `json:"experiment_id"`
	Name         string `json:"name"`
}

func (e experiment) toDomain() domain.Experiment {
	return domain.Experiment{ID: e.ExperimentID, Name: e.Name}
}

type searchExperimentsRequest struct {
	MaxResults int    `json:"max_results,omitempty"`
	PageToken  string `json:"page_token,omitempty"`
	ViewType   string `json:"view_type,omitempty"`
}

type searchExperimentsResponse struct {
	Experiments   []experiment `json:"experiments"`
	NextPageToken string       `json:"next_page_token"`
}

type runInfo struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
	Status       string `json:"status"`
	EndTime      millis `json:"end_time"`
}

type run struct {
	Info runInfo `json:"info"`
}

func (r run) toDomain() domain.Run {
	return domain.Run{
		ID:           r.Info.RunID,
		ExperimentID: r.Info.ExperimentID,
		Status:       domain.RunStatus(r.Info.Status),
		EndTime:      int64(r.Info.EndTime),
	}
}

type searchRunsRequest struct {
	ExperimentIDs []string `json:"experiment_ids"`
	Filter        string   `json:"filter,omitempty"`
	RunViewType   string   `json:"run_view_type,omitempty"`
	MaxResults    int      `json:"max_results,omitempty"`
	PageToken     string   `json:"page_token,omitempty"`
}

type searchRunsResponse struct {
	Runs          []run  `json:"runs"`
	NextPageToken string `json:"next_page_token"`
}

type deleteModelVersionRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type deleteRunRequest struct {
	RunID string `json:"run_id"`
}
