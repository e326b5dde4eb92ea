package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// NDJSONRecorder writes entries as newline-delimited JSON.
type NDJSONRecorder struct {
	enc    *json.Encoder
	closer io.Closer
}

func NewNDJSONRecorder(w io.Writer) *NDJSONRecorder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONRecorder{enc: enc}
}

// NewFileRecorder appends to path, creating parent directories as needed.
func NewFileRecorder(path string) (*NDJSONRecorder, error) {
	if path == "" {
		return nil, fmt.Errorf("report path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	r := NewNDJSONRecorder(f)
	r.closer = f
	return r, nil
}

func (r *NDJSONRecorder) Record(ctx context.Context, entry Entry) error {
	return r.enc.Encode(recordFromEntry(entry))
}

func (r *NDJSONRecorder) Close(ctx context.Context) error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

type record struct {
	PassID               string `json:"pass_id"`
	OccurredAt           string `json:"occurred_at"`
	Action               Action `json:"action"`
	Kind                 Kind   `json:"kind"`
	Name                 string `json:"name,omitempty"`
	Version              string `json:"version,omitempty"`
	LastUpdatedTimestamp *int64 `json:"last_updated_timestamp,omitempty"`
	RunID                string `json:"run_id,omitempty"`
	ExperimentID         string `json:"experiment_id,omitempty"`
	EndTime              *int64 `json:"end_time,omitempty"`
}

// recordFromEntry keeps the timestamp of the entry's kind even when it is
// the epoch, and drops the other kind's.
func recordFromEntry(e Entry) record {
	r := record{
		PassID:       e.PassID,
		OccurredAt:   e.OccurredAt.UTC().Format(time.RFC3339Nano),
		Action:       e.Action,
		Kind:         e.Kind,
		Name:         e.Name,
		Version:      e.Version,
		RunID:        e.RunID,
		ExperimentID: e.ExperimentID,
	}
	switch e.Kind {
	case KindModelVersion:
		ts := e.LastUpdatedTimestamp
		r.LastUpdatedTimestamp = &ts
	case KindRun:
		end := e.EndTime
		r.EndTime = &end
	}
	return r
}
