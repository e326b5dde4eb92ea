package report

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Action says whether an entity was only reported or actually deleted.
type Action string

const (
	ActionDryRun Action = "dry_run"
	ActionDelete Action = "delete"
)

// Kind names the pruned entity type.
type Kind string

const (
	KindModelVersion Kind = "model_version"
	KindRun          Kind = "run"
)

// Entry is one pruning action, reported or applied.
type Entry struct {
	PassID     string
	OccurredAt time.Time
	Action     Action
	Kind       Kind

	Name                 string
	Version              string
	LastUpdatedTimestamp int64

	RunID        string
	ExperimentID string
	EndTime      int64
}

// Subject identifies the entity of the entry for humans.
func (e Entry) Subject() string {
	if e.Kind == KindModelVersion {
		return e.Name + "/" + e.Version
	}
	return e.RunID
}

// Recorder persists pruning actions beyond the log stream.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	Close(ctx context.Context) error
}

// NoopRecorder drops every entry.
type NoopRecorder struct{}

func (NoopRecorder) Record(ctx context.Context, entry Entry) error { return nil }

func (NoopRecorder) Close(ctx context.Context) error { return nil }

// Destination selects where a pass report goes.
type Destination string

const (
	DestinationNone  Destination = "none"
	DestinationFile  Destination = "file"
	DestinationMinio Destination = "minio"
)

func ParseDestination(v string) (Destination, error) {
	d := Destination(strings.ToLower(strings.TrimSpace(v)))
	switch d {
	case "":
		return DestinationNone, nil
	case DestinationNone, DestinationFile, DestinationMinio:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported report destination: %s", v)
	}
}
