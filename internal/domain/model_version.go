package domain

import (
	"errors"
	"strings"
)

// StageNone is the stage a version carries until it is transitioned. The
// tracking server reports it as the literal string "None".
const StageNone = "None"

// StageDeletedInternal marks versions the backend store has tombstoned.
const StageDeletedInternal = "Deleted_Internal"

// RegisteredModel is a named entry of the model registry.
type RegisteredModel struct {
	Name string
}

// ModelVersion is a single registered version of a model.
type ModelVersion struct {
	Name                 string
	Version              string
	Stage                string
	LastUpdatedTimestamp int64
	// RunID is the origin run; empty when the version was not logged from a run.
	RunID string
}

func (m RegisteredModel) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("registered model name is required")
	}
	return nil
}

func (v ModelVersion) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("model version name is required")
	}
	if strings.TrimSpace(v.Version) == "" {
		return errors.New("model version number is required")
	}
	if strings.TrimSpace(v.Stage) == "" {
		return errors.New("model version stage is required")
	}
	return nil
}

// Staged reports whether the version was ever transitioned out of StageNone.
func (v ModelVersion) Staged() bool {
	return v.Stage != StageNone
}
