package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RunStatus is the lifecycle status of a tracking run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusScheduled RunStatus = "SCHEDULED"
	RunStatusFinished  RunStatus = "FINISHED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusKilled    RunStatus = "KILLED"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusScheduled, RunStatusFinished, RunStatusFailed, RunStatusKilled:
		return true
	default:
		return false
	}
}

// ViewType selects which lifecycle stages a search covers.
type ViewType string

const (
	ViewTypeActiveOnly  ViewType = "ACTIVE_ONLY"
	ViewTypeDeletedOnly ViewType = "DELETED_ONLY"
	ViewTypeAll         ViewType = "ALL"
)

func (v ViewType) Valid() bool {
	switch v {
	case ViewTypeActiveOnly, ViewTypeDeletedOnly, ViewTypeAll:
		return true
	default:
		return false
	}
}

// Experiment groups runs; only its id matters for pruning.
type Experiment struct {
	ID   string
	Name string
}

// Run is a single tracked execution.
type Run struct {
	ID           string
	ExperimentID string
	Status       RunStatus
	// EndTime is in milliseconds since the epoch; zero while the run is open.
	EndTime int64
}

func (e Experiment) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("experiment id is required")
	}
	return nil
}

func (r Run) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(r.ExperimentID) == "" {
		return errors.New("run experiment id is required")
	}
	return nil
}

// RunFilter is the conjunction the tracking server's search predicate can
// express for pruning: an end-time bound and a single status. The predicate
// language has no IN operator on status, so one filter carries one status.
type RunFilter struct {
	EndedBefore int64
	Status      RunStatus
}

func (f RunFilter) Validate() error {
	if !f.Status.Valid() {
		return fmt.Errorf("invalid run status %q", f.Status)
	}
	return nil
}

// String renders the filter in the tracking server's search syntax.
func (f RunFilter) String() string {
	return fmt.Sprintf("attributes.end_time < %d AND attributes.status = '%s'", f.EndedBefore, f.Status)
}
