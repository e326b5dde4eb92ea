package prune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/animus-prune/internal/domain"
	"github.com/animus-labs/animus-prune/internal/report"
	"github.com/animus-labs/animus-prune/internal/tracking"
)

// MaxTTLDays bounds the TTL to a century.
const MaxTTLDays = 36500

var ErrInvalidTTL = fmt.Errorf("ttl days must be between 0 and %d", MaxTTLDays)

// Policy is the validated pruning configuration of a pass.
type Policy struct {
	TTLDays int
	// ContinueOnError keeps deleting after a failed delete and reports all
	// failures at the end instead of aborting the batch.
	ContinueOnError bool
}

func (p Policy) Validate() error {
	if p.TTLDays < 0 || p.TTLDays > MaxTTLDays {
		return fmt.Errorf("%w: %d", ErrInvalidTTL, p.TTLDays)
	}
	return nil
}

// DeleteError is a failed deletion of a single entity.
type DeleteError struct {
	Kind report.Kind
	ID   string
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// Orchestrator runs one pruning pass: analysis first, then deletion (or
// reporting only, in dry run).
type Orchestrator struct {
	client    tracking.Client
	policy    Policy
	logger    *slog.Logger
	recorder  report.Recorder
	now       func() time.Time
	newPassID func() string
}

func NewOrchestrator(client tracking.Client, policy Policy, logger *slog.Logger, recorder report.Recorder) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if recorder == nil {
		recorder = report.NoopRecorder{}
	}
	return &Orchestrator{
		client:    client,
		policy:    policy,
		logger:    logger,
		recorder:  recorder,
		now:       time.Now,
		newPassID: func() string { return uuid.NewString() },
	}
}

// Summary counts what a pass did.
type Summary struct {
	PassID string
	DryRun bool
	Cutoff int64
	Models int
	Runs   int
	Failed int
}

// Execute performs a single pass and returns once every selected entity was
// handled. The recorder is not closed.
func (o *Orchestrator) Execute(ctx context.Context, dryRun bool) error {
	_, err := o.Run(ctx, dryRun)
	return err
}

// Run is Execute returning the pass summary as well.
func (o *Orchestrator) Run(ctx context.Context, dryRun bool) (Summary, error) {
	if err := o.policy.Validate(); err != nil {
		return Summary{}, err
	}
	summary := Summary{
		PassID: o.newPassID(),
		DryRun: dryRun,
		Cutoff: Cutoff(o.now(), o.policy.TTLDays),
	}
	logger := o.logger.With("pass_id", summary.PassID, "dry_run", dryRun)
	logger.Info("cutoff resolved", "ttl_days", o.policy.TTLDays, "cutoff", summary.Cutoff)

	logger.Info("analysis", "phase", "[START]")
	engine := NewEngine(o.client, summary.Cutoff, logger)
	set, err := engine.AssemblePruneableSet(ctx)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		return summary, err
	}
	logger.Info("analysis", "phase", "[COMPLETE]", "models", len(set.Models), "runs", len(set.Runs))

	logger.Info("pruning", "phase", "[START]")
	var failures []error
	// handle reports or deletes one entity. handled is false when the delete
	// failed and the policy allows the pass to go on.
	handle := func(entry report.Entry, del func() error) (handled bool, err error) {
		entry.PassID = summary.PassID
		entry.Action = report.ActionDryRun
		if !dryRun {
			entry.Action = report.ActionDelete
			if err := del(); err != nil {
				derr := &DeleteError{Kind: entry.Kind, ID: entry.Subject(), Err: err}
				logger.Error("delete failed", "kind", string(entry.Kind), "id", entry.Subject(), "error", err)
				summary.Failed++
				if !o.policy.ContinueOnError {
					return false, derr
				}
				failures = append(failures, derr)
				return false, nil
			}
		}
		entry.OccurredAt = o.now().UTC()
		if err := o.recorder.Record(ctx, entry); err != nil {
			return false, fmt.Errorf("record %s %s: %w", entry.Kind, entry.Subject(), err)
		}
		return true, nil
	}

	for _, m := range set.Models {
		handled, err := handle(modelEntry(m), func() error { return o.client.DeleteModelVersion(ctx, m.Name, m.Version) })
		if err != nil {
			return summary, err
		}
		if handled {
			logModelAction(logger, dryRun, m)
			summary.Models++
		}
	}
	for _, r := range set.Runs {
		handled, err := handle(runEntry(r), func() error { return o.client.DeleteRun(ctx, r.ID) })
		if err != nil {
			return summary, err
		}
		if handled {
			logRunAction(logger, dryRun, r)
			summary.Runs++
		}
	}
	logger.Info("pruning", "phase", "[COMPLETE]")

	logger.Info("pass summary",
		"cutoff", summary.Cutoff,
		"models", summary.Models,
		"runs", summary.Runs,
		"failed", summary.Failed,
	)
	if len(failures) > 0 {
		return summary, errors.Join(failures...)
	}
	return summary, nil
}

func modelEntry(m domain.ModelVersion) report.Entry {
	return report.Entry{
		Kind:                 report.KindModelVersion,
		Name:                 m.Name,
		Version:              m.Version,
		LastUpdatedTimestamp: m.LastUpdatedTimestamp,
	}
}

func runEntry(r domain.Run) report.Entry {
	return report.Entry{
		Kind:         report.KindRun,
		RunID:        r.ID,
		ExperimentID: r.ExperimentID,
		EndTime:      r.EndTime,
	}
}

func logModelAction(logger *slog.Logger, dryRun bool, m domain.ModelVersion) {
	msg := "model version deleted"
	if dryRun {
		msg = "model version would be deleted"
	}
	logger.Info(msg, "name", m.Name, "version", m.Version, "last_updated_timestamp", m.LastUpdatedTimestamp)
}

func logRunAction(logger *slog.Logger, dryRun bool, r domain.Run) {
	msg := "run deleted"
	if dryRun {
		msg = "run would be deleted"
	}
	logger.Info(msg, "run_id", r.ID, "end_time", r.EndTime, "experiment_id", r.ExperimentID)
}
