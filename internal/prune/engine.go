package prune

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/animus-labs/animus-prune/internal/domain"
	"github.com/animus-labs/animus-prune/internal/tracking"
)

// staleRunStatuses are searched one at a time: the tracking server's filter
// grammar has no IN operator on run status.
var staleRunStatuses = []domain.RunStatus{domain.RunStatusFinished, domain.RunStatusFailed}

const msPerDay int64 = 24 * 60 * 60 * 1000

// Cutoff returns the instant, in milliseconds since the epoch, before which
// entities count as stale. ttlDays above MaxTTLDays is treated as MaxTTLDays
// so the arithmetic cannot wrap.
func Cutoff(now time.Time, ttlDays int) int64 {
	if ttlDays > MaxTTLDays {
		ttlDays = MaxTTLDays
	}
	return now.UTC().Round(time.Millisecond).UnixMilli() - int64(ttlDays)*msPerDay
}

// Engine decides which entities of a tracking server are eligible for
// deletion against a fixed cutoff.
type Engine struct {
	client tracking.Client
	cutoff int64
	logger *slog.Logger
}

func NewEngine(client tracking.Client, cutoff int64, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{client: client, cutoff: cutoff, logger: logger}
}

func (e *Engine) Cutoff() int64 {
	return e.cutoff
}

// ClassifyModelVersion reports whether a version is prunable: it was never
// staged and has not been touched since the cutoff.
func (e *Engine) ClassifyModelVersion(version domain.ModelVersion) bool {
	var prunable bool
	var reason string
	switch {
	case version.Staged():
		reason = "staged"
	case version.LastUpdatedTimestamp >= e.cutoff:
		reason = "recently updated"
	default:
		prunable = true
		reason = "unstaged and stale"
	}
	e.logger.Info("model version classified",
		"name", version.Name,
		"version", version.Version,
		"stage", version.Stage,
		"last_updated_timestamp", version.LastUpdatedTimestamp,
		"cutoff", e.cutoff,
		"prunable", prunable,
		"reason", reason,
	)
	return prunable
}

func (e *Engine) SelectPrunableModelVersions(versions []domain.ModelVersion) []domain.ModelVersion {
	out := make([]domain.ModelVersion, 0, len(versions))
	for _, v := range versions {
		if e.ClassifyModelVersion(v) {
			out = append(out, v)
		}
	}
	return out
}

// DiscoverStaleRuns returns the active runs of the given experiments that
// ended before the cutoff as FINISHED or FAILED, grouped by status in that
// order. No query is issued for an empty experiment list.
func (e *Engine) DiscoverStaleRuns(ctx context.Context, experimentIDs []string) ([]domain.Run, error) {
	runs := make([]domain.Run, 0)
	if len(experimentIDs) == 0 {
		e.logger.Info("no experiments to search for stale runs")
		return runs, nil
	}
	for _, status := range staleRunStatuses {
		filter := domain.RunFilter{EndedBefore: e.cutoff, Status: status}
		found, err := e.client.SearchRuns(ctx, experimentIDs, filter, domain.ViewTypeActiveOnly)
		if err != nil {
			return nil, fmt.Errorf("discover stale %s runs: %w", status, err)
		}
		e.logger.Info("stale runs found", "status", string(status), "count", len(found))
		runs = append(runs, found...)
	}
	return runs, nil
}

// ExcludeRunsWithLiveModelVersions drops every run that is the origin of one
// of versions. Pass the full version list, not only the prunable ones: a run
// stays while any registered version still points at it.
func (e *Engine) ExcludeRunsWithLiveModelVersions(runs []domain.Run, versions []domain.ModelVersion) []domain.Run {
	origins := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		if v.RunID != "" {
			origins[v.RunID] = struct{}{}
		}
	}
	out := make([]domain.Run, 0, len(runs))
	for _, r := range runs {
		if _, ok := origins[r.ID]; ok {
			e.logger.Info("run kept as model version origin", "run_id", r.ID, "experiment_id", r.ExperimentID)
			continue
		}
		out = append(out, r)
	}
	return out
}

// AssemblePruneableSet runs the full analysis. Any query failure aborts it;
// no partial set is returned.
func (e *Engine) AssemblePruneableSet(ctx context.Context) (domain.Pruneable, error) {
	models, err := e.client.ListRegisteredModels(ctx)
	if err != nil {
		return domain.Pruneable{}, fmt.Errorf("list registered models: %w", err)
	}
	e.logger.Info("registered models listed", "count", len(models))

	versions := make([]domain.ModelVersion, 0)
	for _, m := range models {
		found, err := e.client.ListModelVersions(ctx, m.Name)
		if err != nil {
			return domain.Pruneable{}, fmt.Errorf("list versions of model %q: %w", m.Name, err)
		}
		versions = append(versions, found...)
	}
	e.logger.Info("model versions listed", "count", len(versions))

	prunableModels := e.SelectPrunableModelVersions(versions)
	e.logger.Info("prunable model versions selected", "count", len(prunableModels))

	experiments, err := e.client.ListExperiments(ctx)
	if err != nil {
		return domain.Pruneable{}, fmt.Errorf("list experiments: %w", err)
	}
	e.logger.Info("experiments listed", "count", len(experiments))

	ids := make([]string, 0, len(experiments))
	for _, exp := range experiments {
		ids = append(ids, exp.ID)
	}
	staleRuns, err := e.DiscoverStaleRuns(ctx, ids)
	if err != nil {
		return domain.Pruneable{}, err
	}
	e.logger.Info("stale runs discovered", "count", len(staleRuns))

	prunableRuns := e.ExcludeRunsWithLiveModelVersions(staleRuns, versions)
	e.logger.Info("prunable runs selected", "count", len(prunableRuns), "excluded", len(staleRuns)-len(prunableRuns))

	return domain.Pruneable{Models: prunableModels, Runs: prunableRuns}, nil
}
