package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/animus-labs/animus-prune/internal/domain"
	"github.com/animus-labs/animus-prune/internal/tracking"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and prunes entities directly in a tracking server's SQL
// backend store, bypassing the REST API.
type Store struct {
	db      DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

func New(db DB, dialect Dialect, logger *slog.Logger) *Store {
	if db == nil {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{db: db, dialect: dialect, logger: logger, now: time.Now}
}

func (s *Store) ListRegisteredModels(ctx context.Context) ([]domain.RegisteredModel, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM registered_models ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list registered models: %w", err)
	}
	defer rows.Close()

	models := make([]domain.RegisteredModel, 0)
	for rows.Next() {
		var model domain.RegisteredModel
		if err := rows.Scan(&model.Name); err != nil {
			return nil, fmt.Errorf("scan registered model: %w", err)
		}
		if err := model.Validate(); err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registered models: %w", err)
	}
	return models, nil
}

func (s *Store) ListModelVersions(ctx context.Context, name string) ([]domain.ModelVersion, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	a := &args{dialect: s.dialect}
	query := `SELECT name, CAST(version AS TEXT), current_stage, last_updated_time, run_id
		 FROM model_versions
		 WHERE name = ` + a.add(name) + ` AND (current_stage IS NULL OR current_stage <> ` + a.add(domain.StageDeletedInternal) + `)
		 ORDER BY version`
	rows, err := s.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return nil, fmt.Errorf("list model versions of %q: %w", name, err)
	}
	defer rows.Close()

	versions := make([]domain.ModelVersion, 0)
	for rows.Next() {
		var version domain.ModelVersion
		var stage sql.NullString
		var lastUpdated sql.NullInt64
		var runID sql.NullString
		if err := rows.Scan(&version.Name, &version.Version, &stage, &lastUpdated, &runID); err != nil {
			return nil, fmt.Errorf("scan model version: %w", err)
		}
		version.Stage = domain.StageNone
		if stage.Valid && strings.TrimSpace(stage.String) != "" {
			version.Stage = stage.String
		}
		if lastUpdated.Valid {
			version.LastUpdatedTimestamp = lastUpdated.Int64
		}
		if runID.Valid {
			version.RunID = runID.String
		}
		if err := version.Validate(); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list model versions of %q: %w", name, err)
	}
	return versions, nil
}

func (s *Store) ListExperiments(ctx context.Context) ([]domain.Experiment, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	a := &args{dialect: s.dialect}
	query := `SELECT CAST(experiment_id AS TEXT), name FROM experiments WHERE lifecycle_stage = ` + a.add(lifecycleActive) + ` ORDER BY experiment_id`
	rows, err := s.db.QueryContext(ctx, query, a.values...)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	experiments := make([]domain.Experiment, 0)
	for rows.Next() {
		var experiment domain.Experiment
		if err := rows.Scan(&experiment.ID, &experiment.Name); err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		if err := experiment.Validate(); err != nil {
			return nil, err
		}
		experiments = append(experiments, experiment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	return experiments, nil
}

func (s *Store) SearchRuns(ctx context.Context, experimentIDs []string, filter domain.RunFilter, view domain.ViewType) ([]domain.Run, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}
	query, values, err := buildRunSearchQuery(s.dialect, experimentIDs, filter, view)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("search runs (%s): %w", filter, err)
	}
	defer rows.Close()

	s.logger.Debug("backend store run search", "filter", filter.String(), "view", string(view), "experiments", len(experimentIDs))
	runs := make([]domain.Run, 0)
	for rows.Next() {
		var run domain.Run
		var status string
		var endTime sql.NullInt64
		if err := rows.Scan(&run.ID, &run.ExperimentID, &status, &endTime); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = domain.RunStatus(status)
		if endTime.Valid {
			run.EndTime = endTime.Int64
		}
		if err := run.Validate(); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search runs (%s): %w", filter, err)
	}
	return runs, nil
}

// DeleteModelVersion tombstones the version the way the tracking server
// does: the row stays, its stage becomes Deleted_Internal and its lineage
// fields are redacted.
func (s *Store) DeleteModelVersion(ctx context.Context, name, version string) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("model name is required")
	}
	number, err := strconv.Atoi(strings.TrimSpace(version))
	if err != nil {
		return fmt.Errorf("model version must be numeric: %q", version)
	}

	a := &args{dialect: s.dialect}
	query := `UPDATE model_versions SET
			current_stage = ` + a.add(domain.StageDeletedInternal) + `,
			last_updated_time = ` + a.add(s.now().UTC().UnixMilli()) + `,
			description = NULL,
			user_id = NULL,
			source = ` + a.add(redactedSource) + `,
			run_id = ` + a.add(redactedRunID) + `,
			run_link = ` + a.add(redactedRunLink) + `,
			status_message = NULL
		 WHERE name = ` + a.add(name) + ` AND version = ` + a.add(number) + `
		   AND (current_stage IS NULL OR current_stage <> ` + a.add(domain.StageDeletedInternal) + `)`
	res, err := s.db.ExecContext(ctx, query, a.values...)
	if err != nil {
		return fmt.Errorf("delete model version %s/%d: %w", name, number, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("delete model version %s/%d: %w", name, number, err)
	}
	s.logger.Debug("backend store model version tombstoned", "name", name, "version", number)
	return nil
}

// DeleteRun moves the run to the deleted lifecycle stage; the tracking
// server's garbage collector removes it for good later.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	a := &args{dialect: s.dialect}
	query := `UPDATE runs SET lifecycle_stage = ` + a.add(lifecycleDeleted) +
		`, deleted_time = ` + a.add(s.now().UTC().UnixMilli()) +
		` WHERE run_uuid = ` + a.add(runID) + ` AND lifecycle_stage = ` + a.add(lifecycleActive)
	res, err := s.db.ExecContext(ctx, query, a.values...)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	s.logger.Debug("backend store run soft-deleted", "run_id", runID)
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tracking.ErrNotFound
	}
	return nil
}

var _ tracking.Client = (*Store)(nil)

var errNotInitialized = errors.New("backend store not initialized")
