package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-prune/internal/domain"
)

// Lifecycle stages of experiments and runs in the backend store.
const (
	lifecycleActive  = "active"
	lifecycleDeleted = "deleted"
)

// Replacement values the tracking server writes into a tombstoned version.
const (
	redactedSource  = "REDACTED-SOURCE-PATH"
	redactedRunID   = "REDACTED-RUN-ID"
	redactedRunLink = "REDACTED-RUN-LINK"
)

func buildRunSearchQuery(dialect Dialect, experimentIDs []string, filter domain.RunFilter, view domain.ViewType) (string, []any, error) {
	if len(experimentIDs) == 0 {
		return "", nil, errors.New("at least one experiment id is required")
	}
	if err := filter.Validate(); err != nil {
		return "", nil, err
	}

	a := &args{dialect: dialect}
	in := make([]string, 0, len(experimentIDs))
	for _, id := range experimentIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return "", nil, errors.New("experiment id is required")
		}
		in = append(in, a.add(id))
	}
	clauses := []string{
		fmt.Sprintf("CAST(experiment_id AS TEXT) IN (%s)", strings.Join(in, ",")),
		"end_time < " + a.add(filter.EndedBefore),
		"status = " + a.add(string(filter.Status)),
	}
	switch view {
	case domain.ViewTypeActiveOnly:
		clauses = append(clauses, "lifecycle_stage = "+a.add(lifecycleActive))
	case domain.ViewTypeDeletedOnly:
		clauses = append(clauses, "lifecycle_stage = "+a.add(lifecycleDeleted))
	case domain.ViewTypeAll:
	default:
		return "", nil, fmt.Errorf("invalid view type %q", view)
	}

	query := `SELECT run_uuid, CAST(experiment_id AS TEXT), status, end_time FROM runs WHERE ` +
		strings.Join(clauses, " AND ") +
		` ORDER BY start_time DESC, run_uuid`
	return query, a.values, nil
}
