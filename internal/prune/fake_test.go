package prune

import (
	"context"
	"fmt"
	"sync"

	"github.com/animus-labs/animus-prune/internal/domain"
	"github.com/animus-labs/animus-prune/internal/report"
)

type searchCall struct {
	experimentIDs []string
	filter        domain.RunFilter
	view          domain.ViewType
}

type fakeClient struct {
	mu sync.Mutex

	models      []domain.RegisteredModel
	versions    map[string][]domain.ModelVersion
	experiments []domain.Experiment
	runs        map[domain.RunStatus][]domain.Run

	listModelsErr  error
	listVersionErr error
	listExpErr     error
	searchErr      error
	deleteModelErr map[string]error
	deleteRunErr   map[string]error

	searches       []searchCall
	deletedModels  []string
	deletedRuns    []string
	listedVersions []string
}

func (f *fakeClient) ListRegisteredModels(ctx context.Context) ([]domain.RegisteredModel, error) {
	if f.listModelsErr != nil {
		return nil, f.listModelsErr
	}
	return f.models, nil
}

func (f *fakeClient) ListModelVersions(ctx context.Context, name string) ([]domain.ModelVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listedVersions = append(f.listedVersions, name)
	if f.listVersionErr != nil {
		return nil, f.listVersionErr
	}
	return f.versions[name], nil
}

func (f *fakeClient) ListExperiments(ctx context.Context) ([]domain.Experiment, error) {
	if f.listExpErr != nil {
		return nil, f.listExpErr
	}
	return f.experiments, nil
}

func (f *fakeClient) SearchRuns(ctx context.Context, experimentIDs []string, filter domain.RunFilter, view domain.ViewType) ([]domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, searchCall{experimentIDs: experimentIDs, filter: filter, view: view})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]domain.Run, 0)
	for _, r := range f.runs[filter.Status] {
		if r.EndTime < filter.EndedBefore {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeClient) DeleteModelVersion(ctx context.Context, name, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := name + "/" + version
	f.deletedModels = append(f.deletedModels, key)
	if err := f.deleteModelErr[key]; err != nil {
		return err
	}
	return nil
}

func (f *fakeClient) DeleteRun(ctx context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedRuns = append(f.deletedRuns, runID)
	if err := f.deleteRunErr[runID]; err != nil {
		return err
	}
	return nil
}

type fakeRecorder struct {
	entries []report.Entry
	err     error
}

func (r *fakeRecorder) Record(ctx context.Context, entry report.Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeRecorder) Close(ctx context.Context) error { return nil }

func (r *fakeRecorder) subjects() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, fmt.Sprintf("%s:%s:%s", e.Action, e.Kind, e.Subject()))
	}
	return out
}
