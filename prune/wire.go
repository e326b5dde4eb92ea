package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/animus-labs/animus-prune/internal/config"
	"github.com/animus-labs/animus-prune/internal/platform/auth"
	"github.com/animus-labs/animus-prune/internal/platform/objectstore"
	"github.com/animus-labs/animus-prune/internal/platform/postgres"
	"github.com/animus-labs/animus-prune/internal/platform/sqlite"
	"github.com/animus-labs/animus-prune/internal/report"
	"github.com/animus-labs/animus-prune/internal/tracking"
	"github.com/animus-labs/animus-prune/internal/tracking/rest"
	"github.com/animus-labs/animus-prune/internal/tracking/sqlstore"
)

func noopClose() error { return nil }

// newTrackingClient returns the client for the configured backend and a
// function releasing its resources.
func newTrackingClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (tracking.Client, func() error, error) {
	switch cfg.Backend {
	case config.BackendREST:
		restCfg := cfg.REST()
		httpClient := rest.NewHTTPClient(restCfg)
		if authCfg := cfg.Auth(); authCfg.Enabled() {
			var err error
			httpClient, err = auth.NewClientCredentialsClient(ctx, authCfg, httpClient)
			if err != nil {
				return nil, nil, fmt.Errorf("oidc client credentials: %w", err)
			}
			logger.Info("tracking auth via oidc client credentials", "issuer", authCfg.IssuerURL)
		}
		client, err := rest.New(restCfg, httpClient, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, noopClose, nil
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres())
		if err != nil {
			return nil, nil, fmt.Errorf("database unavailable: %w", err)
		}
		return sqlstore.New(db, sqlstore.DialectPostgres, logger), db.Close, nil
	case config.BackendSQLite:
		liteCfg, err := cfg.SQLite()
		if err != nil {
			return nil, nil, &config.Error{Setting: config.KeyDatabaseURL, Err: err}
		}
		db, err := sqlite.Open(ctx, liteCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("database unavailable: %w", err)
		}
		return sqlstore.New(db, sqlstore.DialectSQLite, logger), db.Close, nil
	default:
		return nil, nil, &config.Error{Setting: config.KeyBackend, Err: fmt.Errorf("unsupported backend %q", cfg.Backend)}
	}
}

func newRecorder(ctx context.Context, cfg report.Config, logger *slog.Logger) (report.Recorder, error) {
	destination, err := report.ParseDestination(string(cfg.Destination))
	if err != nil {
		return nil, &config.Error{Setting: config.KeyReportDestination, Err: err}
	}
	switch destination {
	case report.DestinationFile:
		logger.Info("pass report enabled", "destination", string(destination), "path", cfg.Path)
		rec, err := report.NewFileRecorder(cfg.Path)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case report.DestinationMinio:
		store, err := objectstore.NewMinioStore(cfg.Minio)
		if err != nil {
			return nil, &config.Error{Setting: config.KeyMinioEndpoint, Err: err}
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("report bucket: %w", err)
		}
		logger.Info("pass report enabled", "destination", string(destination), "bucket", store.Bucket(), "prefix", cfg.Prefix)
		rec, err := report.NewObjectRecorder(store, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return report.NoopRecorder{}, nil
	}
}
