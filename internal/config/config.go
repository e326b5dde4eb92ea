package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/animus-labs/animus-prune/internal/platform/auth"
	"github.com/animus-labs/animus-prune/internal/platform/env"
	"github.com/animus-labs/animus-prune/internal/platform/objectstore"
	"github.com/animus-labs/animus-prune/internal/platform/postgres"
	"github.com/animus-labs/animus-prune/internal/platform/sqlite"
	"github.com/animus-labs/animus-prune/internal/prune"
	"github.com/animus-labs/animus-prune/internal/report"
	"github.com/animus-labs/animus-prune/internal/tracking/rest"
	"github.com/animus-labs/animus-prune/internal/tracking/sqlstore"
)

const (
	KeyTTL             = "MLFLOW_TRACKING_ENTITY_TTL"
	KeyBackend         = "PRUNE_BACKEND"
	KeyContinueOnError = "PRUNE_CONTINUE_ON_ERROR"
	KeyLogLevel        = "PRUNE_LOG_LEVEL"
	KeyLogFormat       = "PRUNE_LOG_FORMAT"

	KeyTrackingURI      = "MLFLOW_TRACKING_URI"
	KeyTrackingToken    = "MLFLOW_TRACKING_TOKEN"
	KeyTrackingUsername = "MLFLOW_TRACKING_USERNAME"
	KeyTrackingPassword = "MLFLOW_TRACKING_PASSWORD"
	KeyTrackingInsecure = "MLFLOW_TRACKING_INSECURE_TLS"
	KeyRequestTimeout   = "MLFLOW_HTTP_REQUEST_TIMEOUT"
	KeyPageSize         = "PRUNE_PAGE_SIZE"

	KeyOIDCIssuerURL    = "PRUNE_OIDC_ISSUER_URL"
	KeyOIDCClientID     = "PRUNE_OIDC_CLIENT_ID"
	KeyOIDCClientSecret = "PRUNE_OIDC_CLIENT_SECRET"
	KeyOIDCScopes       = "PRUNE_OIDC_SCOPES"

	KeyDatabaseURL = "DATABASE_URL"

	KeyReportDestination = "PRUNE_REPORT_DESTINATION"
	KeyReportPath        = "PRUNE_REPORT_PATH"
	KeyReportPrefix      = "PRUNE_REPORT_PREFIX"
	KeyMinioEndpoint     = "PRUNE_MINIO_ENDPOINT"
	KeyMinioAccessKey    = "PRUNE_MINIO_ACCESS_KEY"
	KeyMinioSecretKey    = "PRUNE_MINIO_SECRET_KEY"
	KeyMinioRegion       = "PRUNE_MINIO_REGION"
	KeyMinioUseSSL       = "PRUNE_MINIO_USE_SSL"
	KeyMinioBucket       = "PRUNE_MINIO_BUCKET"
)

// Error is an invalid or missing setting. It is always reported before the
// tracking server is contacted.
type Error struct {
	Setting string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Setting, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func settingError(setting string, err error) error {
	return &Error{Setting: setting, Err: err}
}

// Backend selects how the tracking server is reached.
type Backend string

const (
	BackendREST     Backend = "rest"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

type Config struct {
	// TTLDays has no default; nil means it was never set.
	TTLDays         *int    `yaml:"ttl_days"`
	Backend         Backend `yaml:"backend"`
	ContinueOnError bool    `yaml:"continue_on_error"`

	Log      LogConfig      `yaml:"log"`
	Tracking TrackingConfig `yaml:"tracking"`
	OIDC     OIDCConfig     `yaml:"oidc"`
	Database DatabaseConfig `yaml:"database"`
	Report   ReportConfig   `yaml:"report"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TrackingConfig struct {
	URI         string        `yaml:"uri"`
	Token       string        `yaml:"token"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	InsecureTLS bool          `yaml:"insecure_tls"`
	Timeout     time.Duration `yaml:"timeout"`
	PageSize    int           `yaml:"page_size"`
}

type OIDCConfig struct {
	IssuerURL    string   `yaml:"issuer_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type ReportConfig struct {
	Destination string      `yaml:"destination"`
	Path        string      `yaml:"path"`
	Prefix      string      `yaml:"prefix"`
	Minio       MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

func Default() Config {
	return Config{
		Backend: BackendREST,
		Log:     LogConfig{Level: "info", Format: "json"},
		Tracking: TrackingConfig{
			Timeout:  120 * time.Second,
			PageSize: 1000,
		},
		Report: ReportConfig{
			Destination: string(report.DestinationNone),
			Prefix:      "prune-reports",
			Minio:       MinioConfig{Region: "us-east-1", Bucket: "prune-reports"},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment, in increasing precedence, and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, settingError("--config", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, settingError("--config", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if _, ok := env.Lookup(KeyTTL); ok || c.TTLDays == nil {
		ttl, err := env.RequiredInt(KeyTTL)
		if err != nil {
			return settingError(KeyTTL, err)
		}
		c.TTLDays = &ttl
	}
	c.Backend = Backend(strings.ToLower(env.String(KeyBackend, string(c.Backend))))

	var err error
	if c.ContinueOnError, err = env.Bool(KeyContinueOnError, c.ContinueOnError); err != nil {
		return settingError(KeyContinueOnError, err)
	}
	c.Log.Level = env.String(KeyLogLevel, c.Log.Level)
	c.Log.Format = env.String(KeyLogFormat, c.Log.Format)

	c.Tracking.URI = env.String(KeyTrackingURI, c.Tracking.URI)
	c.Tracking.Token = env.String(KeyTrackingToken, c.Tracking.Token)
	c.Tracking.Username = env.String(KeyTrackingUsername, c.Tracking.Username)
	c.Tracking.Password = env.String(KeyTrackingPassword, c.Tracking.Password)
	if c.Tracking.InsecureTLS, err = env.Bool(KeyTrackingInsecure, c.Tracking.InsecureTLS); err != nil {
		return settingError(KeyTrackingInsecure, err)
	}
	if c.Tracking.Timeout, err = requestTimeout(c.Tracking.Timeout); err != nil {
		return settingError(KeyRequestTimeout, err)
	}
	if c.Tracking.PageSize, err = env.Int(KeyPageSize, c.Tracking.PageSize); err != nil {
		return settingError(KeyPageSize, err)
	}

	c.OIDC.IssuerURL = env.String(KeyOIDCIssuerURL, c.OIDC.IssuerURL)
	c.OIDC.ClientID = env.String(KeyOIDCClientID, c.OIDC.ClientID)
	c.OIDC.ClientSecret = env.String(KeyOIDCClientSecret, c.OIDC.ClientSecret)
	if v, ok := env.Lookup(KeyOIDCScopes); ok {
		c.OIDC.Scopes = auth.ParseScopes(v)
	}

	c.Database.URL = env.String(KeyDatabaseURL, c.Database.URL)

	c.Report.Destination = env.String(KeyReportDestination, c.Report.Destination)
	c.Report.Path = env.String(KeyReportPath, c.Report.Path)
	c.Report.Prefix = env.String(KeyReportPrefix, c.Report.Prefix)
	c.Report.Minio.Endpoint = env.String(KeyMinioEndpoint, c.Report.Minio.Endpoint)
	c.Report.Minio.AccessKey = env.String(KeyMinioAccessKey, c.Report.Minio.AccessKey)
	c.Report.Minio.SecretKey = env.String(KeyMinioSecretKey, c.Report.Minio.SecretKey)
	c.Report.Minio.Region = env.String(KeyMinioRegion, c.Report.Minio.Region)
	c.Report.Minio.Bucket = env.String(KeyMinioBucket, c.Report.Minio.Bucket)
	if c.Report.Minio.UseSSL, err = env.Bool(KeyMinioUseSSL, c.Report.Minio.UseSSL); err != nil {
		return settingError(KeyMinioUseSSL, err)
	}
	return nil
}

// requestTimeout accepts whole seconds, as the tracking client libraries
// do, or a Go duration string.
func requestTimeout(def time.Duration) (time.Duration, error) {
	v, ok := env.Lookup(KeyRequestTimeout)
	if !ok {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return env.Duration(KeyRequestTimeout, def)
}

func (c Config) Validate() error {
	if c.TTLDays == nil {
		return settingError(KeyTTL, env.ErrMissing)
	}
	if err := c.Policy().Validate(); err != nil {
		return settingError(KeyTTL, err)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return settingError(KeyLogLevel, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return settingError(KeyLogFormat, fmt.Errorf("unsupported log format %q", c.Log.Format))
	}

	switch c.Backend {
	case BackendREST:
		if err := c.REST().Validate(); err != nil {
			return settingError(KeyTrackingURI, err)
		}
		if err := c.Auth().Validate(); err != nil {
			return settingError(KeyOIDCIssuerURL, err)
		}
	case BackendPostgres:
		if err := c.Postgres().Validate(); err != nil {
			return settingError(KeyDatabaseURL, err)
		}
	case BackendSQLite:
		if _, err := c.SQLite(); err != nil {
			return settingError(KeyDatabaseURL, err)
		}
	default:
		return settingError(KeyBackend, fmt.Errorf("unsupported backend %q", c.Backend))
	}

	if err := c.ReportSettings().Validate(); err != nil {
		return settingError(KeyReportDestination, err)
	}
	return nil
}

func (c Config) Policy() prune.Policy {
	ttl := 0
	if c.TTLDays != nil {
		ttl = *c.TTLDays
	}
	return prune.Policy{TTLDays: ttl, ContinueOnError: c.ContinueOnError}
}

func (c Config) REST() rest.Config {
	return rest.Config{
		TrackingURI: c.Tracking.URI,
		Token:       c.Tracking.Token,
		Username:    c.Tracking.Username,
		Password:    c.Tracking.Password,
		InsecureTLS: c.Tracking.InsecureTLS,
		Timeout:     c.Tracking.Timeout,
		PageSize:    c.Tracking.PageSize,
	}
}

func (c Config) Auth() auth.Config {
	return auth.Config{
		IssuerURL:    c.OIDC.IssuerURL,
		ClientID:     c.OIDC.ClientID,
		ClientSecret: c.OIDC.ClientSecret,
		Scopes:       c.OIDC.Scopes,
	}
}

func (c Config) Postgres() postgres.Config {
	return postgres.DefaultConfig(c.Database.URL)
}

func (c Config) SQLite() (sqlite.Config, error) {
	return sqlite.ConfigFromURL(c.Database.URL)
}

// Dialect is the SQL dialect of a backend-store backend.
func (c Config) Dialect() (sqlstore.Dialect, error) {
	return sqlstore.ParseDialect(string(c.Backend))
}

func (c Config) ReportSettings() report.Config {
	return report.Config{
		Destination: report.Destination(c.Report.Destination),
		Path:        c.Report.Path,
		Prefix:      c.Report.Prefix,
		Minio: objectstore.Config{
			Endpoint:  c.Report.Minio.Endpoint,
			AccessKey: c.Report.Minio.AccessKey,
			SecretKey: c.Report.Minio.SecretKey,
			Region:    c.Report.Minio.Region,
			UseSSL:    c.Report.Minio.UseSSL,
			Bucket:    c.Report.Minio.Bucket,
		},
	}
}
