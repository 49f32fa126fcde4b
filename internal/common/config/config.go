// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	CRM      CRMConfig      `mapstructure:"crm"`
	Database DatabaseConfig `mapstructure:"database"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// CRMConfig holds connection settings for the external CRM.
type CRMConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIVersion string `mapstructure:"api_version"`
	TokenURL   string `mapstructure:"token_url"`

	// JWT-bearer grant credentials.
	ClientID      string `mapstructure:"client_id"`
	Username      string `mapstructure:"username"`
	PrivateKeyPEM string `mapstructure:"private_key_pem"`

	AssertionTTL   time.Duration `mapstructure:"assertion_ttl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
}

// APIPath returns the versioned base path for data API calls.
func (c CRMConfig) APIPath() string {
	return fmt.Sprintf("%s/services/data/%s", c.BaseURL, c.APIVersion)
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SyncConfig holds the tunables of the synchronization workflows.
type SyncConfig struct {
	// StaleAfter is the cache freshness threshold; jobs older than this are
	// re-fetched before dependent workflows use them. Configurable because
	// the 3 minute default has no documented rationale.
	StaleAfter time.Duration `mapstructure:"stale_after"`

	// JobQueryChunk bounds the number of job ids per remote query.
	JobQueryChunk int `mapstructure:"job_query_chunk"`

	// PullChunk bounds the number of job ids per inbound opportunity pull.
	PullChunk int `mapstructure:"pull_chunk"`

	// ProgressEvery controls how often bulk operations log progress, in chunks.
	ProgressEvery int `mapstructure:"progress_every"`

	// PublishCutover is the historical date before which remote job creation
	// dates backfill the published date (records predate the publish feature).
	PublishCutover string `mapstructure:"publish_cutover"` // YYYY-MM-DD

	// RefreshInterval is the period of the background bulk refresh loop.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// AlertsConfig holds settings for operator alerts and stage-change notes.
type AlertsConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"ses"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
