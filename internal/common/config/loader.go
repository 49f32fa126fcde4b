// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like CRM_CLIENT_ID
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if not present.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sync-manager"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = ":9100"
	}
	if cfg.CRM.APIVersion == "" {
		cfg.CRM.APIVersion = "v58.0"
	}
	if cfg.CRM.AssertionTTL == 0 {
		cfg.CRM.AssertionTTL = 3 * time.Minute
	}
	if cfg.CRM.RequestTimeout == 0 {
		cfg.CRM.RequestTimeout = 30 * time.Second
	}
	if cfg.CRM.RetryInterval == 0 {
		cfg.CRM.RetryInterval = 2 * time.Second
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Sync.StaleAfter == 0 {
		cfg.Sync.StaleAfter = 3 * time.Minute
	}
	if cfg.Sync.JobQueryChunk == 0 {
		cfg.Sync.JobQueryChunk = 100
	}
	if cfg.Sync.PullChunk == 0 {
		cfg.Sync.PullChunk = 10
	}
	if cfg.Sync.ProgressEvery == 0 {
		cfg.Sync.ProgressEvery = 5
	}
	if cfg.Sync.PublishCutover == "" {
		cfg.Sync.PublishCutover = "2019-01-01"
	}
	if cfg.Sync.RefreshInterval == 0 {
		cfg.Sync.RefreshInterval = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.CRM.BaseURL == "" {
		return fmt.Errorf("crm.base_url is required")
	}
	if cfg.CRM.TokenURL == "" {
		return fmt.Errorf("crm.token_url is required")
	}
	if cfg.CRM.ClientID == "" {
		return fmt.Errorf("crm.client_id is required")
	}
	if cfg.CRM.Username == "" {
		return fmt.Errorf("crm.username is required")
	}
	if cfg.CRM.PrivateKeyPEM == "" {
		return fmt.Errorf("crm.private_key_pem is required")
	}
	if _, err := time.Parse("2006-01-02", cfg.Sync.PublishCutover); err != nil {
		return fmt.Errorf("sync.publish_cutover must be YYYY-MM-DD: %w", err)
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	return nil
}
