// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dealflow-workers/internal/common/validation"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config, discoverable from the module root so the tools under
	// cmd/tools find it regardless of invocation depth.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	if rootDir := findProjectRoot(); rootDir != "" {
		viper.AddConfigPath(filepath.Join(rootDir, "configs"))
	}

	// Enable ENV override like SUPABASE_SERVICE_ROLE_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1️⃣ LOAD BASE CONFIG
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2️⃣ MERGE ENV-SPECIFIC CONFIG (config.development, config.staging, ...)
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // ignore error if not found

	// 3️⃣ EXPAND ${VAR} PLACEHOLDERS
	expandEnvVars(viper.GetViper())

	// 4️⃣ Unmarshal final config
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	// 5️⃣ DIRECT OVERRIDE IF STILL EMPTY
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the module root, so
// workers and tests resolve the same file regardless of invocation depth.
func loadEnvFile() {
	paths := []string{".env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		paths = append(paths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("✅ Loaded .env from: %s\n", path)
				return
			}
		}
	}

	fmt.Printf("⚠️  .env file not found, using system environment variables\n")
}

// findProjectRoot walks up from the working directory until it sees go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars rewrites ${VAR} placeholders in string values before unmarshal.
// A placeholder that resolves to nothing keeps its raw value, so validation can
// report the key instead of silently dropping it.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "${") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills gaps from well-known environment variables after
// unmarshal, covering values the YAML layer never mentioned.
func overrideEmptyConfig(cfg *Config) {
	// Supabase
	if cfg.Supabase.ProjectURL == "" {
		if val := os.Getenv("SUPABASE_PROJECT_URL"); val != "" {
			cfg.Supabase.ProjectURL = val
		}
	}
	if cfg.Supabase.ServiceRoleKey == "" {
		if val := os.Getenv("SUPABASE_SERVICE_ROLE_KEY"); val != "" {
			cfg.Supabase.ServiceRoleKey = val
		}
	}

	// Webhooks
	if cfg.Webhooks.BaseURL == "" {
		if val := os.Getenv("WEBHOOK_BASE_URL"); val != "" {
			cfg.Webhooks.BaseURL = val
		}
	}

	// Extraction API
	if cfg.Extraction.APIKey == "" {
		if val := os.Getenv("EXTRACTION_API_KEY"); val != "" {
			cfg.Extraction.APIKey = val
		}
	}
	if cfg.Extraction.BaseURL == "" {
		if val := os.Getenv("EXTRACTION_BASE_URL"); val != "" {
			cfg.Extraction.BaseURL = val
		}
	}

	// AWS
	if cfg.Notifications.AWS.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Notifications.AWS.Region = val
		}
	}
	if cfg.Notifications.AWS.Endpoint == "" {
		if val := os.Getenv("AWS_ENDPOINT_URL"); val != "" {
			cfg.Notifications.AWS.Endpoint = val
		}
	}

	// Tracing
	if cfg.Tracing.CollectorEndpoint == "" {
		if val := os.Getenv("JAEGER_COLLECTOR_ENDPOINT"); val != "" {
			cfg.Tracing.CollectorEndpoint = val
			cfg.Tracing.Enabled = true
		}
	}

	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path, bypassing
// discovery. The backfill runner uses this to target other environments.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Elasticsearch URL fallback
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Per-worker defaults
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	// Supabase defaults
	if cfg.Supabase.AdminTimeout == 0 {
		cfg.Supabase.AdminTimeout = 5000
	}

	// Webhook defaults
	if cfg.Webhooks.Timeout == 0 {
		cfg.Webhooks.Timeout = 10000
	}
	if cfg.Webhooks.RatePerSecond == 0 {
		cfg.Webhooks.RatePerSecond = 5
	}
	if cfg.Webhooks.Burst == 0 {
		cfg.Webhooks.Burst = 10
	}
	if cfg.Webhooks.BreakerMaxFailures == 0 {
		cfg.Webhooks.BreakerMaxFailures = 3
	}
	if cfg.Webhooks.BreakerTimeout == 0 {
		cfg.Webhooks.BreakerTimeout = 30000
	}

	// Extraction API defaults
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 60000
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = "openai/gpt-4o-mini"
	}

	// Scoring fallback defaults (overridden by active scoring_weight_configs row)
	if cfg.Scoring.SizeFitWeight == 0 && cfg.Scoring.DataQualityWeight == 0 &&
		cfg.Scoring.MotivationWeight == 0 && cfg.Scoring.EngagementWeight == 0 {
		cfg.Scoring.SizeFitWeight = 65
		cfg.Scoring.DataQualityWeight = 20
		cfg.Scoring.MotivationWeight = 8
		cfg.Scoring.EngagementWeight = 7
	}
	if cfg.Scoring.ThesisBonusCap == 0 {
		cfg.Scoring.ThesisBonusCap = 20
	}
	if cfg.Scoring.DataQualityBonusCap == 0 {
		cfg.Scoring.DataQualityBonusCap = 10
	}
	if cfg.Scoring.LearningPenaltyMax == 0 {
		cfg.Scoring.LearningPenaltyMax = 25
	}
	if cfg.Scoring.SizeTolerancePct == 0 {
		cfg.Scoring.SizeTolerancePct = 0.20
	}
	if cfg.Scoring.CacheTTLSeconds == 0 {
		cfg.Scoring.CacheTTLSeconds = 900
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "dealflow-workers"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	weightSum := cfg.Scoring.SizeFitWeight + cfg.Scoring.DataQualityWeight +
		cfg.Scoring.MotivationWeight + cfg.Scoring.EngagementWeight
	if weightSum != 100 {
		return fmt.Errorf("scoring weights must sum to 100, got %d", weightSum)
	}

	if cfg.Webhooks.BaseURL != "" && !validation.ValidateURL(cfg.Webhooks.BaseURL) {
		return fmt.Errorf("webhooks.base_url must be an absolute http(s) URL, got %q", cfg.Webhooks.BaseURL)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	// Return default worker config if not found
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
