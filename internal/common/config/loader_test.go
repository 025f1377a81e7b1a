// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, 10, cfg.Camunda.MaxJobsActive)
	assert.Equal(t, 30000, cfg.Camunda.Timeout)
	assert.Equal(t, 30000, cfg.Camunda.RequestTimeout)

	assert.Equal(t, 25, cfg.Database.Postgres.MaxConnections)
	assert.Equal(t, 5, cfg.Database.Postgres.MaxIdle)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)

	assert.Equal(t, 5000, cfg.Supabase.AdminTimeout)

	assert.Equal(t, 10000, cfg.Webhooks.Timeout)
	assert.Equal(t, 5.0, cfg.Webhooks.RatePerSecond)
	assert.Equal(t, 10, cfg.Webhooks.Burst)
	assert.Equal(t, 3, cfg.Webhooks.BreakerMaxFailures)
	assert.Equal(t, 30000, cfg.Webhooks.BreakerTimeout)

	assert.Equal(t, 60000, cfg.Extraction.Timeout)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Extraction.Model)

	assert.Equal(t, 65, cfg.Scoring.SizeFitWeight)
	assert.Equal(t, 20, cfg.Scoring.DataQualityWeight)
	assert.Equal(t, 8, cfg.Scoring.MotivationWeight)
	assert.Equal(t, 7, cfg.Scoring.EngagementWeight)
	assert.Equal(t, 20, cfg.Scoring.ThesisBonusCap)
	assert.Equal(t, 10, cfg.Scoring.DataQualityBonusCap)
	assert.Equal(t, 25, cfg.Scoring.LearningPenaltyMax)
	assert.Equal(t, 0.20, cfg.Scoring.SizeTolerancePct)
	assert.Equal(t, 900, cfg.Scoring.CacheTTLSeconds)

	assert.Equal(t, "dealflow-workers", cfg.Tracing.ServiceName)
}

func TestApplyDefaults_PartialScoringWeightsKept(t *testing.T) {
	cfg := &Config{}
	cfg.Scoring.SizeFitWeight = 50
	applyDefaults(cfg)

	// A partially-set weight block is left alone for validation to reject,
	// rather than silently mixed with defaults.
	assert.Equal(t, 50, cfg.Scoring.SizeFitWeight)
	assert.Equal(t, 0, cfg.Scoring.DataQualityWeight)
}

func TestApplyDefaults_ElasticsearchURLFallback(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Elasticsearch.Addresses = []string{"http://es-1:9200", "http://es-2:9200"}
	applyDefaults(cfg)

	assert.Equal(t, "http://es-1:9200", cfg.Database.Elasticsearch.URL)
}

func TestApplyDefaults_WorkerEntries(t *testing.T) {
	cfg := &Config{
		Workers: map[string]WorkerConfig{
			"score-buyer-deal": {Enabled: true},
			"send-deal-alert":  {Enabled: false, Timeout: 60000},
		},
	}
	applyDefaults(cfg)

	sbd := cfg.Workers["score-buyer-deal"]
	assert.True(t, sbd.Enabled)
	assert.Equal(t, 5, sbd.MaxJobsActive)
	assert.Equal(t, 30000, sbd.Timeout)
	assert.Equal(t, 3, sbd.MaxRetries)

	sda := cfg.Workers["send-deal-alert"]
	assert.False(t, sda.Enabled)
	assert.Equal(t, 60000, sda.Timeout)
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validateConfig(validConfig()))
	})

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantText string
	}{
		{"missing broker", func(c *Config) { c.Camunda.BrokerAddress = "" }, "broker_address"},
		{"missing postgres host", func(c *Config) { c.Database.Postgres.Host = "" }, "postgres.host"},
		{"missing postgres database", func(c *Config) { c.Database.Postgres.Database = "" }, "postgres.database"},
		{"missing postgres user", func(c *Config) { c.Database.Postgres.User = "" }, "postgres.user"},
		{"missing elasticsearch", func(c *Config) { c.Database.Elasticsearch.URL = "" }, "elasticsearch"},
		{"missing redis", func(c *Config) { c.Database.Redis.Address = "" }, "redis.address"},
		{"weights off by one", func(c *Config) { c.Scoring.EngagementWeight = 6 }, "sum to 100"},
		{"relative webhook URL", func(c *Config) { c.Webhooks.BaseURL = "api.example.com/hooks" }, "base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := validateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}

	t.Run("absolute webhook URL accepted", func(t *testing.T) {
		cfg := validConfig()
		cfg.Webhooks.BaseURL = "https://api.example.com/hooks"
		assert.NoError(t, validateConfig(cfg))
	})
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LOADER_TEST_SECRET", "s3cret")

	v := viper.New()
	v.Set("database.postgres.password", "${LOADER_TEST_SECRET}")
	v.Set("database.postgres.user", "plain-user")
	v.Set("supabase.service_role_key", "${LOADER_TEST_UNSET}")

	expandEnvVars(v)

	assert.Equal(t, "s3cret", v.GetString("database.postgres.password"))
	assert.Equal(t, "plain-user", v.GetString("database.postgres.user"))
	// Unresolvable placeholders stay raw so validation can name the key.
	assert.Equal(t, "${LOADER_TEST_UNSET}", v.GetString("supabase.service_role_key"))
}

func TestOverrideEmptyConfig(t *testing.T) {
	t.Setenv("SUPABASE_PROJECT_URL", "https://env.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "role-key-from-env")
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:4566")
	t.Setenv("JAEGER_COLLECTOR_ENDPOINT", "http://localhost:14268/api/traces")

	cfg := &Config{}
	cfg.Supabase.ProjectURL = "https://configured.supabase.co"

	overrideEmptyConfig(cfg)

	assert.Equal(t, "role-key-from-env", cfg.Supabase.ServiceRoleKey)
	assert.Equal(t, "http://localhost:4566", cfg.Notifications.AWS.Endpoint)
	assert.Equal(t, "http://localhost:14268/api/traces", cfg.Tracing.CollectorEndpoint)
	assert.True(t, cfg.Tracing.Enabled)
	// Values already present win over the environment.
	assert.Equal(t, "https://configured.supabase.co", cfg.Supabase.ProjectURL)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{
		Workers: map[string]WorkerConfig{
			"match-deal-alerts": {Enabled: false, MaxJobsActive: 2, Timeout: 45000, MaxRetries: 1},
		},
	}

	wc := GetWorkerConfig(cfg, "match-deal-alerts")
	assert.False(t, wc.Enabled)
	assert.Equal(t, 2, wc.MaxJobsActive)

	fallback := GetWorkerConfig(cfg, "unknown-task")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 5, fallback.MaxJobsActive)
	assert.Equal(t, 30000, fallback.Timeout)
	assert.Equal(t, 3, fallback.MaxRetries)
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{
		Workers: map[string]WorkerConfig{
			"send-deal-alert": {Enabled: false},
		},
	}

	assert.False(t, IsWorkerEnabled(cfg, "send-deal-alert"))
	assert.True(t, IsWorkerEnabled(cfg, "score-buyer-deal"))
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("LOADER_TEST_DB_PASSWORD", "hunter2")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.test.yaml")
	content := `
camunda:
  broker_address: "localhost:26500"
database:
  postgres:
    host: "localhost"
    port: 5432
    database: "dealflow"
    user: "postgres"
    password: "${LOADER_TEST_DB_PASSWORD}"
  elasticsearch:
    url: "http://localhost:9200"
  redis:
    address: "localhost:6379"
workers:
  score-buyer-deal:
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, "hunter2", cfg.Database.Postgres.Password)
	assert.Equal(t, 25, cfg.Database.Postgres.MaxConnections)
	assert.Equal(t, 65, cfg.Scoring.SizeFitWeight)

	wc := GetWorkerConfig(cfg, "score-buyer-deal")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 30000, wc.Timeout)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.Camunda.BrokerAddress = "localhost:26500"
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Postgres.Database = "dealflow"
	cfg.Database.Postgres.User = "postgres"
	cfg.Database.Elasticsearch.URL = "http://localhost:9200"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Scoring.SizeFitWeight = 65
	cfg.Scoring.DataQualityWeight = 20
	cfg.Scoring.MotivationWeight = 8
	cfg.Scoring.EngagementWeight = 7
	return cfg
}
