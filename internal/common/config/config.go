// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Supabase      SupabaseConfig          `mapstructure:"supabase"`
	Webhooks      WebhookConfig           `mapstructure:"webhooks"`
	Extraction    ExtractionConfig        `mapstructure:"extraction"`
	Scoring       ScoringConfig           `mapstructure:"scoring"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Tracing       TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Specific Configuration Sections ---

// SupabaseConfig holds settings for the Supabase project this service reads
// from. The service-role key is used for the GoTrue admin API and webhook
// bearer tokens; it must never reach logs.
type SupabaseConfig struct {
	ProjectURL     string `mapstructure:"project_url"`
	ServiceRoleKey string `mapstructure:"service_role_key"`
	AdminTimeout   int    `mapstructure:"admin_timeout"` // milliseconds
}

// WebhookConfig holds settings for edge-function webhook dispatch.
type WebhookConfig struct {
	BaseURL            string            `mapstructure:"base_url"`
	Events             map[string]string `mapstructure:"events"` // event name -> path
	Timeout            int               `mapstructure:"timeout"` // milliseconds
	RatePerSecond      float64           `mapstructure:"rate_per_second"`
	Burst              int               `mapstructure:"burst"`
	BreakerMaxFailures int               `mapstructure:"breaker_max_failures"`
	BreakerTimeout     int               `mapstructure:"breaker_timeout"` // milliseconds
}

// ExtractionConfig holds settings for the external criteria-extraction API.
type ExtractionConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// ScoringConfig holds the fallback weight set used when no active
// scoring_weight_configs row exists, plus cache behavior.
type ScoringConfig struct {
	SizeFitWeight       int     `mapstructure:"size_fit_weight"`
	DataQualityWeight   int     `mapstructure:"data_quality_weight"`
	MotivationWeight    int     `mapstructure:"motivation_weight"`
	EngagementWeight    int     `mapstructure:"engagement_weight"`
	ThesisBonusCap      int     `mapstructure:"thesis_bonus_cap"`
	DataQualityBonusCap int     `mapstructure:"data_quality_bonus_cap"`
	LearningPenaltyMax  int     `mapstructure:"learning_penalty_max"`
	SizeTolerancePct    float64 `mapstructure:"size_tolerance_pct"`
	CacheTTLSeconds     int     `mapstructure:"cache_ttl_seconds"`
}

// NotificationConfig holds settings for the send-deal-alert worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
		// Endpoint overrides the AWS endpoint, for local stacks. Empty in production.
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig controls span export. Tracing is off unless an endpoint is set.
type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
	ServiceName       string `mapstructure:"service_name"`
}
