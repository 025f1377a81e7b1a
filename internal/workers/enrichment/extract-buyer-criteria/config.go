// internal/workers/enrichment/extract-buyer-criteria/config.go
package extractbuyercriteria

import "time"

type Config struct {
	APIBaseURL  string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Model:       "openai/gpt-4o-mini",
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		MaxTokens:   4000,
		Temperature: 0.1,
	}
}
