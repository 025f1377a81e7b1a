// internal/workers/alerts/match-deal-alerts/config.go
package matchdealalerts

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 20 * time.Second,
	}
}
