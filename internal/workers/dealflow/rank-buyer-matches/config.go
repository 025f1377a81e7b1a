// internal/workers/dealflow/rank-buyer-matches/config.go
package rankbuyermatches

import "time"

type Config struct {
	DefaultLimit int
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DefaultLimit: 10,
		Timeout:      15 * time.Second,
	}
}
