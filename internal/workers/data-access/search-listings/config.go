// internal/workers/data-access/search-listings/config.go
package searchlistings

import "time"

type Config struct {
	Timeout time.Duration
	Index   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Index:   "deal-listings",
	}
}
