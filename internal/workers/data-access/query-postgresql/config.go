// internal/workers/data-access/query-postgresql/config.go
package querypostgresql

import "time"

type Config struct {
	Timeout time.Duration
	// Queries slower than this are logged at warn level. Zero disables the check.
	SlowQueryMillis int64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		SlowQueryMillis: 500,
	}
}
