// internal/workers/loan/loan-search/config.go
package loansearch

import "time"

type Config struct {
	Timeout      time.Duration
	CacheTTL     time.Duration
	DefaultLimit int
	MaxLimit     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		CacheTTL:     60 * time.Second,
		DefaultLimit: 20,
		MaxLimit:     100,
	}
}
