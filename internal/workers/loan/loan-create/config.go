// internal/workers/loan/loan-create/config.go
package loancreate

import "time"

type Config struct {
	Timeout time.Duration
	// MaxNumberRetries bounds application-number regeneration on a
	// uniqueness conflict.
	MaxNumberRetries int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          10 * time.Second,
		MaxNumberRetries: 5,
	}
}
