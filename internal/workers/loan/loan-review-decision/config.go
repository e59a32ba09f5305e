// internal/workers/loan/loan-review-decision/config.go
package loanreviewdecision

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
