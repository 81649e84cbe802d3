package values

import "time"

// OlxValues carries the marketplace defaults applied when a product or a
// template does not specify its own value.
type OlxValues struct {
	DefaultCurrency string `yaml:"default-currency"`
	// RoundingPolicy selects how final_price is derived from price and margin.
	// "whole" is the current policy; "cents" is the historical 2-decimal one.
	RoundingPolicy string       `yaml:"rounding-policy"`
	Retry          RetryConfig  `yaml:"retry"`
	RateLimitRPS   float64      `yaml:"rate-limit-rps"`
	ImageFetch     ImageConfig  `yaml:"image-fetch"`
	Import         ImportConfig `yaml:"import"`
}

type RetryConfig struct {
	InitialDelay time.Duration `yaml:"initial-delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxAttempts  int           `yaml:"max-attempts"`
}

type ImageConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type ImportConfig struct {
	WorkerCount int `yaml:"worker-count"`
	// StaleAfter marks an import log as stuck when it has not reached a
	// terminal status within this duration since its last update.
	StaleAfter time.Duration `yaml:"stale-after"`
}

func DefaultOlxValues() OlxValues {
	return OlxValues{
		DefaultCurrency: "BAM",
		RoundingPolicy:  "whole",
		Retry: RetryConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxAttempts:  5,
		},
		RateLimitRPS: 3,
		ImageFetch:   ImageConfig{Timeout: 10 * time.Second},
		Import:       ImportConfig{WorkerCount: 4, StaleAfter: 30 * time.Minute},
	}
}
