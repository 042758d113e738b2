package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// RateLimitConfig tunes the Redis token-bucket limiter that sits in front of
// the credential endpoints. Keying defaults to ip+route so one client
// hammering sign-in does not starve others.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"30"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
}

// LoadRateLimitConfig parses the rate limiter settings and clamps them to
// sane minimums.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{}
	if err := env.Parse(&cfg); err != nil {
		return RateLimitConfig{Enabled: false}
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}
