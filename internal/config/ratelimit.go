package config

import "time"

// RateLimitConfig drives the token-bucket limiter.  Redis backs the bucket
// when available; otherwise an in-process limiter with the same capacity
// and refill rate is used.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip_user_route"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG" envDefault:"false"`
	// Login throttles POST /v1/auth/login per client IP.
	LoginCapacity int           `env:"LOGIN_RATE_LIMIT_CAPACITY" envDefault:"10"`
	LoginEvery    time.Duration `env:"LOGIN_RATE_LIMIT_EVERY" envDefault:"6s"`
}

func (c *RateLimitConfig) normalize() {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	minTTL := 5 * c.RefillInterval
	if c.TTL < minTTL {
		c.TTL = minTTL
	}
	if c.LoginCapacity < 1 {
		c.LoginCapacity = 1
	}
	if c.LoginEvery <= 0 {
		c.LoginEvery = 6 * time.Second
	}
}

// Login returns the limiter settings used for the login endpoint.
func (c RateLimitConfig) Login() RateLimitConfig {
	l := c
	l.Capacity = c.LoginCapacity
	l.RefillTokens = 1
	l.RefillInterval = c.LoginEvery
	l.KeyStrategy = "ip_route"
	l.Prefix = c.Prefix + ":login"
	if minTTL := 5 * l.RefillInterval; l.TTL < minTTL {
		l.TTL = minTTL
	}
	return l
}
