package api

import "time"

// Config holds server configuration.
type Config struct {
	Port              int
	AllowedOrigins    []string      // CORS and WebSocket allowed origins (empty = allow all)
	RateLimitRequests int           // Requests per minute (0 = disabled)
	RateLimitBurst    int           // Burst size
	CacheTTL          time.Duration // Lifetime of cached search responses
	CacheSize         int           // Maximum cached search responses
	MaxNoteLength     int           // Maximum note length in runes
	MaxMessageSize    int64         // Maximum WebSocket message size in bytes
	MaxMessageRate    int           // WebSocket messages per second per client
	Version           string
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		CacheTTL:       5 * time.Minute,
		CacheSize:      512,
		MaxNoteLength:  10000,
		MaxMessageSize: 4096,
		MaxMessageRate: 10,
		Version:        "dev",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.MaxNoteLength <= 0 {
		c.MaxNoteLength = d.MaxNoteLength
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.MaxMessageRate <= 0 {
		c.MaxMessageRate = d.MaxMessageRate
	}
	if c.RateLimitRequests > 0 && c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 10
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	return c
}
