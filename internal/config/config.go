// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer sources.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SubmissionQueueSize bounds the in-memory submission queue.
	SubmissionQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of assessment workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the submission deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// PostgresDSN selects the durable store. Empty means in-memory.
	PostgresDSN string `koanf:"postgres_dsn"`

	// RedisAddr enables the analytics snapshot cache. Empty disables it.
	RedisAddr string `koanf:"redis_addr"`

	// CacheTTLSeconds bounds the lifetime of cached analytics summaries.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// Gamification toggles critical hits and streak bonuses on the live
	// assessment path. Regeneration always runs without them.
	Gamification bool `koanf:"gamification"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		SubmissionQueueSize: 100_000,
		WorkerCount:         runtime.NumCPU() * 10,
		DedupeSize:          500_000,
		MaxLeaderboardLimit: 100,
		PostgresDSN:         "",
		RedisAddr:           "",
		CacheTTLSeconds:     300,
		Gamification:        true,
	}
}
