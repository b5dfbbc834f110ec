// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Yomira API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Cryptographic keys for session and identity signing
	SessionSecret  string `env:"SESSION_SECRET,required"`
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// Object Storage (Cloudflare R2 / S3-compatible)
	S3Bucket   string `env:"S3_BUCKET"`
	S3Region   string `env:"S3_REGION"   envDefault:"auto"`
	S3Endpoint string `env:"S3_ENDPOINT"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// # Worker Pool
	WorkerCount      int           `env:"WORKER_COUNT"      envDefault:"4"`
	WorkerTimeout    time.Duration `env:"WORKER_TIMEOUT"    envDefault:"30s"`
	WorkerMaxRequest int           `env:"WORKER_MAX_REQUESTS" envDefault:"1000"`

	// # Parsing Queue & Progress Coordinator (C5)
	ParserMaxConcurrent int           `env:"PARSER_MAX_CONCURRENT" envDefault:"3"`
	ParserLeaseSeconds  time.Duration `env:"PARSER_LEASE_SECONDS"  envDefault:"30m"`
	ParserRetryAttempts int           `env:"PARSER_RETRY_ATTEMPTS" envDefault:"3"`

	// # Description Extractor (LLM) Adapter
	LLMModelID         string        `env:"LLM_MODEL_ID"          envDefault:"gemini-2.0-flash"`
	LLMEndpoint        string        `env:"LLM_ENDPOINT"          envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	LLMAPIKey          string        `env:"LLM_API_KEY"`
	LLMMaxChunkChars   int           `env:"LLM_MAX_CHUNK_CHARS"   envDefault:"8000"`
	LLMChunkOverlapPct int           `env:"LLM_CHUNK_OVERLAP_PCT" envDefault:"10"`
	LLMMinConfidence   float64       `env:"LLM_MIN_CONFIDENCE"    envDefault:"0.5"`
	LLMTimeout         time.Duration `env:"LLM_TIMEOUT_SECONDS"   envDefault:"20s"`

	// # Image Generator Adapter
	ImagenModel         string        `env:"IMAGEN_MODEL"           envDefault:"imagen-3.0"`
	ImagenEndpoint      string        `env:"IMAGEN_ENDPOINT"        envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	ImagenAPIKey        string        `env:"IMAGEN_API_KEY"`
	ImagenAspectRatio   string        `env:"IMAGEN_ASPECT_RATIO"    envDefault:"16:9"`
	ImagenSafetyLevel   string        `env:"IMAGEN_SAFETY_LEVEL"    envDefault:"block_medium_and_above"`
	ImagenTimeout       time.Duration `env:"IMAGEN_TIMEOUT_SECONDS" envDefault:"30s"`
	ImagenMaxConcurrent int           `env:"IMAGEN_MAX_CONCURRENT"  envDefault:"4"`

	// # Canary Controller (C4)
	CanaryDefaultStage int `env:"CANARY_DEFAULT_STAGE" envDefault:"4"`

	// # Cache Layer (C1)
	CacheMaxConnections int           `env:"CACHE_MAX_CONNECTIONS" envDefault:"50"`
	CacheDefaultTTL     time.Duration `env:"CACHE_DEFAULT_TTL"     envDefault:"1h"`

	// # Database Pool
	DBPoolSize     int           `env:"DB_POOL_SIZE"     envDefault:"25"`
	DBMaxOverflow  int           `env:"DB_MAX_OVERFLOW"  envDefault:"5"`
	DBPoolRecycle  time.Duration `env:"DB_POOL_RECYCLE"  envDefault:"60m"`
	DBPoolTimeout  time.Duration `env:"DB_POOL_TIMEOUT"  envDefault:"5s"`

	// # Upload limits
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	StorageRoot    string `env:"STORAGE_ROOT"     envDefault:"./storage"`

	// # Token Blacklist (C2) policy
	BlacklistFailClosed bool `env:"BLACKLIST_FAIL_CLOSED" envDefault:"false"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.IsProduction() {
		if err := cfg.rejectPlaceholderCredentials(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// placeholderTokens are values a developer might paste from a .env.example
// file and forget to replace. The bootstrap refuses to start in production
// with any of them still set.
var placeholderTokens = []string{"changeme", "replace-me", "placeholder", "example", "xxxxx"}

// rejectPlaceholderCredentials guards against starting production with
// example secrets left over from local scaffolding.
func (c *Config) rejectPlaceholderCredentials() error {
	candidates := map[string]string{
		"SESSION_SECRET": c.SessionSecret,
		"DATABASE_URL":   c.DatabaseURL,
		"REDIS_URL":      c.RedisURL,
	}
	for name, value := range candidates {
		lower := strings.ToLower(value)
		for _, token := range placeholderTokens {
			if strings.Contains(lower, token) {
				return fmt.Errorf("config: %s still contains a placeholder value; refusing to start in production", name)
			}
		}
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
