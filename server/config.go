package server

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Required environment variables. Startup fails when any is missing.
const (
	EnvBucketName = "BUCKET_NAME"
	EnvBlobName   = "BLOB_NAME"
	EnvProjectID  = "PROJECT_ID"
	EnvLocation   = "LOCATION"
	EnvCacheName  = "CACHE_NAME"
)

// Config is the service configuration, sourced from the environment.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// Source document location in object storage, read only at cache creation
	Bucket string
	Blob   string

	// Model provider project and region
	ProjectID string
	Location  string

	// Display name used to find or create the context cache at startup
	CacheName string
	CacheTTL  time.Duration

	// Model used for completions and the cache
	ModelName string

	// Optional instruction overrides, loaded from files when set
	SystemInstructions string
	PromptInstructions string

	// Run the plain-text cleanup pass on answers
	Polish bool
}

// FromEnv builds a Config from environment variables. Every required
// variable must be present; optional variables fall back to defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr: ":" + envOrDefault("PORT", "8080"),
		Bucket:     os.Getenv(EnvBucketName),
		Blob:       os.Getenv(EnvBlobName),
		ProjectID:  os.Getenv(EnvProjectID),
		Location:   os.Getenv(EnvLocation),
		CacheName:  os.Getenv(EnvCacheName),
		ModelName:  os.Getenv("MODEL_NAME"),
	}

	for _, required := range []struct {
		name, value string
	}{
		{EnvBucketName, cfg.Bucket},
		{EnvBlobName, cfg.Blob},
		{EnvProjectID, cfg.ProjectID},
		{EnvLocation, cfg.Location},
		{EnvCacheName, cfg.CacheName},
	} {
		if required.value == "" {
			return Config{}, fmt.Errorf("missing required environment variable: %s", required.name)
		}
	}

	if ttl := os.Getenv("CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CACHE_TTL %q: %w", ttl, err)
		}
		cfg.CacheTTL = d
	}

	polish := true
	if v := os.Getenv("POLISH_ANSWERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POLISH_ANSWERS %q: %w", v, err)
		}
		polish = b
	}
	cfg.Polish = polish

	var err error
	if cfg.SystemInstructions, err = readOptionalFile("SYSTEM_INSTRUCTIONS_FILE"); err != nil {
		return Config{}, err
	}
	if cfg.PromptInstructions, err = readOptionalFile("PROMPT_FILE"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// readOptionalFile reads the file named by the env var, or returns empty when
// the var is unset. A set-but-unreadable file is a configuration error.
func readOptionalFile(envName string) (string, error) {
	path := os.Getenv(envName)
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s %q: %w", envName, path, err)
	}
	return string(data), nil
}
