// Package config loads environment-driven configuration for the binaries.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is the process configuration, resolved once at startup.
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string

	Emulator EmulatorConfig
}

// EmulatorConfig tunes the local control plane.
type EmulatorConfig struct {
	// Addr is the listen address for the emulator's HTTP server.
	Addr string
	// FunctionName appears in the ARN handed to the polling runtime.
	FunctionName string
	// MemorySize is the memory limit advertised to the function, in MB.
	MemorySize int
	// Timeout bounds a single synchronous invocation.
	Timeout time.Duration
}

// Load reads .env files when running outside the managed platform, then
// resolves the configuration from the environment.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "product-api"),
		Environment: getEnv("ENVIRONMENT", "local"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Emulator: EmulatorConfig{
			Addr:         getEnv("EMULATOR_ADDR", ":8080"),
			FunctionName: getEnv("EMULATOR_FUNCTION_NAME", "product-api"),
			MemorySize:   getInt("EMULATOR_MEMORY_SIZE", 256),
			Timeout:      getDuration("EMULATOR_TIMEOUT", 30*time.Second),
		},
	}, nil
}

// ZerologLevel parses the configured log level, defaulting to info when the
// value is unknown.
func (c *Config) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsLambda reports whether the process runs on the managed platform, where
// configuration comes from the environment alone.
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" || os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
}

// loadEnvFiles loads .env then overlays .env.local. Both are optional and
// skipped entirely on the managed platform.
func loadEnvFiles() error {
	if IsLambda() {
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("load .env.local: %w", err)
		}
	}
	return nil
}
