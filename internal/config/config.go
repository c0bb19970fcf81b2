// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the capsule matching service.
type Config struct {
	Port    int
	Version string

	ServiceAPIKey string

	OpenAI OpenAIConfig

	Pinecone PineconeConfig

	Database DatabaseConfig

	Slack SlackConfig

	Telemetry TelemetryConfig

	// VectorDimension is the dense vector width (D) every capsule uses.
	VectorDimension int

	LogLevel  string
	LogFormat string // "console" or "json"
}

// OpenAIConfig configures the classifier and embedding HTTP clients.
type OpenAIConfig struct {
	APIKey       string
	CapsuleModel string
	EmbedModel   string
}

// PineconeConfig configures the capsule store adapter's Pinecone driver.
type PineconeConfig struct {
	APIKey         string
	Index          string
	Host           string
	Env            string
	UsersNamespace string
	JobsNamespace  string
}

// DatabaseConfig configures the qualification store and audit sink.
type DatabaseConfig struct {
	URL string
}

// SlackConfig configures the alerting sink. Alerts are disabled when
// WebhookURL is empty.
type SlackConfig struct {
	WebhookURL string
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:          envInt("PORT", 8080),
		Version:       envStr("SERVICE_VERSION", "0.1.0"),
		ServiceAPIKey: envStr("SERVICE_API_KEY", ""),
		OpenAI: OpenAIConfig{
			APIKey:       envStr("OPENAI_API_KEY", ""),
			CapsuleModel: envStr("OPENAI_CAPSULE_MODEL", "gpt-4o-mini"),
			EmbedModel:   envStr("OPENAI_EMBED_MODEL", "text-embedding-3-large"),
		},
		Pinecone: PineconeConfig{
			APIKey:         envStr("PINECONE_API_KEY", ""),
			Index:          envStr("PINECONE_INDEX", ""),
			Host:           envStr("PINECONE_HOST", ""),
			Env:            envStr("PINECONE_ENV", ""),
			UsersNamespace: envStr("PINECONE_USERS_NAMESPACE", ""),
			JobsNamespace:  envStr("PINECONE_JOBS_NAMESPACE", ""),
		},
		Database: DatabaseConfig{
			URL: envStr("DATABASE_URL", ""),
		},
		Slack: SlackConfig{
			WebhookURL: envStr("SLACK_WEBHOOK_URL", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "capsule-match"),
		},
		VectorDimension: envInt("VECTOR_DIMENSION", 3072),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		LogFormat:       envStr("LOG_FORMAT", "console"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
