package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Analysis AnalysisConfig
	Quota    QuotaConfig
	Storage  StorageConfig
	Capture  CaptureConfig
	Client   ClientConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

// AnalysisConfig configures the two model calls made by the proxy.
type AnalysisConfig struct {
	OpenAIKey           string
	AnthropicKey        string
	TranscribeModel     string
	ClassifyProvider    string
	ClassifyModel       string
	MaxUploadBytes      int64
	Temperature         float64
	MaxCompletionTokens int
}

type QuotaConfig struct {
	PerHour int
}

type StorageConfig struct {
	SupabaseURL    string
	SupabaseKey    string
	Bucket         string
	RetentionHours int
}

// CaptureConfig governs the client-side recorder.
type CaptureConfig struct {
	MaxDurationSeconds int
	PreferredFormats   []string
	SampleRate         int
}

// ClientConfig points the capture CLI at the proxy.
type ClientConfig struct {
	ProxyURL  string
	AuthToken string
}

const (
	DefaultMaxUploadBytes = 25 * 1024 * 1024
	DefaultQuotaPerHour   = 10
	DefaultMaxDuration    = 120
)

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	quotaPerHour, err := getEnvInt("QUOTA_PER_HOUR", DefaultQuotaPerHour)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTA_PER_HOUR: %w", err)
	}

	maxUploadMB, err := getEnvInt("MAX_UPLOAD_MB", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}

	maxDuration, err := getEnvInt("CAPTURE_MAX_SECONDS", DefaultMaxDuration)
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTURE_MAX_SECONDS: %w", err)
	}

	sampleRate, err := getEnvInt("CAPTURE_SAMPLE_RATE", 16000)
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTURE_SAMPLE_RATE: %w", err)
	}

	retentionHours, err := getEnvInt("AUDIO_RETENTION_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_RETENTION_HOURS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Analysis: AnalysisConfig{
			OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:        getEnv("ANTHROPIC_API_KEY", ""),
			TranscribeModel:     getEnv("TRANSCRIBE_MODEL", "whisper-1"),
			ClassifyProvider:    getEnv("CLASSIFY_PROVIDER", "openai"),
			ClassifyModel:       getEnv("CLASSIFY_MODEL", "gpt-4o-mini"),
			MaxUploadBytes:      int64(maxUploadMB) * 1024 * 1024,
			Temperature:         0.3,
			MaxCompletionTokens: 1000,
		},
		Quota: QuotaConfig{
			PerHour: quotaPerHour,
		},
		Storage: StorageConfig{
			SupabaseURL:    getEnv("SUPABASE_URL", ""),
			SupabaseKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:         getEnv("STORAGE_BUCKET", "recordings"),
			RetentionHours: retentionHours,
		},
		Capture: CaptureConfig{
			MaxDurationSeconds: maxDuration,
			PreferredFormats:   splitList(getEnv("CAPTURE_FORMATS", "audio/flac,audio/wav")),
			SampleRate:         sampleRate,
		},
		Client: ClientConfig{
			ProxyURL:  getEnv("PROXY_URL", "http://localhost:8080"),
			AuthToken: getEnv("PROXY_TOKEN", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Analysis.OpenAIKey == "" && c.Analysis.AnthropicKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
