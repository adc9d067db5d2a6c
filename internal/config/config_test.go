package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Analysis.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.Analysis.MaxUploadBytes, DefaultMaxUploadBytes)
	}
	if cfg.Quota.PerHour != DefaultQuotaPerHour {
		t.Errorf("Quota.PerHour = %d, want %d", cfg.Quota.PerHour, DefaultQuotaPerHour)
	}
	if cfg.Capture.MaxDurationSeconds != DefaultMaxDuration {
		t.Errorf("MaxDurationSeconds = %d, want %d", cfg.Capture.MaxDurationSeconds, DefaultMaxDuration)
	}
	if cfg.Analysis.TranscribeModel != "whisper-1" {
		t.Errorf("TranscribeModel = %q, want whisper-1", cfg.Analysis.TranscribeModel)
	}
	if cfg.Analysis.ClassifyModel != "gpt-4o-mini" {
		t.Errorf("ClassifyModel = %q, want gpt-4o-mini", cfg.Analysis.ClassifyModel)
	}
	if cfg.Analysis.Temperature != 0.3 || cfg.Analysis.MaxCompletionTokens != 1000 {
		t.Errorf("classify params = %v/%d, want 0.3/1000",
			cfg.Analysis.Temperature, cfg.Analysis.MaxCompletionTokens)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("QUOTA_PER_HOUR", "5")
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("CAPTURE_FORMATS", "audio/wav, audio/flac")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:9090" {
		t.Errorf("Addr = %q, want 0.0.0.0:9090", cfg.Addr())
	}
	if cfg.Quota.PerHour != 5 {
		t.Errorf("Quota.PerHour = %d, want 5", cfg.Quota.PerHour)
	}
	if cfg.Analysis.MaxUploadBytes != 10*1024*1024 {
		t.Errorf("MaxUploadBytes = %d, want 10MB", cfg.Analysis.MaxUploadBytes)
	}
	want := []string{"audio/wav", "audio/flac"}
	if len(cfg.Capture.PreferredFormats) != 2 ||
		cfg.Capture.PreferredFormats[0] != want[0] || cfg.Capture.PreferredFormats[1] != want[1] {
		t.Errorf("PreferredFormats = %v, want %v", cfg.Capture.PreferredFormats, want)
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted a non-numeric SERVER_PORT")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty config passed validation")
	}

	cfg.Database.URL = "postgres://localhost/blablabla"
	cfg.Auth.JWTSecret = "secret"
	cfg.Analysis.OpenAIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete config failed validation: %v", err)
	}
}
