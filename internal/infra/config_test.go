package infra

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "TEST_MODE", "FALLBACK_ENABLED", "VISION_PROVIDER", "OPENAI_API_KEY",
		"GEMINI_API_KEY", "MUSIC_PROVIDER", "IMAGE_PROVIDERS", "EVENT_LOG_DRIVER", "DATABASE_URL",
		"POLL_INTERVAL_SECONDS", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
	if !cfg.FallbackEnabled {
		t.Fatalf("FallbackEnabled should default to true")
	}
	if cfg.VisionProvider != "openai" || cfg.MusicProvider != "udio" {
		t.Fatalf("unexpected providers: %q %q", cfg.VisionProvider, cfg.MusicProvider)
	}
	want := []string{"serpapi", "google", "scrape"}
	if len(cfg.ImageProviders) != len(want) {
		t.Fatalf("ImageProviders mismatch: %#v", cfg.ImageProviders)
	}
	for i := range want {
		if cfg.ImageProviders[i] != want[i] {
			t.Fatalf("ImageProviders[%d] = %q, want %q", i, cfg.ImageProviders[i], want[i])
		}
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval mismatch: %s", cfg.PollInterval)
	}
	if cfg.EventLogDriver != "sqlite" || cfg.EventLogPath == "" {
		t.Fatalf("unexpected event log settings: %q %q", cfg.EventLogDriver, cfg.EventLogPath)
	}
}

func TestLoadConfigTestModeForcesStandIns(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TEST_MODE", "true")
	t.Setenv("IMAGE_PROVIDERS", "serpapi")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.VisionProvider != "static" || cfg.MusicProvider != "static" {
		t.Fatalf("test mode did not force stand-ins: %q %q", cfg.VisionProvider, cfg.MusicProvider)
	}
	if len(cfg.ImageProviders) != 1 || cfg.ImageProviders[0] != "static" {
		t.Fatalf("ImageProviders mismatch: %#v", cfg.ImageProviders)
	}
}

func TestLoadConfigRequiresProviderKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when OPENAI_API_KEY is missing")
	}
}

func TestLoadConfigRejectsUnknownImageProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("IMAGE_PROVIDERS", "Google, bing")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown image provider")
	}
}

func TestLoadConfigPostgresNeedsDatabaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("EVENT_LOG_DRIVER", "postgres")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/omni")
	if _, err := LoadConfig(); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
}

func TestLoadConfigParsesListsAndBools(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FALLBACK_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.test , ,https://b.test")
	t.Setenv("IMAGE_PROVIDERS", "Midjourney,QWEN")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.FallbackEnabled {
		t.Fatalf("FallbackEnabled should be false")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.test" {
		t.Fatalf("CORSOrigins mismatch: %#v", cfg.CORSOrigins)
	}
	if cfg.ImageProviders[0] != "midjourney" || cfg.ImageProviders[1] != "qwen" {
		t.Fatalf("ImageProviders mismatch: %#v", cfg.ImageProviders)
	}
}
