package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string `validate:"required"`
	Port             string `validate:"required,numeric"`
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int      `validate:"gte=0"`
	CORSOrigins      []string `validate:"dive,required"`
	MaxUploadMB      int      `validate:"gt=0"`

	OutputDir        string `validate:"required"`
	TestMode         bool
	FallbackEnabled  bool
	DeferMusic       bool
	MusicTaskTimeout time.Duration

	VisionProvider string `validate:"oneof=openai gemini static"`
	OpenAIAPIKey   string `validate:"required_if=VisionProvider openai"`
	OpenAIModel    string
	OpenAIBaseURL  string `validate:"omitempty,url"`
	OpenAIOrg      string
	GeminiAPIKey   string `validate:"required_if=VisionProvider gemini"`
	GeminiModel    string

	MusicProvider   string `validate:"oneof=udio diffrhythm static"`
	PiAPIKey        string
	PiAPIBaseURL    string `validate:"omitempty,url"`
	DiffRhythmURL   string `validate:"omitempty,url"`
	DiffRhythmToken string
	PollMaxAttempts int `validate:"gte=0"`
	PollInterval    time.Duration

	ImageProviders   []string `validate:"dive,oneof=serpapi google scrape midjourney qwen static"`
	SerpAPIKey       string
	GoogleCSEKey     string
	GoogleCSECX      string
	DashScopeAPIKey  string
	DashScopeBaseURL string `validate:"omitempty,url"`
	QwenModel        string
	ImageSuffix      string
	MaxEntities      int `validate:"gte=0"`
	ImageConcurrency int `validate:"gte=0"`

	MusicAIAPIKey   string
	MusicAIBaseURL  string `validate:"omitempty,url"`
	MusicAIWorkflow string

	EventLogDriver string `validate:"oneof=sqlite postgres none"`
	EventLogPath   string `validate:"required_if=EventLogDriver sqlite"`
	DatabaseURL    string `validate:"required_if=EventLogDriver postgres"`
	DBMaxConns     int    `validate:"gte=1"`
	LogDownloadKey string
	GeoIPDBPath    string
}

// LoadConfig loads .env files when present, reads configuration from
// environment variables and validates the result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8000"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 900)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MaxUploadMB:      getEnvInt("MAX_UPLOAD_MB", 20),

		OutputDir:        getEnv("OUTPUT_DIR", "output"),
		TestMode:         getEnvBool("TEST_MODE", false),
		FallbackEnabled:  getEnvBool("FALLBACK_ENABLED", true),
		DeferMusic:       getEnvBool("DEFER_MUSIC", true),
		MusicTaskTimeout: time.Second * time.Duration(getEnvInt("MUSIC_TASK_TIMEOUT_SECONDS", 900)),

		VisionProvider: strings.ToLower(getEnv("VISION_PROVIDER", "openai")),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:      os.Getenv("OPENAI_ORG"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		MusicProvider:   strings.ToLower(getEnv("MUSIC_PROVIDER", "udio")),
		PiAPIKey:        os.Getenv("PIAPI_API_KEY"),
		PiAPIBaseURL:    getEnv("PIAPI_BASE_URL", "https://api.piapi.ai"),
		DiffRhythmURL:   os.Getenv("DIFFRHYTHM_URL"),
		DiffRhythmToken: os.Getenv("DIFFRHYTHM_TOKEN"),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 75),
		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),

		ImageProviders:   lowerAll(getEnvList("IMAGE_PROVIDERS", []string{"serpapi", "google", "scrape"})),
		SerpAPIKey:       os.Getenv("SERPAPI_API_KEY"),
		GoogleCSEKey:     os.Getenv("GOOGLE_CSE_API_KEY"),
		GoogleCSECX:      os.Getenv("GOOGLE_CSE_CX"),
		DashScopeAPIKey:  os.Getenv("DASHSCOPE_API_KEY"),
		DashScopeBaseURL: getEnv("DASHSCOPE_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		QwenModel:        getEnv("QWEN_IMAGE_MODEL", "qwen-image"),
		ImageSuffix:      getEnv("IMAGE_QUERY_SUFFIX", " abstract art"),
		MaxEntities:      getEnvInt("MAX_ENTITIES", 8),
		ImageConcurrency: getEnvInt("IMAGE_CONCURRENCY", 4),

		MusicAIAPIKey:   os.Getenv("MUSICAI_API_KEY"),
		MusicAIBaseURL:  getEnv("MUSICAI_BASE_URL", "https://api.music.ai/api"),
		MusicAIWorkflow: getEnv("MUSICAI_WORKFLOW", "chords"),

		EventLogDriver: strings.ToLower(getEnv("EVENT_LOG_DRIVER", "sqlite")),
		EventLogPath:   getEnv("EVENT_LOG_PATH", "data/omni_logs.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxConns:     getEnvInt("DB_MAX_CONNS", 4),
		LogDownloadKey: os.Getenv("LOG_DOWNLOAD_KEY"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
	}

	if cfg.TestMode {
		cfg.VisionProvider = "static"
		cfg.MusicProvider = "static"
		cfg.ImageProviders = []string{"static"}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
