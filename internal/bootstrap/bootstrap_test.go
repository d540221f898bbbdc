package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniwizz/internal/infra"
)

func testConfig(t *testing.T) *infra.Config {
	t.Helper()
	dir := t.TempDir()
	return &infra.Config{
		AppEnv:           "test",
		OutputDir:        filepath.Join(dir, "output"),
		TestMode:         true,
		FallbackEnabled:  true,
		MusicTaskTimeout: time.Minute,
		VisionProvider:   "static",
		MusicProvider:    "static",
		ImageProviders:   []string{"static"},
		EventLogDriver:   "sqlite",
		EventLogPath:     filepath.Join(dir, "data", "omni_logs.db"),
	}
}

func TestBuildTestMode(t *testing.T) {
	cfg := testConfig(t)
	s, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.Pipeline)
	require.NotNil(t, s.Events)
	assert.Nil(t, s.GeoIP)
	assert.Equal(t, cfg.EventLogPath, s.LogDBPath)
	assert.FileExists(t, cfg.EventLogPath)
	assert.Equal(t, cfg.OutputDir, s.Runs.BasePath())
}

func TestBuildWithoutEventLog(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventLogDriver = "none"
	s, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.Events)
	assert.Empty(t, s.LogDBPath)
}

func TestNewImagesSkipsSourcesWithoutCredentials(t *testing.T) {
	cfg := testConfig(t)
	logger := infra.NewLogger("test")

	cfg.ImageProviders = []string{"serpapi", "google", "midjourney", "qwen"}
	_, err := NewImages(context.Background(), cfg, &logger)
	assert.Error(t, err)

	cfg.ImageProviders = []string{"serpapi", "scrape", "static"}
	src, err := NewImages(context.Background(), cfg, &logger)
	require.NoError(t, err)
	assert.Equal(t, "chain(scrape,static)", src.Name())

	cfg.ImageProviders = []string{"static"}
	src, err = NewImages(context.Background(), cfg, &logger)
	require.NoError(t, err)
	assert.Equal(t, "static", src.Name())
}

func TestNewVisionAndMusicRequireKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.VisionProvider = "openai"
	_, _, err := NewVision(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg.MusicProvider = "udio"
	_, err = NewMusic(cfg, nil)
	assert.Error(t, err)

	cfg.MusicProvider = "diffrhythm"
	_, err = NewMusic(cfg, nil)
	assert.Error(t, err)
}

func TestNewChords(t *testing.T) {
	cfg := testConfig(t)
	tr, err := NewChords(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, tr)

	cfg.TestMode = false
	tr, err = NewChords(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, tr)

	cfg.MusicAIAPIKey = "key"
	tr, err = NewChords(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "musicai", tr.Name())
}
