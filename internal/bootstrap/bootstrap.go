// Package bootstrap turns a loaded Config into the providers, pipeline and
// event log shared by the API server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"omniwizz/internal/eventlog"
	"omniwizz/internal/infra"
	"omniwizz/internal/infra/geoip"
	"omniwizz/internal/pipeline"
	"omniwizz/internal/providers/chords"
	"omniwizz/internal/providers/image"
	"omniwizz/internal/providers/music"
	"omniwizz/internal/providers/qwen"
	"omniwizz/internal/providers/vision"
	"omniwizz/internal/storage"
)

// Services is everything a binary needs to serve runs.
type Services struct {
	Pipeline *pipeline.Pipeline
	Runs     *storage.RunStore
	// Events and GeoIP are nil when disabled.
	Events    *eventlog.Recorder
	LogDBPath string
	GeoIP     *geoip.Resolver

	closers []func() error
}

// Close releases provider clients, the event store and the GeoIP database.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Services) onClose(fn func() error) {
	if fn != nil {
		s.closers = append(s.closers, fn)
	}
}

// BuildPipeline wires the run store and providers. The event log and GeoIP
// resolver are left out; the CLI uses this directly.
func BuildPipeline(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Services, error) {
	logger = orDiscard(logger)
	s := &Services{}

	runs, err := storage.NewRunStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	s.Runs = runs

	vis, closeVision, err := NewVision(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.onClose(closeVision)

	gen, err := NewMusic(cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	images, err := NewImages(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	transcriber, err := NewChords(cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	p, err := pipeline.New(pipeline.Options{
		Store:            runs,
		Vision:           vis,
		Music:            gen,
		Images:           images,
		Chords:           transcriber,
		Fallback:         pipeline.FallbackPolicy{Enabled: cfg.FallbackEnabled},
		ImageSuffix:      cfg.ImageSuffix,
		MaxEntities:      cfg.MaxEntities,
		ImageConcurrency: cfg.ImageConcurrency,
		MusicTaskTimeout: cfg.MusicTaskTimeout,
		Logger:           logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Pipeline = p

	logger.Info().
		Str("vision", vis.Name()).
		Str("music", gen.Name()).
		Str("images", images.Name()).
		Bool("chords", transcriber != nil).
		Bool("fallback", cfg.FallbackEnabled).
		Bool("test_mode", cfg.TestMode).
		Msg("pipeline ready")
	return s, nil
}

// Build wires the pipeline plus the event log and GeoIP resolver used by the
// HTTP server.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Services, error) {
	s, err := BuildPipeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger = orDiscard(logger)

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		s.GeoIP = resolver
		s.onClose(resolver.Close)
	}

	store, dbPath, err := NewEventStore(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	if store != nil {
		s.onClose(store.Close)
		rec, err := eventlog.NewRecorder(eventlog.RecorderOptions{Store: store, Logger: logger})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Events = rec
		s.LogDBPath = dbPath
	}
	return s, nil
}

func orDiscard(logger *infra.Logger) *infra.Logger {
	if logger != nil {
		return logger
	}
	discard := zerolog.New(io.Discard)
	l := infra.Logger(discard)
	return &l
}

// NewVision picks the text generator. The returned close func may be nil.
func NewVision(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (vision.Generator, func() error, error) {
	switch cfg.VisionProvider {
	case "static":
		return vision.NewStatic(), nil, nil
	case "gemini":
		g, err := vision.NewGemini(ctx, vision.GeminiOptions{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		return g, g.Close, nil
	default:
		o, err := vision.NewOpenAI(vision.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: openai: %w", err)
		}
		return o, nil, nil
	}
}

// NewMusic picks the music generator.
func NewMusic(cfg *infra.Config, logger *infra.Logger) (music.Generator, error) {
	switch cfg.MusicProvider {
	case "static":
		return music.NewStatic(), nil
	case "diffrhythm":
		d, err := music.NewDiffRhythm(music.DiffRhythmOptions{
			APIKey:  cfg.DiffRhythmToken,
			BaseURL: cfg.DiffRhythmURL,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		return d, nil
	default:
		u, err := music.NewUdio(music.UdioOptions{
			APIKey:      cfg.PiAPIKey,
			BaseURL:     cfg.PiAPIBaseURL,
			MaxAttempts: cfg.PollMaxAttempts,
			Interval:    cfg.PollInterval,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		return u, nil
	}
}

// NewImages chains the configured image sources in order. Sources whose
// credentials are missing are skipped with a warning; an empty chain is an
// error.
func NewImages(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (image.Source, error) {
	logger = orDiscard(logger)
	var sources []image.Source
	skip := func(name string, err error) {
		logger.Warn().Err(err).Str("source", name).Msg("image source disabled")
	}
	for _, name := range cfg.ImageProviders {
		switch strings.TrimSpace(name) {
		case "serpapi":
			src, err := image.NewSerpAPI(image.SerpAPIOptions{APIKey: cfg.SerpAPIKey})
			if err != nil {
				skip(name, err)
				continue
			}
			sources = append(sources, src)
		case "google":
			src, err := image.NewGoogle(ctx, image.GoogleOptions{APIKey: cfg.GoogleCSEKey, CX: cfg.GoogleCSECX})
			if err != nil {
				skip(name, err)
				continue
			}
			sources = append(sources, src)
		case "scrape":
			sources = append(sources, image.NewScrape(image.ScrapeOptions{}))
		case "midjourney":
			src, err := image.NewMidjourney(image.MidjourneyOptions{
				APIKey:      cfg.PiAPIKey,
				BaseURL:     cfg.PiAPIBaseURL,
				MaxAttempts: cfg.PollMaxAttempts,
				Interval:    cfg.PollInterval,
				Logger:      logger,
			})
			if err != nil {
				skip(name, err)
				continue
			}
			sources = append(sources, src)
		case "qwen":
			client, err := qwen.NewClient(qwen.Options{
				APIKey:      cfg.DashScopeAPIKey,
				BaseURL:     cfg.DashScopeBaseURL,
				Model:       cfg.QwenModel,
				MaxAttempts: cfg.PollMaxAttempts,
				Interval:    cfg.PollInterval,
				Logger:      logger,
			})
			if err != nil {
				skip(name, err)
				continue
			}
			if !client.HasCredentials() {
				skip(name, qwen.ErrMissingAPIKey)
				continue
			}
			sources = append(sources, image.NewQwenSource(client))
		case "static":
			sources = append(sources, image.NewStatic())
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("bootstrap: no usable image source configured")
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	return image.NewChain(sources...), nil
}

// NewChords returns the chord transcriber, or nil when none is configured.
func NewChords(cfg *infra.Config, logger *infra.Logger) (chords.Transcriber, error) {
	if cfg.TestMode {
		return chords.NewStatic(), nil
	}
	if strings.TrimSpace(cfg.MusicAIAPIKey) == "" {
		return nil, nil
	}
	t, err := chords.NewMusicAI(chords.MusicAIOptions{
		APIKey:      cfg.MusicAIAPIKey,
		BaseURL:     cfg.MusicAIBaseURL,
		Workflow:    cfg.MusicAIWorkflow,
		MaxAttempts: cfg.PollMaxAttempts,
		Interval:    cfg.PollInterval,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return t, nil
}

// NewEventStore opens the configured event store. It returns a nil store for
// the "none" driver and the sqlite file path for the sqlite driver.
func NewEventStore(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (eventlog.Store, string, error) {
	switch cfg.EventLogDriver {
	case "none":
		return nil, "", nil
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: event log: %w", err)
		}
		store, err := eventlog.NewPostgres(ctx, eventlog.PostgresOptions{
			DB:     infra.NewSQLRunner(pool, logger),
			Close:  pool.Close,
			Logger: logger,
		})
		if err != nil {
			pool.Close()
			return nil, "", fmt.Errorf("bootstrap: event log: %w", err)
		}
		return store, "", nil
	default:
		store, err := eventlog.NewSQLite(cfg.EventLogPath, logger)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: event log: %w", err)
		}
		return store, store.Path(), nil
	}
}
