package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"omniwizz/internal/bootstrap"
	"omniwizz/internal/domain"
	"omniwizz/internal/http/handlers"
	httpapi "omniwizz/internal/http/httpapi"
	"omniwizz/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	services, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}
	defer services.Close()

	app := handlers.NewApp(handlers.Options{
		Pipeline:       services.Pipeline,
		Runs:           services.Runs,
		Events:         services.Events,
		LogDBPath:      services.LogDBPath,
		LogDownloadKey: cfg.LogDownloadKey,
		DeferMusic:     cfg.DeferMusic,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		Logger:         &logger,
	})
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:        &logger,
		CORSOrigins:   cfg.CORSOrigins,
		RateLimit:     cfg.RateLimitPerMin,
		DefaultLocale: domain.LanguageEnglish,
		CountryLookup: services.GeoIP.Lookup(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("output_dir", cfg.OutputDir).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Deferred music tasks still owe their status.json.
	waitCtx, cancelWait := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout+30*time.Second)
	defer cancelWait()
	if err := services.Pipeline.Wait(waitCtx); err != nil {
		logger.Warn().Err(err).Msg("deferred music tasks still running at exit")
	}
	logger.Info().Msg("server stopped")
}
