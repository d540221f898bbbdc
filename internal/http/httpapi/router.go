package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"omniwizz/internal/domain"
	"omniwizz/internal/http/handlers"
	"omniwizz/internal/infra"
	"omniwizz/internal/middleware"
)

type RouterOptions struct {
	Logger        *infra.Logger
	CORSOrigins   []string
	RateLimit     int
	DefaultLocale domain.Language
	CountryLookup middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.Logger != nil {
		r.Use(middleware.Logger(opts.Logger))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimit, time.Minute))
		r.Post("/generate", app.Generate)
		r.Post("/regenerate", app.Regenerate)
	})

	r.Get("/output/{folder}", app.Archive)
	r.Get("/output/{folder}/*", app.Artifact)
	r.Get("/runs/{folder}/status", app.RunStatus)

	r.Post("/log/batch", app.LogBatch)
	r.Get("/dev/download-logs", app.DownloadLogs)

	return r
}
