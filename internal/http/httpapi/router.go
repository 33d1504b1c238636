package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"autovideo/internal/http/handlers"
	"autovideo/internal/infra"
	"autovideo/internal/middleware"
)

// Options configures the router middleware.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	Logger          *infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N("", opts.CountryLookup),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)
		r.Get("/voices", app.ListVoices)

		// Only requests that start pipeline work are rate limited.
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/generate", app.Generate)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", app.ListJobs)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", app.GetJob)
				r.Get("/script", app.GetScript)
				r.Get("/voice", app.GetVoice)
				r.Post("/approve-script", app.ApproveScript)
				r.Post("/approve-voice", app.ApproveVoice)
				r.Post("/script/edit", app.EditScript)
				r.Post("/voice/regenerate", app.RegenerateVoice)
			})
		})

		r.Route("/download", func(r chi.Router) {
			r.Get("/{job_id}.zip", app.DownloadBundle)
			r.Get("/{job_id}/{filename}", app.Download)
		})
	})

	return r
}
