package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"nftforge/internal/http/handlers"
	"nftforge/internal/infra"
	"nftforge/internal/metrics"
	"nftforge/internal/middleware"
)

// RouterOptions configure the HTTP surface.
type RouterOptions struct {
	Logger          infra.Logger
	Metrics         *metrics.Collector
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID(opts.Logger),
		middleware.Logger,
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/contract", app.ContractInfo)
	r.Get("/ipfs/{cid}", app.ServeContent)

	// Create and regenerate share one budget: both spend inference calls.
	limit := middleware.RateLimit(opts.RateLimitPerMin)
	r.Route("/v1/mints", func(r chi.Router) {
		r.Get("/", app.ListMints)
		r.With(limit).Post("/", app.CreateMint)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetMint)
			r.Delete("/", app.DeleteMint)
			r.Get("/image", app.MintImage)
			r.Get("/bundle", app.MintBundle)
			r.Get("/events", app.MintEvents)
			r.Post("/reset", app.ResetMint)
			r.With(limit).Post("/generate", app.SubmitMint)
			r.Post("/confirm", app.ConfirmMint)
		})
	})

	return r
}
