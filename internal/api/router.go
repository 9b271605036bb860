package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/miradorstack/benford-lab/internal/examples"
	"github.com/miradorstack/benford-lab/internal/ratelimit"
	"github.com/miradorstack/benford-lab/internal/security"
	"github.com/miradorstack/benford-lab/internal/services"
	"github.com/miradorstack/benford-lab/internal/session"
	"github.com/miradorstack/benford-lab/internal/storage"
)

// formOverhead is the body allowance for multipart framing and the other form fields.
const formOverhead = 64 << 10

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Logger   *slog.Logger
	Sessions sessions.Store
	CSRF     *security.CSRFGuard
	Limiter  ratelimit.Limiter
	Sweeper  *storage.Sweeper

	Intake   *storage.Intake
	Plots    *storage.Root
	Reports  *storage.Root
	Examples *examples.Catalog

	Analysis *services.AnalysisService
	Catalog  *services.CatalogService

	TrustProxy     bool
	MaxUploadBytes int64
	MaxPreviewRows int
	RequestTimeout time.Duration
}

// NewRouter builds the chi mux serving the web API.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.CSRF == nil {
		d.CSRF = security.NewCSRFGuard()
	}
	h := &handlers{
		logger:         d.Logger,
		sessions:       d.Sessions,
		csrf:           d.CSRF,
		intake:         d.Intake,
		plots:          d.Plots,
		reports:        d.Reports,
		examples:       d.Examples,
		analysis:       d.Analysis,
		catalog:        d.Catalog,
		maxPreviewRows: d.MaxPreviewRows,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	r.Use(sweepOutputs(d.Sweeper))

	r.Get("/", h.index)
	r.Get("/healthz", h.healthz)
	r.Get("/results", h.results)
	r.Get("/static/images/{name}", h.serveFrom(d.Plots))
	r.Get("/static/reports/{name}", h.serveFrom(d.Reports))
	r.Get("/examples", h.listExamples)

	r.Group(func(r chi.Router) {
		r.Use(limitBody(d.MaxUploadBytes + formOverhead))
		if d.Limiter != nil {
			r.Use(ratelimit.Middleware(ratelimit.Options{
				Limiter:            d.Limiter,
				TrustXForwardedFor: d.TrustProxy,
				Methods:            []string{http.MethodPost},
				Logger:             d.Logger,
				OnReject: func(w http.ResponseWriter, r *http.Request) {
					h.fail(w, r, session.Load(h.sessions, r), session.FlashWarning,
						"Too many requests. Please wait a moment and try again.")
				},
			}))
		}
		r.Post("/upload", h.upload)
		r.Post("/preview", h.preview)
		r.Post("/analyze", h.analyze)
		r.Post("/examples/{id}/analyze", h.analyzeExample)
	})

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/status", h.catalogStatus)
		r.Group(func(r chi.Router) {
			r.Use(limitBody(formOverhead))
			r.Post("/credentials", h.catalogConnect)
			r.Post("/logout", h.catalogDisconnect)
			r.Post("/search", h.catalogSearch)
			r.Post("/download", h.catalogDownload)
		})
	})

	return r
}
