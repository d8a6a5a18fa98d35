package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/opanel/backoffice/internal/access"
	"github.com/opanel/backoffice/internal/audit"
	audithttp "github.com/opanel/backoffice/internal/audit/http"
	"github.com/opanel/backoffice/internal/auth"
	"github.com/opanel/backoffice/internal/observability"
	"github.com/opanel/backoffice/internal/platform/httpx"
	"github.com/opanel/backoffice/internal/roles"
	"github.com/opanel/backoffice/internal/shared"
	"github.com/opanel/backoffice/internal/users"
	"github.com/opanel/backoffice/internal/view"
	"github.com/opanel/backoffice/jobs"
	"github.com/opanel/backoffice/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Gate           *access.Gate
	AuthHandler    *auth.Handler
	AccessHandler  *access.Handler
	RolesHandler   *roles.Handler
	UsersHandler   *users.Handler
	AuditHandler   *audithttp.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	// RequestAudit enables per-request audit entries when non-nil.
	RequestAudit *audit.Recorder
	AuditPolicy  audit.Policy
}

// NewRouter constructs the chi.Router with back office defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := params.Gate.Prefix()

	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
		RequestAudit:   params.RequestAudit,
		Policy:         params.AuditPolicy,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, prefix+"/dashboard", http.StatusFound)
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route(prefix, func(ar chi.Router) {
		// Unmatched paths inside the admin area still go through the gate so
		// anonymous probes are sent to the login page.
		ar.NotFound(params.Gate.Unrouted(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})).ServeHTTP)
		ar.MethodNotAllowed(params.Gate.Unrouted(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		})).ServeHTTP)

		ar.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, prefix+"/dashboard", http.StatusFound)
		})
		ar.With(params.Gate.Require(access.T("DashboardAction", "show"))).
			Get("/dashboard", dashboardHandler(params.Templates, logger))

		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(ar, params.Gate)
		}
		if params.AccessHandler != nil {
			params.AccessHandler.MountRoutes(ar, params.Gate)
		}
		if params.RolesHandler != nil {
			params.RolesHandler.MountRoutes(ar, params.Gate)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(ar, params.Gate)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(ar, params.Gate)
		}
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// throttlePath applies limiter to one method and path only.
func throttlePath(method, path string, limiter func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == method && r.URL.Path == path {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
