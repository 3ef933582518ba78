// Package server assembles the HTTP router and the gRPC server.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"workbench-api/internal/audit"
	audithandler "workbench-api/internal/audit/handler"
	healthhandler "workbench-api/internal/health/handler"
	identityhandler "workbench-api/internal/identity/handler"
	notehandler "workbench-api/internal/note/handler"
	"workbench-api/internal/platform/apierror"
	posthandler "workbench-api/internal/post/handler"
	"workbench-api/internal/server/middleware"
)

// Deps holds the handlers and middleware mounted by NewRouter.
type Deps struct {
	Log   logrus.FieldLogger
	Auth  *middleware.Authenticator
	Audit audit.AuditLogger
	// AuditTrail serves the caller's own audit entries.
	AuditTrail *audithandler.AuditHandler
	Identity   *identityhandler.AuthHandler
	Notes      *notehandler.NoteHandler
	Posts      *posthandler.PostHandler
	Health     *healthhandler.Server
	// ServiceName names the server span operation.
	ServiceName string
}

// NewRouter returns the HTTP API. Audit records are written only on routes behind authentication.
func NewRouter(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.ClientIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierror.Write(w, apierror.New(apierror.NotFound))
	})

	if deps.Health != nil {
		r.Get("/healthz", deps.Health.Liveness)
		r.Get("/readyz", deps.Health.Readiness)
	}

	requireAuth := deps.Auth.Middleware(true)
	optionalAuth := deps.Auth.Middleware(false)
	audited := middleware.Audit(deps.Audit)

	if deps.Identity != nil {
		deps.Identity.Routes(r, requireAuth)
	}
	if deps.AuditTrail != nil {
		deps.AuditTrail.Routes(r.With(requireAuth))
	}
	if deps.Notes != nil {
		r.Group(func(g chi.Router) {
			g.Use(requireAuth, audited)
			deps.Notes.Routes(g)
		})
	}
	if deps.Posts != nil {
		deps.Posts.Routes(r.With(optionalAuth), r.With(requireAuth, audited))
	}

	name := deps.ServiceName
	if name == "" {
		name = "workbench-api"
	}
	return otelhttp.NewHandler(r, name)
}
