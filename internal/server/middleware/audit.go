package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"workbench-api/internal/audit"
)

// Audit records an audit entry after each successful mutating request made by an authenticated caller.
// Action and resource come from the matched route pattern. Writes are best-effort.
func Audit(logger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if logger == nil || !audit.IsMutation(r.Method) {
				return
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusBadRequest {
				return
			}
			userID := CallerID(r.Context())
			if userID == "" {
				return
			}
			pattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			ar := audit.ParseRoute(r.Method, pattern)
			logger.LogEvent(r.Context(), userID, ar.Action, ar.Resource, "")
		})
	}
}
