package middleware

import (
	"net"
	"net/http"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"workbench-api/internal/audit"
	"workbench-api/internal/platform/apierror"
)

// RequestLogger logs one line per request with method, path, status, duration and request id.
// Server errors log at error, client errors at info, the rest at debug.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       ww.BytesWritten(),
				"request_id":  chimw.GetReqID(r.Context()),
			})
			switch {
			case status >= http.StatusInternalServerError:
				entry.Error("request")
			case status >= http.StatusBadRequest:
				entry.Info("request")
			default:
				entry.Debug("request")
			}
		})
	}
}

// Recoverer turns a handler panic into a Generic error response and logs the stack.
func Recoverer(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.WithFields(logrus.Fields{
						"panic":      rec,
						"stack":      string(debug.Stack()),
						"request_id": chimw.GetReqID(r.Context()),
					}).Error("http: handler panic")
					apierror.Write(w, apierror.New(apierror.Generic))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP stores the request's client IP for audit records. Run it after chi's RealIP.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(audit.WithClientIP(r.Context(), ip)))
	})
}
