// Package handler reports liveness and readiness over HTTP and the standard gRPC health service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"workbench-api/internal/platform/apierror"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SessionPinger is satisfied by the session repositories.
type SessionPinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker is satisfied by the ownership authorizer.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server implements readiness checks. Nil dependencies are skipped.
type Server struct {
	healthpb.UnimplementedHealthServer

	db       Pinger
	sessions SessionPinger
	policy   PolicyChecker
	log      logrus.FieldLogger
}

// NewServer returns a health Server over the given dependencies.
func NewServer(db Pinger, sessions SessionPinger, policy PolicyChecker, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{db: db, sessions: sessions, policy: policy, log: log}
}

// Report is the readiness body. Checks maps each dependency to "ok" or "fail".
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Ready runs every readiness check and reports whether all passed.
func (s *Server) Ready(ctx context.Context) (Report, bool) {
	checks := map[string]func(context.Context) error{}
	if s.db != nil {
		checks["database"] = s.db.PingContext
	}
	if s.sessions != nil {
		checks["sessions"] = s.sessions.Ping
	}
	if s.policy != nil {
		checks["policy"] = s.policy.HealthCheck
	}

	rep := Report{Status: "ok", Checks: make(map[string]string, len(checks))}
	ready := true
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(cctx)
		cancel()
		if err != nil {
			ready = false
			rep.Checks[name] = "fail"
			s.log.WithError(err).WithField("check", name).Warn("health: readiness check failed")
			continue
		}
		rep.Checks[name] = "ok"
	}
	if !ready {
		rep.Status = "unavailable"
	}
	return rep, ready
}

// Liveness handles GET /healthz.
func (s *Server) Liveness(w http.ResponseWriter, r *http.Request) {
	apierror.WriteJSON(w, http.StatusOK, Report{Status: "ok"})
}

// Readiness handles GET /readyz: 200 when every dependency is healthy, 503 otherwise.
func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.Ready(r.Context())
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	apierror.WriteJSON(w, code, rep)
}

// Check implements grpc.health.v1.Health. The empty service name is the whole server.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if _, ok := s.Ready(ctx); !ok {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// ServiceName is the service name accepted by Check besides "".
const ServiceName = "workbench.api"
