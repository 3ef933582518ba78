// server runs the workbench HTTP API and the gRPC health endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"workbench-api/internal/audit"
	audithandler "workbench-api/internal/audit/handler"
	auditrepo "workbench-api/internal/audit/repository"
	"workbench-api/internal/config"
	"workbench-api/internal/db"
	healthhandler "workbench-api/internal/health/handler"
	identityhandler "workbench-api/internal/identity/handler"
	identityservice "workbench-api/internal/identity/service"
	notehandler "workbench-api/internal/note/handler"
	noterepo "workbench-api/internal/note/repository"
	"workbench-api/internal/platform/logging"
	"workbench-api/internal/platform/ownership"
	"workbench-api/internal/policy/engine"
	posthandler "workbench-api/internal/post/handler"
	postrepo "workbench-api/internal/post/repository"
	"workbench-api/internal/security"
	"workbench-api/internal/server"
	"workbench-api/internal/server/middleware"
	sessionrepo "workbench-api/internal/session/repository"
	"workbench-api/internal/telemetry/otel"
	userrepo "workbench-api/internal/user/repository"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server: exited with error")
	}
	log.Info("server: stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	providers, err := otel.NewProviders(ctx, otel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			log.WithError(err).Warn("telemetry: shutdown failed")
		}
	}()
	recorder, err := otel.NewAuthRecorder(providers.MeterProvider, providers.LoggerProvider)
	if err != nil {
		return fmt.Errorf("telemetry: auth recorder: %w", err)
	}

	conn, err := db.OpenWithRetry(ctx, cfg.DatabaseURL, db.RetryOptions{}, log)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	timeout := cfg.StoreCallTimeout()
	sessions, closeSessions, err := openSessions(ctx, cfg, conn, timeout)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	defer closeSessions()
	log.WithField("backend", cfg.SessionBackend).Info("sessions: store ready")

	eval, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	owners := ownership.NewAuthorizer(eval).WithRecorder(recorder)

	tokens, err := security.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return fmt.Errorf("tokens: %w", err)
	}

	users := userrepo.NewPostgresRepository(conn, timeout)
	auditStore := auditrepo.NewPostgresRepository(conn, timeout)
	auditLogger := audit.NewLogger(auditStore, nil, log)
	authSvc := identityservice.NewAuthService(users, sessions, security.NewHasher(cfg.BcryptCost), tokens,
		auditLogger, recorder, log, identityservice.Options{RegistrationEnabled: cfg.RegistrationEnabled})

	health := healthhandler.NewServer(conn, sessions, owners, log)
	handler := server.NewRouter(server.Deps{
		Log:         log,
		Auth:        middleware.NewAuthenticator(tokens, sessions, users, log, recorder),
		Audit:       auditLogger,
		AuditTrail:  audithandler.NewAuditHandler(auditStore, log),
		Identity:    identityhandler.NewAuthHandler(authSvc, log),
		Notes:       notehandler.NewNoteHandler(noterepo.NewPostgresRepository(conn, timeout), owners, log),
		Posts:       posthandler.NewPostHandler(postrepo.NewPostgresRepository(conn, timeout), owners, log),
		Health:      health,
		ServiceName: cfg.ServiceName,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := server.NewGRPCServer(server.GRPCDeps{Health: health})

	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("http: listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	if grpcLis != nil {
		g.Go(func() error {
			log.WithField("addr", cfg.GRPCAddr).Info("grpc: listening")
			if err := grpcSrv.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server: shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}

// openSessions returns the configured session store and a function releasing its resources.
func openSessions(ctx context.Context, cfg *config.Config, conn *sql.DB, timeout time.Duration) (sessionrepo.Repository, func(), error) {
	if cfg.SessionBackend != config.SessionBackendRedis {
		return sessionrepo.NewPostgresRepository(conn, timeout), func() {}, nil
	}
	repo, err := sessionrepo.NewRedisRepository(ctx, sessionrepo.RedisOptions{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisKeyPrefix,
		TTL:       cfg.RefreshTTL(),
		Timeout:   timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return repo, func() { _ = repo.Close() }, nil
}
