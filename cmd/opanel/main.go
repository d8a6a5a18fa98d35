package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/opanel/backoffice/internal/access"
	"github.com/opanel/backoffice/internal/app"
	"github.com/opanel/backoffice/internal/audit"
	audithttp "github.com/opanel/backoffice/internal/audit/http"
	"github.com/opanel/backoffice/internal/auth"
	"github.com/opanel/backoffice/internal/observability"
	"github.com/opanel/backoffice/internal/platform/cache"
	"github.com/opanel/backoffice/internal/platform/db"
	"github.com/opanel/backoffice/internal/roles"
	"github.com/opanel/backoffice/internal/shared"
	"github.com/opanel/backoffice/internal/users"
	"github.com/opanel/backoffice/internal/view"
	"github.com/opanel/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Error("apply schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "opanel_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine(csrfManager, cfg.AdminPrefix)
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	redisOpts := cache.QueueOptions(cfg.RedisAddr)
	auditStore := audit.NewPGStore(dbpool)
	var sink audit.Sink = audit.NewBreakerSink(auditStore, logger)
	if cfg.AuditAsync {
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		sink = jobClient
	}
	if cfg.AuditStdout {
		sink = audit.Fanout{sink, audit.LogSink{Logger: logger}}
	}
	recorder := audit.NewRecorder(sink, logger, metrics)
	auditPolicy := audit.Policy{Prefix: cfg.AdminPrefix, Backend: cfg.AuditLogBackend, Frontend: cfg.AuditLogFrontend}

	accessRepo := access.NewRepository(dbpool)
	evaluator := access.NewEvaluator(accessRepo, access.NewResolver(accessRepo))
	gate := access.NewGate(evaluator, access.GateConfig{
		Prefix:       cfg.AdminPrefix,
		ExposeErrors: cfg.ExposeErrors,
		Logger:       logger,
		Recorder:     recorder,
		Policy:       auditPolicy,
		Observer:     metrics,
	})
	accessHandler := access.NewHandler(logger, access.NewService(accessRepo, recorder), templates)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, recorder)

	roleService := roles.NewService(roles.NewRepository(dbpool), recorder)
	rolesHandler := roles.NewHandler(logger, roleService, templates)

	userService := users.NewService(users.NewRepository(dbpool), recorder)
	usersHandler := users.NewHandler(logger, userService, roleService, templates)

	auditHandler := audithttp.NewHandler(logger, audit.NewService(auditStore), templates)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	var requestAudit *audit.Recorder
	if cfg.AuditRequests {
		requestAudit = recorder
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Gate:           gate,
		AuthHandler:    authHandler,
		AccessHandler:  accessHandler,
		RolesHandler:   rolesHandler,
		UsersHandler:   usersHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
		RequestAudit:   requestAudit,
		AuditPolicy:    auditPolicy,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("prefix", cfg.AdminPrefix))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
