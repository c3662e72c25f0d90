// Package main provides the workflow server entry point. It hosts the
// approval workflow API together with audit, evidence, and maintenance job
// endpoints under a single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/complyard/grc-engine/pkg/audit"
	"github.com/complyard/grc-engine/pkg/authz"
	"github.com/complyard/grc-engine/pkg/cache"
	"github.com/complyard/grc-engine/pkg/crypto"
	"github.com/complyard/grc-engine/pkg/evidence"
	"github.com/complyard/grc-engine/pkg/ha"
	"github.com/complyard/grc-engine/pkg/jobs"
	"github.com/complyard/grc-engine/pkg/notify"
	"github.com/complyard/grc-engine/pkg/sweep"
	"github.com/complyard/grc-engine/pkg/tenancy"
	"github.com/complyard/grc-engine/pkg/workflow"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "postgres", "Database type (postgres, mysql, or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting workflow server", "listen", listenAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	db, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	// Sealed-at-rest document URLs when a field cipher key is configured.
	var cipher crypto.FieldCipher
	if key := os.Getenv("GRC_DOC_CIPHER_KEY"); key != "" {
		cipher, err = crypto.NewAESGCM([]byte(key))
		if err != nil {
			glog.Fatalf("Invalid GRC_DOC_CIPHER_KEY: %v", err)
		}
		logger.Info("document url field cipher enabled")
	}

	entities := workflow.NewEntityStore(db, cipher)
	approvals := workflow.NewApprovalStore(db)
	auditStore := audit.NewStore(db)
	jobStore := jobs.NewJobStore(db)

	haCfg := ha.HAConfigFromEnv()
	elector := ha.NewLeaderElector(haCfg, db, haCfg.Identity, logger)

	// Serialize schema migrations across replicas.
	var locker ha.MigrationLocker
	if haCfg.MigrationLockEnabled {
		locker = ha.NewMigrationLocker(db, "grc-server-migration")
	} else {
		locker = ha.NewMigrationLocker(nil, "")
	}
	err = locker.WithLock(ctx, func() error {
		if err := entities.AutoMigrate(); err != nil {
			return err
		}
		if err := approvals.AutoMigrate(); err != nil {
			return err
		}
		if err := auditStore.Migrate(); err != nil {
			return err
		}
		if err := jobStore.AutoMigrate(); err != nil {
			return err
		}
		return elector.AutoMigrate()
	})
	if err != nil {
		glog.Fatalf("Failed to run migrations: %v", err)
	}

	// Workflow event sink: structured log by default, webhook when set.
	var notifier notify.Notifier = &notify.LogNotifier{Logger: logger}
	if url := os.Getenv("GRC_WEBHOOK_URL"); url != "" {
		notifier = &notify.WebhookNotifier{URL: url}
		logger.Info("webhook notifier enabled", "url", url)
	}

	engine := workflow.NewEngine(db, entities, approvals,
		workflow.WithLogger(logger),
		workflow.WithNotifier(notifier),
	)

	// Authorization backend.
	var authorizer authz.Authorizer
	authzMode := authz.AuthzMode(envOrDefault("GRC_AUTHZ_MODE", string(authz.AuthzModeNone)))
	switch authzMode {
	case authz.AuthzModeRoles:
		authorizer = authz.NewCachedAuthorizer(authz.NewRoleAuthorizer(), 30*time.Second)
		logger.Info("using role-based authorization")
	case authz.AuthzModeNone:
		logger.Info("authorization disabled")
	default:
		glog.Fatalf("Unknown authz mode: %q (expected roles or none)", authzMode)
	}

	tenancyMode := tenancy.TenancyMode(envOrDefault("GRC_TENANCY_MODE", string(tenancy.ModeSingle)))
	auditCfg := audit.ConfigFromEnv()
	cacheManager := cache.NewCacheManager(cache.CacheConfigFromEnv())

	evidenceSvc, err := setupEvidence(logger)
	if err != nil {
		glog.Fatalf("Failed to configure evidence storage: %v", err)
	}

	scheduler := sweep.NewScheduler(engine, logger)
	retention := audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger)

	// Maintenance jobs executable through the job queue.
	registry := jobs.Registry{
		jobs.KindSweep: jobs.RunnerFunc(func(context.Context) (int, error) {
			res, err := scheduler.RunNow()
			if err != nil {
				return 0, err
			}
			return res.FrameworksActivated + res.FrameworksScheduled +
				res.FrameworksDeactivated + res.PoliciesUpdated + res.SLAsExpired, nil
		}),
		jobs.KindAuditPurge: jobs.RunnerFunc(func(context.Context) (int, error) {
			cutoff := time.Now().AddDate(0, 0, -auditCfg.RetentionDays)
			n, err := auditStore.DeleteOlderThan(cutoff)
			return int(n), err
		}),
	}
	jobCfg := jobs.JobConfigFromEnv()
	workers := jobs.NewWorkerPool(jobStore, registry.Lookup, jobCfg, logger)

	router := buildRouter(routerDeps{
		engine:       engine,
		auditStore:   auditStore,
		auditCfg:     auditCfg,
		jobStore:     jobStore,
		registry:     registry,
		authorizer:   authorizer,
		tenancyMode:  tenancyMode,
		cacheManager: cacheManager,
		evidenceSvc:  evidenceSvc,
		db:           db,
		logger:       logger,
	})

	// Singleton background loops: sweep schedule, audit retention, and the
	// job worker pool. With leader election enabled only the leader runs
	// them; otherwise this replica runs them unconditionally.
	runLoops := func(loopCtx context.Context) {
		if err := scheduler.Start(os.Getenv("GRC_SWEEP_SCHEDULE")); err != nil {
			glog.Fatalf("Failed to start sweep scheduler: %v", err)
		}
		go retention.Run(loopCtx)
		go workers.Run(loopCtx)

		<-loopCtx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			logger.Error("sweep scheduler shutdown error", "error", err)
		}
	}

	if haCfg.LeaderElectionEnabled {
		elector.OnStartLeading(runLoops)
		go elector.Run(ctx)
	} else {
		go runLoops(ctx)
	}

	logger.Info("workflow server ready",
		"listen", listenAddr,
		"tenancyMode", tenancyMode,
		"authzMode", authzMode,
		"evidence", evidenceSvc.Enabled(),
		"leaderElection", haCfg.LeaderElectionEnabled,
	)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("workflow server stopped")
}

type routerDeps struct {
	engine       *workflow.Engine
	auditStore   *audit.Store
	auditCfg     *audit.Config
	jobStore     *jobs.JobStore
	registry     jobs.Registry
	authorizer   authz.Authorizer
	tenancyMode  tenancy.TenancyMode
	cacheManager *cache.CacheManager
	evidenceSvc  *evidence.Service
	db           *gorm.DB
	logger       *slog.Logger
}

func buildRouter(deps routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", tenancy.TenantHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Probes stay outside tenancy and auth.
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := deps.db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(tenancy.NewMiddleware(deps.tenancyMode))
		api.Use(authz.IdentityMiddleware())
		if verifier := setupJWT(deps.logger); verifier != nil {
			api.Use(authz.BearerMiddleware(verifier))
		}
		if deps.authorizer != nil {
			api.Use(authz.AuthzMiddleware(deps.authorizer))
		}
		api.Use(audit.Middleware(deps.auditStore, deps.auditCfg, deps.logger))
		api.Use(deps.cacheManager.WriteInvalidationMiddleware())
		api.Use(listingCacheMiddleware(deps.cacheManager))

		api.Mount("/audit", audit.Router(deps.auditStore, deps.authorizer))
		api.Mount("/jobs", jobs.Router(deps.jobStore, deps.registry.Lookup, deps.authorizer))
		if deps.evidenceSvc.Enabled() {
			api.Mount("/evidence", evidence.Router(deps.evidenceSvc))
		}
		api.Mount("/", workflow.Router(deps.engine))
	})

	return r
}

// listingCacheMiddleware caches the hot read paths: approval listings and
// framework listings. Everything else passes through.
func listingCacheMiddleware(cm *cache.CacheManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		approvalsCached := cm.ApprovalsMiddleware()(next)
		frameworksCached := cm.FrameworksMiddleware()(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			switch {
			case strings.HasPrefix(r.URL.Path, "/api/v1/approvals"):
				approvalsCached.ServeHTTP(w, r)
			case r.URL.Path == "/api/v1/frameworks":
				frameworksCached.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func setupJWT(logger *slog.Logger) *authz.JWTVerifier {
	secret := os.Getenv("GRC_JWT_SECRET")
	if secret == "" {
		return nil
	}
	issuer := envOrDefault("GRC_JWT_ISSUER", "grc-engine")
	logger.Info("bearer token auth enabled", "issuer", issuer)
	return authz.NewJWTVerifier([]byte(secret), issuer)
}

func setupEvidence(logger *slog.Logger) (*evidence.Service, error) {
	var cfg evidence.Config
	if path := os.Getenv("GRC_S3_CONFIG"); path != "" {
		loaded, err := evidence.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if v := os.Getenv("GRC_S3_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("GRC_S3_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("GRC_S3_KEY_ID"); v != "" {
		cfg.KeyID = v
	}
	if v := os.Getenv("GRC_S3_SECRET"); v != "" {
		cfg.Secret = v
	}
	if v := os.Getenv("GRC_S3_BUCKET"); v != "" {
		cfg.Bucket = v
	}
	if v := os.Getenv("GRC_S3_PATH_STYLE"); v != "" {
		cfg.UsePathStyle = v == "true"
	}
	if !cfg.Complete() {
		logger.Info("evidence storage not configured, presign endpoints disabled")
		return evidence.NewService(nil, 0), nil
	}

	presigner, err := evidence.NewS3Presigner(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("evidence storage enabled", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
	return evidence.NewService(presigner, evidence.DefaultExpiry), nil
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
	}
	if dbType == "" {
		dbType = os.Getenv("DATABASE_TYPE")
		if dbType == "" {
			dbType = "postgres"
		}
	}

	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres, mysql, or sqlite)", dbType)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
