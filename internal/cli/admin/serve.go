package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/truststack/internal/api/handlers"
	"github.com/cloo-solutions/truststack/internal/config"
	"github.com/cloo-solutions/truststack/internal/database"
	"github.com/cloo-solutions/truststack/internal/jobs"
	"github.com/cloo-solutions/truststack/internal/lock"
	"github.com/cloo-solutions/truststack/internal/metrics"
	"github.com/cloo-solutions/truststack/internal/registry"
	"github.com/cloo-solutions/truststack/internal/repository"
	"github.com/cloo-solutions/truststack/internal/server"
	"github.com/cloo-solutions/truststack/internal/service"
	"github.com/cloo-solutions/truststack/internal/storage"
	"github.com/cloo-solutions/truststack/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the TrustStack API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

// backends holds the optional external connections.
type backends struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		b.redis.Close()
	}
}

func connectBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.pool = pool
		log.Println("connected to database")
	}
	if cfg.HasRedis() {
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.redis = client
		log.Println("connected to redis")
	}
	return b, nil
}

func newLocker(cfg *config.Config, b *backends) lock.Locker {
	switch cfg.LockBackend {
	case config.LockBackendPostgres:
		return lock.NewPostgresLocker(b.pool, cfg.LockTimeout)
	case config.LockBackendRedis:
		return lock.NewRedisLocker(b.redis, cfg.LockTimeout, cfg.LockTTL)
	default:
		return lock.NewMemoryLocker(cfg.LockTimeout)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: telemetry.SampleRate(cfg.Environment),
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
	} else {
		defer shutdownTelemetry()
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	reg, err := registry.Load(cfg.ConfigRoot)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	holder := registry.NewHolder(reg)
	log.Printf("registry loaded from %s (%d packs)", reg.Root(), len(reg.ListPacks()))

	b, err := connectBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if b.pool != nil && !noMigrate {
		if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	projectRepo, err := repository.NewProjectRepository(cfg.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}

	var auditMirror service.AuditMirror
	if b.pool != nil {
		auditMirror = repository.NewAuditMirrorRepository(b.pool)
	}

	var objects service.MirrorClientInterface
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready for evidence mirroring", cfg.S3Bucket)
		objects = s3Client
	}

	m := metrics.New()
	locker := newLocker(cfg, b)
	blobs := storage.NewBlobStore(cfg.WorkspaceRoot)

	projectSvc := service.NewProjectService(projectRepo, holder, locker, auditMirror, m)
	evidenceSvc := service.NewEvidenceService(projectRepo, blobs, objects, locker, auditMirror, m, cfg.MaxEvidenceBytes)
	reportSvc := service.NewReportService(projectRepo, m)

	router := server.NewRouter(server.RouterConfig{
		ProjectHandler:   handlers.NewProjectHandler(projectSvc),
		RegistryHandler:  handlers.NewRegistryHandler(holder),
		EvidenceHandler:  handlers.NewEvidenceHandler(evidenceSvc),
		ReportHandler:    handlers.NewReportHandler(reportSvc),
		Metrics:          m,
		MaxEvidenceBytes: cfg.MaxEvidenceBytes,
	})

	reloader := jobs.NewRegistryReloadProcessor(holder, m)
	var reloadWorker *jobs.Worker
	if cfg.ReloadInterval > 0 {
		reloadWorker = jobs.NewWorker("registry-reload", reloader, cfg.ReloadInterval)
		go reloadWorker.Start(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig != syscall.SIGHUP {
			break
		}
		log.Println("SIGHUP: reloading registry")
		if err := reloader.Reload(ctx); err != nil {
			log.Printf("%v", err)
		}
	}
	log.Println("shutting down...")

	if reloadWorker != nil {
		reloadWorker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL, dir string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	upToDate := errors.Is(err, migrate.ErrNoChange)

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Println("migrations: no migrations applied")
	case dirty:
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	case upToDate:
		log.Printf("migrations: database is up to date (version %d)", version)
	default:
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
