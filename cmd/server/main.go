package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/registration-service/internal/config"
	"github.com/ayush/registration-service/internal/identity"
	"github.com/ayush/registration-service/internal/middleware"
	"github.com/ayush/registration-service/internal/registration"
	"github.com/ayush/registration-service/internal/server"
	"github.com/ayush/registration-service/internal/store"
	"github.com/ayush/registration-service/internal/tracing"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:          "server",
		Short:        "Account registration service",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the account schema for the configured backend and exit",
		RunE:  runMigrate,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// accountStore opens the configured backend. The returned cleanup closes it.
func accountStore(ctx context.Context, cfg *config.Config, migrate bool) (identity.AccountStore, func(), error) {
	switch cfg.Directory.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		s := store.NewPostgresStore(pool)
		if migrate {
			if err := s.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return s, pool.Close, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		s := store.NewMongoStore(client.Database(cfg.Mongo.DB))
		if migrate {
			if err := s.EnsureIndexes(ctx); err != nil {
				client.Disconnect(ctx)
				return nil, nil, err
			}
		}
		return s, func() { client.Disconnect(context.Background()) }, nil

	case "sqlite":
		s, err := store.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		// SQLite has no separate deploy step; always make sure the table exists.
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	_, cleanup, err := accountStore(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()
	logger.Info("schema ready", "backend", cfg.Directory.Backend)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	ctx := context.Background()
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// ── Tracing ──────────────────────────────────────────────
	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer tp.Shutdown(context.Background())

	// ── User directory ───────────────────────────────────────
	accounts, closeStore, err := accountStore(ctx, cfg, true)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	defer closeStore()

	dir := identity.NewManager(accounts,
		identity.WithHasher(identity.NewHasher(cfg.Directory.BcryptCost)),
		identity.WithPasswordPolicy(identity.PasswordPolicy{
			RequiredLength:         cfg.Password.RequiredLength,
			RequiredUniqueChars:    cfg.Password.RequiredUniqueChars,
			RequireDigit:           cfg.Password.RequireDigit,
			RequireLowercase:       cfg.Password.RequireLowercase,
			RequireUppercase:       cfg.Password.RequireUppercase,
			RequireNonAlphanumeric: cfg.Password.RequireNonAlphanumeric,
		}),
		identity.WithLogger(logger),
	)

	svcOpts := []registration.Option{registration.WithTracer(tp.Tracer("registration"))}
	observers := registration.Observers{registration.NewLogObserver(logger)}

	// ── Redis ────────────────────────────────────────────────
	if cfg.Redis.Addr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			log.Fatalf("redis connect: %v", err)
		}
		defer rdb.Close()
		svcOpts = append(svcOpts, registration.WithReserver(store.NewReservations(rdb, cfg.Redis.ReservationTTL, logger)))
	}

	// ── MinIO ────────────────────────────────────────────────
	if cfg.Audit.Enabled {
		archive, err := store.NewAuditArchive(ctx, store.ArchiveConfig{
			Endpoint:      cfg.Minio.Endpoint,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			Bucket:        cfg.Minio.Bucket,
			UseSSL:        cfg.Minio.UseSSL,
			Versioning:    cfg.Minio.Versioning,
			RetentionDays: cfg.Minio.RetentionDays,
		})
		if err != nil {
			log.Fatalf("minio connect: %v", err)
		}
		observers = append(observers, registration.NewArchiveObserver(archive, logger))
	}
	svcOpts = append(svcOpts, registration.WithObserver(observers))

	// ── Handlers ─────────────────────────────────────────────
	svc := registration.NewService(dir, svcOpts...)
	handler := registration.NewHandler(svc, logger)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 0)
	}

	// ── Router ───────────────────────────────────────────────
	router := server.NewRouter(handler, server.Options{
		Development:    cfg.IsDevelopment(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ForceHTTPS:     cfg.Server.ForceHTTPS,
		HTTPSPort:      cfg.Server.HTTPSPort,
		HSTSMaxAge:     cfg.Server.HSTSMaxAge,
		StaticDir:      cfg.Server.StaticDir,
		RateLimit:      limiter,
		Logger:         logger,

		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("registration service listening", "port", cfg.Port, "backend", cfg.Directory.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
