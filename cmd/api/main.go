package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docassist/docassist-go/internal/config"
	"github.com/docassist/docassist-go/internal/crypto"
	"github.com/docassist/docassist-go/internal/handler"
	"github.com/docassist/docassist-go/internal/metrics"
	"github.com/docassist/docassist-go/internal/middleware"
	"github.com/docassist/docassist-go/internal/repository"
	"github.com/docassist/docassist-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("store unavailable", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	issuer, err := crypto.NewTokenIssuer(cfg.JWTSecret)
	if err != nil {
		slog.Error("token issuer", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	authService := service.NewAuthService(store, issuer)
	authHandler := handler.NewAuthHandler(authService, m)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Instrument(m))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/auth", authHandler.Routes(middleware.Authenticate(issuer, m)))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openStore connects the configured credential store and prepares its schema.
func openStore(ctx context.Context, cfg config.Config) (service.UserStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := repository.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoUserRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		dialect := repository.DialectMySQL
		if cfg.StoreDriver == config.DriverSQLite {
			dialect = repository.DialectSQLite
		}
		db, err := repository.NewDB(dialect, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.Migrate(ctx, db, dialect); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewUserRepository(db), func() { db.Close() }, nil
	}
}
