package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"filelimit-gateway/internal/config"
	"filelimit-gateway/internal/logging"
	"filelimit-gateway/middleware/ratelimit"
	"filelimit-gateway/middleware/ratelimit/application"
	"filelimit-gateway/middleware/ratelimit/infra"
	"filelimit-gateway/password"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	loginMaxFailures = 5
	loginPeriod      = 5 * time.Minute
)

func main() {
	// Exemplo: middleware injetado direto no webserver (sem proxy) e um /login
	// que limita tentativas de senha erradas por IP.
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}
	if cfg.ListenAddr == ":8080" {
		cfg.ListenAddr = ":8081"
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h, err := newRouter(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", cfg.ListenAddr), zap.String("demoUser", cfg.DemoUser))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}

func newRouter(ctx context.Context, cfg config.Config, log *zap.Logger) (http.Handler, error) {
	opts := []infra.Option{
		infra.WithLogger(log.Named("ratelimit")),
		infra.WithLockTimeout(cfg.LockTimeout),
		infra.WithLockRetry(cfg.LockRetry, cfg.LockAttempts),
		infra.WithMaxOpenFiles(cfg.MaxOpenFiles),
	}

	requests, err := infra.NewFileLimiter(filepath.Join(cfg.RateDir, "requests"), cfg.RateMaxRequests, cfg.RatePeriod,
		append(opts, infra.WithDebounce(cfg.RateDebounce))...)
	if err != nil {
		return nil, err
	}
	requests.SetEnabled(cfg.RateEnabled)
	requests.StartJanitor(ctx, requests.Period())

	logins, err := infra.NewFileLimiter(filepath.Join(cfg.RateDir, "login"), loginMaxFailures, loginPeriod, opts...)
	if err != nil {
		return nil, err
	}
	logins.StartJanitor(ctx, logins.Period())

	hasher, err := password.New(
		password.WithCost(cfg.BcryptCost),
		password.WithDebounce(200*time.Millisecond, time.Second),
	)
	if err != nil {
		return nil, err
	}
	demoPassword := cfg.DemoPassword
	if demoPassword == "" {
		demoPassword = "changeme"
		log.Warn("DEMO_PASSWORD not set, using the default demo password")
	}
	hash, err := hasher.Hash(demoPassword)
	if err != nil {
		return nil, err
	}

	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))
	keyFn := ratelimit.DefaultKeyFunc(cfg.RateKeyHeader, cfg.TrustXFF)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(ratelimit.Options{
			Limiter:             requests,
			Stats:               stats,
			Logger:              log.Named("http"),
			KeyFn:               keyFn,
			RetryAfter:          cfg.RetryAfter,
			Strict:              cfg.RateStrict,
			AddRateLimitHeaders: true,
		}))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
		})
	})

	r.Post("/login", loginHandler{
		svc:    application.Service{Limiter: logins, Strict: true},
		hasher: hasher,
		keyFn:  keyFn,
		log:    log.Named("login"),
		user:   cfg.DemoUser,
		hash:   hash,
	}.ServeHTTP)

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":   stats.Total(),
			"byRoute": stats.ByRoute(),
		})
	})

	return r, nil
}
