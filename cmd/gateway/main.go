package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filelimit-gateway/internal/config"
	"filelimit-gateway/internal/logging"
	"filelimit-gateway/middleware/ratelimit"
	"filelimit-gateway/middleware/ratelimit/domain"
	"filelimit-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger ainda não existe
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.UpstreamURL == "" {
		log.Fatal("UPSTREAM_URL is required")
	}
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		log.Fatal("invalid UPSTREAM_URL", zap.Error(err))
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	limiter, err := infra.NewFileLimiter(cfg.RateDir, cfg.RateMaxRequests, cfg.RatePeriod,
		infra.WithLogger(log.Named("ratelimit")),
		infra.WithDebounce(cfg.RateDebounce),
		infra.WithLockTimeout(cfg.LockTimeout),
		infra.WithLockRetry(cfg.LockRetry, cfg.LockAttempts),
		infra.WithMaxOpenFiles(cfg.MaxOpenFiles),
	)
	if err != nil {
		log.Fatal("rate limiter init failed", zap.Error(err))
	}
	limiter.SetEnabled(cfg.RateEnabled)

	var statsStore domain.StatsStore
	if cfg.StatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.StatsRedisAddr,
			Password: cfg.StatsRedisPassword,
			DB:       cfg.StatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatal("redis stats ping error", zap.Error(err))
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.StatsPrefix),
			infra.WithStatsTTL(cfg.StatsTTL),
			infra.WithStatsBucket(cfg.StatsBucket),
			infra.WithStatsTrackKeys(cfg.StatsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	janitorEvery := cfg.RateJanitorEvery
	if janitorEvery <= 0 {
		janitorEvery = limiter.Period()
	}
	limiter.StartJanitor(ctx, janitorEvery)

	h := ratelimit.Middleware(ratelimit.Options{
		Limiter:             limiter,
		Stats:               statsStore,
		Logger:              log.Named("http"),
		KeyHeader:           cfg.RateKeyHeader,
		TrustXForwardedFor:  cfg.TrustXFF,
		RejectStatus:        http.StatusTooManyRequests,
		RetryAfter:          cfg.RetryAfter,
		Strict:              cfg.RateStrict,
		AddRateLimitHeaders: cfg.AddHeaders,
	})(proxy)

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.Stringer("upstream", target),
	)
	log.Info("rate limit",
		zap.Bool("enabled", cfg.RateEnabled),
		zap.String("dir", limiter.Dir()),
		zap.Int("max", limiter.Limit()),
		zap.Duration("period", limiter.Period()),
		zap.Bool("strict", cfg.RateStrict),
		zap.String("keyHeader", cfg.RateKeyHeader),
		zap.Bool("trustXFF", cfg.TrustXFF),
		zap.Duration("janitorEvery", janitorEvery),
	)
	log.Info("rate stats",
		zap.Bool("enabled", cfg.StatsEnabled),
		zap.String("redisAddr", cfg.StatsRedisAddr),
		zap.String("bucket", cfg.StatsBucket),
		zap.Duration("ttl", cfg.StatsTTL),
		zap.Bool("trackKeys", cfg.StatsTrackKeys),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
