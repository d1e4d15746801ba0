package ratelimit

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filelimit-gateway/middleware/ratelimit/domain"
	"filelimit-gateway/middleware/ratelimit/infra"

	"github.com/spf13/afero"
)

type busyLocker struct{}

func (busyLocker) TryLock(string) (func() error, bool, error) { return nil, false, nil }

func newLimiter(t *testing.T, max int, opts ...infra.Option) (*infra.FileLimiter, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	lim, err := infra.NewFileLimiter("/rl", max, time.Minute, append([]infra.Option{infra.WithFs(fs)}, opts...)...)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return lim, fs
}

func get(h http.Handler, remote string, header map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://example/showTela", nil)
	r.RemoteAddr = remote
	for k, v := range header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	lim, _ := newLimiter(t, 1)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Limiter:             lim,
		RejectStatus:        http.StatusTooManyRequests,
		AddRateLimitHeaders: true,
	})(next)

	// 1) primeira passa
	w1 := get(h, "10.0.0.1:1234", nil)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=10.0.0.1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Fatalf("expected X-RateLimit-Limit=1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Count"); got != "1" {
		t.Fatalf("expected X-RateLimit-Count=1, got %q", got)
	}

	// 2) segunda deve bloquear (max=1 na janela)
	w2 := get(h, "10.0.0.1:1234", nil)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After=60 (period), got %q", got)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
}

func TestMiddleware_KeyByHeader(t *testing.T) {
	lim, _ := newLimiter(t, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Limiter:   lim,
		KeyHeader: "X-Api-Key",
	})(next)

	// duas chaves diferentes => ambas passam (cada chave tem seu próprio arquivo)
	for _, k := range []string{"k1", "k2"} {
		w := get(h, "10.0.0.1:1234", map[string]string{"X-Api-Key": k})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for key %s, got %d", k, w.Code)
		}
	}

	w := get(h, "10.0.0.1:1234", map[string]string{"X-Api-Key": "k1"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeated key k1, got %d", w.Code)
	}
}

func TestMiddleware_RetryAfterRoundsUpSeconds(t *testing.T) {
	lim, _ := newLimiter(t, 0)

	h := Middleware(Options{
		Limiter:    lim,
		RetryAfter: 2500 * time.Millisecond,
	})(http.NotFoundHandler())

	w := get(h, "10.0.0.1:1234", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Header().Get("Retry-After")); got != "3" {
		t.Fatalf("expected Retry-After=3, got %q", got)
	}
}

func TestMiddleware_RecordsStats(t *testing.T) {
	lim, _ := newLimiter(t, 1)
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	h := Middleware(Options{Limiter: lim, Stats: stats})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	get(h, "10.0.0.1:1", nil)
	get(h, "10.0.0.1:1", nil)

	total := stats.Total()
	if total.Allowed != 1 || total.Denied != 1 {
		t.Fatalf("expected 1 allowed and 1 denied, got %+v", total)
	}
	if got := stats.ByKey()["10.0.0.1"].LastCount; got != 2 {
		t.Fatalf("expected last count 2, got %d", got)
	}
	if _, ok := stats.ByRoute()["GET /showTela"]; !ok {
		t.Fatalf("expected route stats for GET /showTela")
	}
}

func TestMiddleware_UnknownCountFollowsStrict(t *testing.T) {
	key := "10.0.0.9"
	sum := sha1.Sum([]byte(key))

	for _, tc := range []struct {
		strict bool
		want   int
	}{
		{strict: false, want: http.StatusOK},
		{strict: true, want: http.StatusTooManyRequests},
	} {
		lim, fs := newLimiter(t, 5, infra.WithLocker(busyLocker{}), infra.WithLockRetry(time.Millisecond, 2))
		// arquivo já existe, mas o lock nunca sai: contagem desconhecida
		if err := afero.WriteFile(fs, filepath.Join(lim.Dir(), hex.EncodeToString(sum[:])), []byte("1\n"), 0o644); err != nil {
			t.Fatalf("seed key file: %v", err)
		}

		stats := infra.NewMemoryStatsStore()
		h := Middleware(Options{Limiter: lim, Stats: stats, Strict: tc.strict})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		w := get(h, key+":5555", nil)
		if w.Code != tc.want {
			t.Fatalf("strict=%v: expected %d, got %d", tc.strict, tc.want, w.Code)
		}
		if stats.Total().Unknown != 1 {
			t.Fatalf("strict=%v: expected unknown outcome, got %+v", tc.strict, stats.Total())
		}
	}
}

func TestMiddleware_NoLimiterPassesThrough(t *testing.T) {
	h := Middleware(Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	if w := get(h, "10.0.0.1:1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

var _ domain.WindowLimiter = (*infra.FileLimiter)(nil)
