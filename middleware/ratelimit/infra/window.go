package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"filelimit-gateway/middleware/ratelimit/domain"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	DefaultMaxRequests = 60
	DefaultPeriod      = 60 * time.Second
)

// FileLimiter é uma janela deslizante persistida em disco: um arquivo por chave
// (sha1 da chave) contendo um timestamp por evento.
//
// Toda a coordenação é feita por locks por chave, então várias instâncias
// (inclusive em processos diferentes) podem apontar para o mesmo diretório.
// Nenhuma operação segura mais de um lock ao mesmo tempo.
type FileLimiter struct {
	dir    string
	max    int
	period time.Duration

	fs      afero.Fs
	locker  domain.Locker
	now     domain.Clock
	sleep   domain.Sleeper
	log     *zap.Logger
	slots   domain.SlotPool
	retry   retryPolicy
	maxOpen int

	enabled   atomic.Bool
	lastCount atomic.Int64

	mu         sync.RWMutex
	defaultKey string
	debounce   time.Duration
}

type Option func(*FileLimiter)

// WithFs troca o sistema de arquivos (ex: afero.NewMemMapFs() em testes).
// Sem WithLocker explícito, um fs que não seja o do SO usa MemLocker.
func WithFs(fs afero.Fs) Option {
	return func(l *FileLimiter) { l.fs = fs }
}

func WithLocker(locker domain.Locker) Option {
	return func(l *FileLimiter) { l.locker = locker }
}

func WithClock(now domain.Clock) Option {
	return func(l *FileLimiter) { l.now = now }
}

func WithSleeper(sleep domain.Sleeper) Option {
	return func(l *FileLimiter) { l.sleep = sleep }
}

func WithLogger(log *zap.Logger) Option {
	return func(l *FileLimiter) { l.log = log }
}

func WithDebounce(d time.Duration) Option {
	return func(l *FileLimiter) { l.debounce = d }
}

func WithDefaultKey(key string) Option {
	return func(l *FileLimiter) { l.defaultKey = key }
}

// WithLockTimeout limita o tempo total de espera pelo lock de uma chave.
func WithLockTimeout(d time.Duration) Option {
	return func(l *FileLimiter) { l.retry.timeout = d }
}

// WithLockRetry define o intervalo entre tentativas de lock e o número máximo de tentativas.
// attempts <= 0 deixa só o timeout como limite.
func WithLockRetry(delay time.Duration, attempts int) Option {
	return func(l *FileLimiter) {
		l.retry.delay = delay
		l.retry.attempts = attempts
	}
}

// WithMaxOpenFiles limita quantos arquivos de chave este processo mantém abertos ao mesmo tempo.
func WithMaxOpenFiles(n int) Option {
	return func(l *FileLimiter) { l.maxOpen = n }
}

func WithDisabled() Option {
	return func(l *FileLimiter) { l.enabled.Store(false) }
}

// NewFileLimiter cria (se preciso) o diretório path e devolve o limiter.
// maxRequests eventos são permitidos a cada period; period é usado em segundos inteiros.
func NewFileLimiter(path string, maxRequests int, period time.Duration, opts ...Option) (*FileLimiter, error) {
	if maxRequests < 0 {
		return nil, fmt.Errorf("%w: max requests must be >= 0, got %d", domain.ErrConfiguration, maxRequests)
	}
	if period < time.Second {
		return nil, fmt.Errorf("%w: period must be >= 1s, got %s", domain.ErrConfiguration, period)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty directory", domain.ErrConfiguration)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", domain.ErrConfiguration, path, err)
	}

	l := &FileLimiter{
		dir:    abs,
		max:    maxRequests,
		period: period.Truncate(time.Second),
		now:    time.Now,
		sleep:  time.Sleep,
		log:    zap.NewNop(),
		retry: retryPolicy{
			timeout:  defaultLockTimeout,
			delay:    defaultLockRetry,
			attempts: defaultLockAttempts,
		},
	}
	l.enabled.Store(true)
	for _, opt := range opts {
		opt(l)
	}
	if l.fs == nil {
		l.fs = afero.NewOsFs()
	}

	if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %q: %v", domain.ErrConfiguration, l.dir, err)
	}
	info, err := l.fs.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %v", domain.ErrConfiguration, l.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", domain.ErrConfiguration, l.dir)
	}

	if l.locker == nil {
		if _, ok := l.fs.(*afero.OsFs); ok {
			fl, err := NewFlockLocker(filepath.Join(l.dir, lockDirName))
			if err != nil {
				return nil, err
			}
			l.locker = fl
		} else {
			l.locker = NewMemLocker()
		}
	}
	l.slots = NewChanPool(l.maxOpen)

	return l, nil
}

func (l *FileLimiter) Dir() string { return l.dir }
func (l *FileLimiter) Limit() int { return l.max }
func (l *FileLimiter) Period() time.Duration { return l.period }
func (l *FileLimiter) Enabled() bool { return l.enabled.Load() }
func (l *FileLimiter) LastCount() int { return int(l.lastCount.Load()) }
func (l *FileLimiter) Enable() *FileLimiter { return l.SetEnabled(true) }
func (l *FileLimiter) Disable() *FileLimiter { return l.SetEnabled(false) }

func (l *FileLimiter) SetEnabled(enabled bool) *FileLimiter {
	l.enabled.Store(enabled)
	return l
}

// SetDefaultKey define a chave usada quando uma operação recebe key vazia.
func (l *FileLimiter) SetDefaultKey(key string) *FileLimiter {
	l.mu.Lock()
	l.defaultKey = key
	l.mu.Unlock()
	return l
}

// SetDebounce define o atraso aplicado após uma negação. 0 desliga.
func (l *FileLimiter) SetDebounce(d time.Duration) *FileLimiter {
	l.mu.Lock()
	l.debounce = d
	l.mu.Unlock()
	return l
}

func (l *FileLimiter) resolve(key string) (string, error) {
	if key != "" {
		return key, nil
	}
	l.mu.RLock()
	key = l.defaultKey
	l.mu.RUnlock()
	if key == "" {
		return "", domain.ErrMissingKey
	}
	return key, nil
}

func (l *FileLimiter) keyPath(name string) string {
	return filepath.Join(l.dir, name)
}

// Record anexa o timestamp atual ao arquivo da chave, sob lock exclusivo.
// Cada evento é um único Write em O_APPEND: appends concorrentes nunca se intercalam.
func (l *FileLimiter) Record(ctx context.Context, key string) error {
	key, err := l.resolve(key)
	if err != nil {
		return err
	}
	if !l.Enabled() {
		return nil
	}

	name := keyFileName(key)

	release, ok := l.slots.Acquire(ctx)
	if !ok {
		return fmt.Errorf("%w: %s: %v", domain.ErrLockTimeout, name, ctx.Err())
	}
	defer release()

	unlock, err := l.retry.acquire(ctx, l.locker, name)
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	path := l.keyPath(name)
	now := l.now()
	f, err := l.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", domain.ErrStorage, name, err)
	}
	if _, err := f.Write(encodeStamp(now.Unix())); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: append %s: %v", domain.ErrStorage, name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", domain.ErrStorage, name, err)
	}
	// mtime segue o mesmo relógio dos timestamps
	_ = l.fs.Chtimes(path, now, now)
	return nil
}

// Query conta os eventos da chave dentro da janela e compacta o arquivo.
//
// Retorna 0 se o limiter está desligado, se a chave nunca foi vista ou se o
// arquivo inteiro é mais velho que a janela (nesse caso ele é removido).
// Qualquer falha de leitura/lock vira ErrUnknownCount.
func (l *FileLimiter) Query(ctx context.Context, key string) (int, error) {
	key, err := l.resolve(key)
	if err != nil {
		return 0, err
	}
	if !l.Enabled() {
		return 0, nil
	}

	name := keyFileName(key)
	path := l.keyPath(name)

	if _, err := l.fs.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.lastCount.Store(0)
			return 0, nil
		}
		return 0, fmt.Errorf("%w: stat %s: %v", domain.ErrUnknownCount, name, err)
	}

	release, ok := l.slots.Acquire(ctx)
	if !ok {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrUnknownCount, name, ctx.Err())
	}
	defer release()

	unlock, err := l.retry.acquire(ctx, l.locker, name)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrUnknownCount, err)
	}
	defer func() { _ = unlock() }()

	count, err := l.compactLocked(name, path)
	if err != nil {
		l.log.Warn("ratelimit query failed", zap.String("file", name), zap.Error(err))
		return 0, err
	}
	l.lastCount.Store(int64(count))
	return count, nil
}

// compactLocked assume o lock da chave já adquirido.
func (l *FileLimiter) compactLocked(name, path string) (int, error) {
	now := l.now()

	info, err := l.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// removido por Clear/Expire entre o primeiro Stat e o lock
			return 0, nil
		}
		return 0, fmt.Errorf("%w: stat %s: %v", domain.ErrUnknownCount, name, err)
	}
	if now.Sub(info.ModTime()) > l.period {
		if err := l.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: remove expired %s: %v", domain.ErrUnknownCount, name, err)
		}
		return 0, nil
	}

	f, err := l.fs.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", domain.ErrUnknownCount, name, err)
	}
	c, err := compact(f, now, l.period)
	_ = f.Close()
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", domain.ErrUnknownCount, name, err)
	}

	if c.changed() {
		if err := l.replace(name, path, c.encode(), now); err != nil {
			return 0, fmt.Errorf("%w: rewrite %s: %v", domain.ErrUnknownCount, name, err)
		}
	}
	return c.count(), nil
}

// replace grava data num temporário do mesmo diretório e faz rename por cima do
// original. Um leitor concorrente vê o arquivo antigo ou o novo, nunca um parcial.
// Conteúdo vazio também é gravado: "vista recentemente" continua distinto de "nunca vista".
func (l *FileLimiter) replace(name, path string, data []byte, now time.Time) error {
	tmp, err := afero.TempFile(l.fs, l.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = l.fs.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = l.fs.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = l.fs.Remove(tmpPath)
		return err
	}
	_ = l.fs.Chtimes(tmpPath, now, now)
	if err := l.fs.Rename(tmpPath, path); err != nil {
		_ = l.fs.Remove(tmpPath)
		return err
	}
	return nil
}

// IsAllowed decide se a chave ainda cabe no limite: permitido sse max >= count.
//
// Com contagem desconhecida, strict=true nega e strict=false permite; o erro
// ErrUnknownCount é devolvido junto com a decisão, para quem quiser logar.
// Ao negar, se houver debounce configurado, dorme na goroutine chamadora antes
// de retornar (penalidade de tempo de resposta contra tentativas repetidas).
func (l *FileLimiter) IsAllowed(ctx context.Context, key string, strict bool) (bool, error) {
	allowed, _, err := l.Evaluate(ctx, key, strict)
	return allowed, err
}

// Evaluate faz o mesmo que IsAllowed e devolve a contagem desta Query.
func (l *FileLimiter) Evaluate(ctx context.Context, key string, strict bool) (bool, int, error) {
	count, err := l.Query(ctx, key)
	var allowed bool
	switch {
	case errors.Is(err, domain.ErrMissingKey):
		return false, 0, err
	case err != nil:
		allowed = !strict
	default:
		allowed = l.max >= count
	}

	if !allowed {
		l.mu.RLock()
		d := l.debounce
		l.mu.RUnlock()
		if d > 0 {
			l.sleep(d)
		}
	}
	return allowed, count, err
}

// Clear remove arquivos do diretório. Com expireOnly=false remove tudo;
// com expireOnly=true só os arquivos cujo mtime é mais velho que a janela
// (ou ilegível). Desligado, não faz nada.
func (l *FileLimiter) Clear(ctx context.Context, expireOnly bool) error {
	if !l.Enabled() {
		return nil
	}

	entries, err := afero.ReadDir(l.fs, l.dir)
	if err != nil {
		return fmt.Errorf("%w: list %s: %v", domain.ErrStorage, l.dir, err)
	}

	now := l.now()
	var errs []error
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if e.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		if expireOnly {
			info, err := l.fs.Stat(path)
			if err == nil && now.Sub(info.ModTime()) <= l.period {
				continue
			}
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
		}
		if err := l.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if p, ok := l.locker.(interface{ Prune(time.Duration) error }); ok {
		idle := l.period
		if !expireOnly {
			idle = 0
		}
		if err := p.Prune(idle); err != nil {
			errs = append(errs, err)
		}
	}

	l.log.Debug("ratelimit clear",
		zap.String("dir", l.dir),
		zap.Bool("expire_only", expireOnly),
		zap.Int("removed", removed),
	)
	return errors.Join(errs...)
}

// Expire remove apenas os arquivos expirados. Equivale a Clear(ctx, true).
func (l *FileLimiter) Expire(ctx context.Context) error {
	return l.Clear(ctx, true)
}
