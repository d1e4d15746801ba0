package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"filelimit-gateway/middleware/ratelimit/domain"

	"github.com/gofrs/flock"
	"golang.org/x/time/rate"
)

const (
	defaultLockTimeout  = 2 * time.Second
	defaultLockRetry    = 10 * time.Millisecond
	defaultLockAttempts = 200

	lockDirName = ".locks"
)

// FlockLocker usa locks consultivos do sistema operacional (flock) em arquivos
// dedicados, um por chave, dentro de dir. Funciona entre processos.
//
// O lock não fica no próprio arquivo de dados porque a compactação troca o inode
// (rename); um lock no inode antigo não protegeria o novo.
type FlockLocker struct {
	dir string
	now domain.Clock
}

func NewFlockLocker(dir string) (*FlockLocker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: lock dir %q: %v", domain.ErrConfiguration, dir, err)
	}
	return &FlockLocker{dir: dir, now: time.Now}, nil
}

func (l *FlockLocker) Dir() string { return l.dir }

func (l *FlockLocker) TryLock(name string) (func() error, bool, error) {
	path := filepath.Join(l.dir, name)
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	// mtime do arquivo de lock = último uso; Prune se baseia nisso.
	now := l.now()
	_ = os.Chtimes(path, now, now)

	return fl.Unlock, true, nil
}

// Prune remove arquivos de lock sem uso há mais de idle.
// Cada arquivo é travado antes de ser removido; lock ocupado é pulado.
func (l *FlockLocker) Prune(idle time.Duration) error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	cutoff := l.now().Add(-idle)
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(l.dir, e.Name())
		fl := flock.New(path)
		ok, err := fl.TryLock()
		if err != nil || !ok {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		_ = fl.Unlock()
	}
	return errors.Join(errs...)
}

// MemLocker é um Locker em memória (um mutex por nome).
// Útil com afero.MemMapFs e em testes; não coordena processos diferentes.
type MemLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemLocker() *MemLocker {
	return &MemLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MemLocker) TryLock(name string) (func() error, bool, error) {
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false, nil
	}
	var once sync.Once
	return func() error {
		once.Do(m.Unlock)
		return nil
	}, true, nil
}

// retryPolicy limita a espera pelo lock de uma chave: no máximo attempts
// tentativas, espaçadas por delay, e nunca além de timeout.
type retryPolicy struct {
	timeout  time.Duration
	delay    time.Duration
	attempts int
}

func (p retryPolicy) acquire(ctx context.Context, locker domain.Locker, name string) (func() error, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	pace := rate.NewLimiter(rate.Every(p.delay), 1)
	// o primeiro token fica para a tentativa imediata
	pace.Allow()

	for attempt := 1; ; attempt++ {
		release, ok, err := locker.TryLock(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockTimeout, name, err)
		}
		if ok {
			return release, nil
		}
		if p.attempts > 0 && attempt >= p.attempts {
			return nil, fmt.Errorf("%w: %s: %d attempts", domain.ErrLockTimeout, name, attempt)
		}
		if err := pace.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockTimeout, name, err)
		}
	}
}
