package password

import (
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Hasher struct {
	cost int

	debounceMin time.Duration
	debounceMax time.Duration

	sleep func(time.Duration)
	rand  func(n int64) int64
}

type Option func(*Hasher)

// WithCost define o custo do bcrypt (bcrypt.MinCost..bcrypt.MaxCost).
func WithCost(cost int) Option {
	return func(h *Hasher) { h.cost = cost }
}

// WithDebounce faz Verify dormir um tempo aleatório em [min, max] quando a senha não confere.
func WithDebounce(min, max time.Duration) Option {
	return func(h *Hasher) {
		if max < min {
			min, max = max, min
		}
		h.debounceMin = min
		h.debounceMax = max
	}
}

func WithSleeper(sleep func(time.Duration)) Option {
	return func(h *Hasher) { h.sleep = sleep }
}

func New(opts ...Option) (*Hasher, error) {
	h := &Hasher{
		cost:  bcrypt.DefaultCost,
		sleep: time.Sleep,
		rand:  rand.Int63n,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.cost < bcrypt.MinCost || h.cost > bcrypt.MaxCost {
		return nil, bcrypt.InvalidCostError(h.cost)
	}
	return h, nil
}

func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compara a senha com o hash. Hash malformado conta como senha errada.
func (h *Hasher) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true
	}
	if d := h.debounce(); d > 0 {
		h.sleep(d)
	}
	return false
}

// NeedsRehash indica que o hash foi gerado com outro custo (ou é inválido).
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}

func (h *Hasher) debounce() time.Duration {
	if h.debounceMax <= 0 {
		return 0
	}
	span := int64(h.debounceMax - h.debounceMin)
	if span <= 0 {
		return h.debounceMin
	}
	return h.debounceMin + time.Duration(h.rand(span+1))
}
