package domain

import "time"

// Clock retorna o instante atual. Injetável para testes.
type Clock func() time.Time

// Sleeper bloqueia a goroutine chamadora pelo tempo indicado.
// Usado apenas no caminho de negação (debounce).
type Sleeper func(d time.Duration)

// Locker é a primitiva de lock exclusivo por nome (uma chave = um nome).
//
// TryLock nunca bloqueia: retorna ok=false quando outro detentor já tem o lock.
// A política de retry/backoff fica com quem chama, para poder ser limitada.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type Locker interface {
	TryLock(name string) (release func() error, ok bool, err error)
}
