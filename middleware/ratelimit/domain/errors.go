package domain

import "errors"

var (
	// ErrConfiguration: diretório não pode ser resolvido/criado ou parâmetros inválidos na construção.
	ErrConfiguration = errors.New("ratelimit: invalid configuration")

	// ErrMissingKey: nenhuma chave explícita e nenhuma chave padrão configurada.
	ErrMissingKey = errors.New("ratelimit: empty key and no default key")

	// ErrUnknownCount: a contagem não pôde ser determinada (mtime ilegível,
	// leitura parcial, lock não adquirido). É distinto de "zero".
	ErrUnknownCount = errors.New("ratelimit: unknown count")

	// ErrStorage: falha de escrita ao registrar um evento.
	ErrStorage = errors.New("ratelimit: storage failure")

	// ErrLockTimeout: o lock da chave não foi adquirido dentro do limite de tentativas/tempo.
	ErrLockTimeout = errors.New("ratelimit: lock not acquired")
)

func IsUnknownCount(err error) bool {
	return errors.Is(err, ErrUnknownCount)
}
