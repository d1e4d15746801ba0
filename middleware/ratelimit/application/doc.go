// Package application contém os casos de uso (regras de aplicação) do rate limit.
//
// Ele depende apenas do pacote domain e não conhece net/http nem o sistema de arquivos.
// Ex.: Service.Decide(ctx, key) registra o hit e retorna uma Decision (allow/deny + retry-after);
// Check/Fail atendem fluxos de login, onde só tentativas falhas contam.
package application
