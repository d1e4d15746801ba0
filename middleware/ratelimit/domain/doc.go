// Package domain define contratos e tipos de domínio para o rate limit por janela deslizante.
//
// Este pacote não depende de net/http, de sistema de arquivos nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura (arquivos por chave, locks, Redis).
package domain
