// Package password embrulha golang.org/x/crypto/bcrypt com o mesmo tipo de
// penalidade que o rate limit aplica: um atraso aleatório após uma senha errada.
//
// O algoritmo em si é todo do bcrypt; aqui só existem custo, debounce e rehash.
package password
