// servidor-burrao é o upstream "sem proteção" usado para validar o gateway na mão:
//
//	LISTEN_ADDR=:8081 go run ./teste-validacao/servidor-burrao
//	UPSTREAM_URL=http://localhost:8081 RATE_MAX_REQUESTS=3 go run ./cmd/gateway
//	for i in $(seq 5); do curl -si localhost:8080/showTela | head -1; done
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"

	"filelimit-gateway/internal/logging"

	"go.uber.org/zap"
)

func main() {
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8081"
	}

	log, err := logging.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		_, _ = os.Stderr.WriteString("logger error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var hits atomic.Int64
	http.HandleFunc("/showTela", func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<h1>Tela do Sistema</h1><p>Requisição #%d recebida com sucesso!</p>", n)
		log.Info("showTela",
			zap.Int64("hit", n),
			zap.String("remote", r.RemoteAddr),
			zap.String("xff", r.Header.Get("X-Forwarded-For")),
		)
	})

	log.Info("upstream listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, nil); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}
