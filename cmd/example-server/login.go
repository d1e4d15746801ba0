package main

import (
	"net/http"

	"filelimit-gateway/middleware/ratelimit"
	"filelimit-gateway/middleware/ratelimit/application"
	"filelimit-gateway/middleware/ratelimit/domain"
	"filelimit-gateway/password"

	"go.uber.org/zap"
)

// loginHandler só registra tentativas que falharam; o login certo não consome a janela.
type loginHandler struct {
	svc    application.Service
	hasher *password.Hasher
	keyFn  ratelimit.KeyFunc
	log    *zap.Logger

	user string
	hash string
}

func (h loginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := r.FormValue("user")
	pw := r.FormValue("password")
	if user == "" || pw == "" {
		http.Error(w, "user and password are required", http.StatusBadRequest)
		return
	}

	key := domain.Key("login:" + h.keyFn(r))

	dec, err := h.svc.Check(r.Context(), key)
	if err != nil {
		h.log.Warn("login limit check degraded", zap.String("key", string(key)), zap.Error(err))
	}
	if !dec.Allowed {
		w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(dec.RetryAfter))
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}

	// Verify roda mesmo com usuário errado para o tempo de resposta não entregar qual campo falhou.
	ok := h.hasher.Verify(pw, h.hash)
	if !ok || user != h.user {
		if err := h.svc.Fail(r.Context(), key); err != nil {
			h.log.Warn("login failure not recorded", zap.String("key", string(key)), zap.Error(err))
		}
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("welcome " + user + "\n"))
}
