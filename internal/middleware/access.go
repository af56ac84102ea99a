// Package middleware содержит HTTP middleware локального API клиента салона.
package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"
)

// AccessKeyHeader передаёт ключ доступа к локальному API.
const AccessKeyHeader = "X-Access-Key"

// AccessGuard ограничивает доступ к локальному API общим ключом.
// С пустым ключом пропускает все запросы.
type AccessGuard struct {
	digest []byte
}

// NewAccessGuard создаёт AccessGuard для указанного ключа.
func NewAccessGuard(key string) *AccessGuard {
	if key == "" {
		return &AccessGuard{}
	}
	return &AccessGuard{digest: sum(key)}
}

// Enabled сообщает, настроен ли ключ.
func (g *AccessGuard) Enabled() bool {
	return len(g.digest) > 0
}

// Middleware сверяет ключ из заголовка X-Access-Key или Authorization: Bearer.
func (g *AccessGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(AccessKeyHeader)
		if key == "" {
			key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}

		if key == "" || !hmac.Equal(sum(key), g.digest) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func sum(key string) []byte {
	h := sha256.Sum256([]byte(key))
	return h[:]
}
