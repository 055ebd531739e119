package controlplane

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bearerAuth is an optional static-token check. Grounded on
// coffersTech-nanolog's controller.Store, which bcrypt-hashes secrets
// rather than comparing them raw; the control plane ships with no auth
// enabled by default, and operators turn it on by setting bearer_token in
// config, matching the "auth is optional, off by default" note.
type bearerAuth struct {
	tokenHash []byte
}

func newBearerAuth(token string) *bearerAuth {
	if token == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil
	}
	return &bearerAuth{tokenHash: hash}
}

func (a *bearerAuth) middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			w.Header().Set("WWW-Authenticate", `Bearer realm="observix"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)) != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
