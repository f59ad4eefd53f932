package middleware

import (
	"net/http"
	"strings"
)

// Keys holds the API keys accepted by the server. Public keys grant
// read access, admin keys grant read and write access.
type Keys struct {
	Public []string
	Admin  []string
}

func (k Keys) empty() bool { return len(k.Public) == 0 && len(k.Admin) == 0 }

func readAuth(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func hasKey(given string, set []string) bool {
	if given == "" {
		return false
	}
	for _, k := range set {
		if k == given {
			return true
		}
	}
	return false
}

func require(check func(string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r)
			if key == "" {
				deny(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !check(key) {
				deny(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RequireAny admits requests that present either a public or an admin
// key. With no keys configured, everything is admitted (local dev).
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	if keys.empty() {
		return func(next http.Handler) http.Handler { return next }
	}
	return require(func(key string) bool {
		return hasKey(key, keys.Public) || hasKey(key, keys.Admin)
	})
}

// RequireAdmin only admits requests that present an admin key.
// With no admin keys configured, everything is admitted (local dev).
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	if len(keys.Admin) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return require(func(key string) bool { return hasKey(key, keys.Admin) })
}
