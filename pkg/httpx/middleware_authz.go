package httpx

import (
	"net/http"
	"strings"
)

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := PrincipalFrom(r.Context()); !ok {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthority rejects anonymous requests with 401 and principals
// holding none of the listed authorities with 403.
func RequireAuthority(authorities ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeUnauthorized(w)
				return
			}
			for _, a := range authorities {
				if p.HasAuthority(a) {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(authorities, " ")+`"`)
			WriteError(w, http.StatusForbidden, "forbidden", "Access denied")
		})
	}
}

// The body is the same whatever step failed upstream.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer`)
	WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
}
