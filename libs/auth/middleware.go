package auth

import (
	"net/http"
	"strings"

	"github.com/calmspace/practice/libs/httpx"
)

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

func (v *Verifier) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	token, ok := bearerToken(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid Authorization header")
		return nil, false
	}
	claims, err := v.Verify(token)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
		return nil, false
	}
	p := Principal{Subject: claims.Subject, Role: claims.Role, Email: claims.Email}
	return r.WithContext(WithPrincipal(r.Context(), p)), true
}

// Optional attaches a principal when a bearer token is present. A present but
// invalid token is rejected rather than silently downgraded to anonymous.
func (v *Verifier) Optional() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			r, ok := v.authenticate(w, r)
			if !ok {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require rejects callers without a valid token (401) or without the capability (403).
func (v *Verifier) Require(c Capability) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := v.authenticate(w, r)
			if !ok {
				return
			}
			p, _ := PrincipalFromContext(r.Context())
			if !p.Can(c) {
				httpx.WriteError(w, http.StatusForbidden, "FORBIDDEN", "missing capability "+string(c))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
