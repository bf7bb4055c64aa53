package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/login"

type sessionKey struct{}

// SessionFromContext returns the verified session, if present.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// Middleware requires a valid session on every path except LoginPath and the
// public ones. A public path ending in "/" matches as a prefix.
// Page requests without a session are redirected to LoginPath; API requests get 401.
func (g *Gate) Middleware(public ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				session Session
				valid   bool
			)
			if c, err := r.Cookie(CookieName); err == nil {
				var verr error
				session, verr = g.Verify(c.Value)
				valid = verr == nil
			}

			if r.URL.Path == LoginPath {
				if valid && r.Method == http.MethodGet {
					http.Redirect(w, r, "/", http.StatusSeeOther)
					return
				}
				NoStore(w)
				next.ServeHTTP(w, r)
				return
			}

			if isPublic(r.URL.Path, public) {
				next.ServeHTTP(w, r)
				return
			}

			if !valid {
				if isAPI(r) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
					return
				}
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}

			NoStore(w)
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// NoStore marks the response as uncacheable.
func NoStore(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-store, max-age=0")
	h.Set("Surrogate-Control", "no-store")
	h.Set("Pragma", "no-cache")
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		if p == path {
			return true
		}
		if strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
