package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/starford/furrow/internal/models"
)

type ctxKey struct{}

// ServicePrincipal is the identity of requests carrying the API key.
var ServicePrincipal = models.User{ID: "api-key", Username: "service", Role: models.RoleService}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated principal, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}

// FromRequest resolves the caller: session cookie first, then a Bearer
// token, then the API key in X-API-Key or the apiKey query parameter.
func (s *Service) FromRequest(r *http.Request) (models.User, bool) {
	if c, err := r.Cookie(s.cfg.CookieName); err == nil && c.Value != "" {
		if claims, err := s.Verify(c.Value); err == nil {
			return claims.User(), true
		}
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if claims, err := s.Verify(strings.TrimPrefix(h, "Bearer ")); err == nil {
			return claims.User(), true
		}
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = r.URL.Query().Get("apiKey")
	}
	if s.VerifyAPIKey(key) {
		return ServicePrincipal, true
	}
	return models.User{}, false
}

// Identify attaches the caller to the request context when credentials are
// present. It never rejects.
func (s *Service) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := s.FromRequest(r); ok {
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without valid credentials with 401.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			u, ok = s.FromRequest(r)
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAdmin rejects unauthenticated requests with 401 and callers that
// are neither admins nor the service principal with 403.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFromContext(r.Context())
		if u.Role != models.RoleAdmin && u.Role != models.RoleService {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
