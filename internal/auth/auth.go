// Package auth issues and verifies admin session tokens and guards HTTP
// routes with them.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/models"
)

// Defaults applied by New.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultCookieName = "auth-token"
	bcryptCost        = 12
)

// Credential is a configured user with a bcrypt password hash.
type Credential struct {
	Username     string
	PasswordHash string
	Role         string
}

// Config configures token issuance and the accepted credentials.
type Config struct {
	Secret       string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
	APIKey       string
	Users        []Credential
}

// Claims are the JWT claims carried by a session token.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// User returns the principal named by the claims.
func (c *Claims) User() models.User {
	return models.User{ID: c.UserID, Username: c.Username, Role: c.Role}
}

// Service authenticates users and manages tokens.
type Service struct {
	cfg   Config
	users map[string]Credential
	now   func() time.Time
	// dummyHash is compared against for unknown usernames.
	dummyHash []byte
}

// New creates a Service. Secret must be set.
func New(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	users := make(map[string]Credential, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Role == "" {
			u.Role = models.RoleEditor
		}
		users[u.Username] = u
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("furrow-dummy"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("auth: init: %w", err)
	}
	return &Service{cfg: cfg, users: users, now: time.Now, dummyHash: dummy}, nil
}

// Authenticate checks username and password against the configured users.
func (s *Service) Authenticate(username, password string) (*models.User, error) {
	cred, ok := s.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	return &models.User{ID: cred.Username, Username: cred.Username, Role: cred.Role}, nil
}

// Issue signs a session token for u and returns it with its expiry.
func (s *Service) Issue(u models.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.TTL)
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return tok, exp, nil
}

// Verify parses and validates a session token.
func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	return claims, nil
}

// VerifyAPIKey reports whether key equals the configured service key.
func (s *Service) VerifyAPIKey(key string) bool {
	if s.cfg.APIKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) == 1
}

// SetCookie stores token in the session cookie.
func (s *Service) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// HashPassword returns a bcrypt hash suitable for the users config.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(h), nil
}
