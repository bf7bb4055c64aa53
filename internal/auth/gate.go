// Package auth implements the single shared-password gate and its cookie session.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"chronoly/internal/log"
)

// CookieName is the session cookie set after a successful login.
const CookieName = "chronoly-auth"

// ErrUnauthorized indicates a wrong password or an invalid session token.
var ErrUnauthorized = errors.New("unauthorized")

// Session is the verified session attached to a request.
type Session struct {
	ID       string
	IssuedAt time.Time
}

// Gate checks the shared secret and issues signed session tokens. Tokens do not
// expire; they live as long as the browser keeps the cookie.
type Gate struct {
	secret []byte
	key    []byte
	secure bool
	now    func() time.Time
	logger *log.Logger
}

// NewGate returns a gate for secret. An empty signingKey derives one from the
// secret, so changing the password invalidates existing sessions.
func NewGate(secret, signingKey string, secure bool, logger *log.Logger) (*Gate, error) {
	if secret == "" {
		return nil, errors.New("auth: empty secret")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	key := []byte(signingKey)
	if len(key) == 0 {
		sum := sha256.Sum256([]byte("chronoly-session:" + secret))
		key = sum[:]
	}
	return &Gate{
		secret: []byte(secret),
		key:    key,
		secure: secure,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentAuth),
	}, nil
}

// Login compares secret with the configured one in constant time and returns a
// fresh session token.
func (g *Gate) Login(secret string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(secret), g.secret) != 1 {
		g.logger.Warn("Login rejected")
		return "", ErrUnauthorized
	}

	id, err := newTokenID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	claims := jwt.RegisteredClaims{
		ID:       id,
		IssuedAt: jwt.NewNumericDate(g.now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	g.logger.Info("Login succeeded", "session_id", id)
	return token, nil
}

// Verify parses token and returns its session.
func (g *Gate) Verify(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.key, nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, ErrUnauthorized
	}

	s := Session{ID: claims.ID}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	return s, nil
}

// CheckSession reports whether token carries a valid signature.
func (g *Gate) CheckSession(token string) bool {
	_, err := g.Verify(token)
	return err == nil
}

// SessionCookie wraps token in the session cookie. It has no MaxAge, so it ends
// with the browser session.
func (g *Gate) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Logout expires the session cookie.
func (g *Gate) Logout(w http.ResponseWriter) {
	c := g.SessionCookie("")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
