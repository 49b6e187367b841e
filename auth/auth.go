/*
auth.go - Operator Sessions

PURPOSE:
  The station has one operator account configured at startup. Login
  checks the password against a bcrypt hash and issues a signed session
  token (HS256 JWT). Every other API route requires that token as
  "Authorization: Bearer <token>" or, for downloads, ?token=.

TOKEN:
  sub = username, jti = uuid, iat, exp = iat + session TTL

SEE ALSO:
  - api/server.go: Route protection
  - config/config.go: auth.* keys
*/
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrUnauthorized = errors.New("unauthorized")

const defaultTTL = 24 * time.Hour

// Claims is the session token payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Session is what Login hands back to the client.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticator verifies credentials and session tokens.
type Authenticator struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// Config is the static operator account.
type Config struct {
	Username string
	Password string
	// Secret signs tokens. Empty means a random per-process secret, so
	// sessions do not survive a restart.
	Secret string
	TTL    time.Duration
}

// New hashes the configured password once.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("auth: username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("auth: generate secret: %w", err)
		}
		secret = []byte(hex.EncodeToString(buf))
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Authenticator{
		username: cfg.Username,
		hash:     hash,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// WithClock returns a copy that reads time from now.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	cp := *a
	cp.now = now
	return &cp
}

// Login checks credentials and issues a session.
func (a *Authenticator) Login(username, password string) (*Session, error) {
	if username != a.username {
		// Same bcrypt cost for unknown users.
		_ = bcrypt.CompareHashAndPassword(a.hash, []byte(password))
		return nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}

	now := a.now()
	exp := now.Add(a.ttl)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	return &Session{Token: token, Username: username, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

// Verify parses a token and checks signature and expiry.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Username != a.username {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// =============================================================================
// HTTP
// =============================================================================

type claimsKey struct{}

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// TokenFromRequest reads the bearer token, falling back to ?token= for
// links that cannot carry headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid session. unauthorized
// writes the rejection so callers keep their own error envelope.
func (a *Authenticator) Middleware(unauthorized func(w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				unauthorized(w, r)
				return
			}
			claims, err := a.Verify(token)
			if err != nil {
				unauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
