package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slnfs/station-ledger/auth"
)

func newAuth(t *testing.T) *auth.Authenticator {
	t.Helper()
	a, err := auth.New(auth.Config{Username: "admin", Password: "admin", Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)
	return a
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	// GIVEN: The configured operator
	a := newAuth(t)

	// WHEN: Logging in with the right password
	s, err := a.Login("admin", "admin")
	require.NoError(t, err)

	// THEN: The token verifies and names the operator
	claims, err := a.Verify(s.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, 5*time.Second)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	a := newAuth(t)

	tests := []struct{ name, user, pass string }{
		{"wrong password", "admin", "nope"},
		{"unknown user", "root", "admin"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Login(tt.user, tt.pass)
			assert.True(t, errors.Is(err, auth.ErrUnauthorized))
		})
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	// GIVEN: A token issued two hours ago with a one hour TTL
	a := newAuth(t)
	issued := time.Now().Add(-2 * time.Hour)
	s, err := a.WithClock(func() time.Time { return issued }).Login("admin", "admin")
	require.NoError(t, err)

	// WHEN: Verifying now
	_, err = a.Verify(s.Token)

	// THEN: It is rejected
	assert.True(t, errors.Is(err, auth.ErrUnauthorized))
}

func TestVerify_OtherSecret(t *testing.T) {
	a := newAuth(t)
	other, err := auth.New(auth.Config{Username: "admin", Password: "admin", Secret: "different"})
	require.NoError(t, err)

	s, err := other.Login("admin", "admin")
	require.NoError(t, err)

	_, err = a.Verify(s.Token)
	assert.True(t, errors.Is(err, auth.ErrUnauthorized))
}

func TestNew_RandomSecretWhenEmpty(t *testing.T) {
	a1, err := auth.New(auth.Config{Username: "admin", Password: "admin"})
	require.NoError(t, err)
	a2, err := auth.New(auth.Config{Username: "admin", Password: "admin"})
	require.NoError(t, err)

	s, err := a1.Login("admin", "admin")
	require.NoError(t, err)

	_, err = a1.Verify(s.Token)
	assert.NoError(t, err)
	_, err = a2.Verify(s.Token)
	assert.Error(t, err)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := auth.New(auth.Config{Username: "admin"})
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a := newAuth(t)
	s, err := a.Login("admin", "admin")
	require.NoError(t, err)

	var seen string
	h := a.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.FromContext(r.Context())
		if ok {
			seen = c.Username
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		want   int
	}{
		{"no token", func(*http.Request) {}, "/x", http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "/x", http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+s.Token) }, "/x", http.StatusNoContent},
		{"query", func(*http.Request) {}, "/x?token=" + s.Token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "admin", seen)
}
