package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth() *Authenticator {
	return New(Config{Secret: []byte("test-secret"), Issuer: "clinic-booking", TTL: time.Hour})
}

func protected(a *Authenticator) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return a.Middleware(RequireAdmin(ContextRoles{})(ok))
}

func call(h http.Handler, header string) int {
	req := httptest.NewRequest(http.MethodGet, "/availability", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAdmin(t *testing.T) {
	a := newTestAuth()
	h := protected(a)

	admin, err := a.Sign("doctor", []string{RoleAdmin}, time.Now())
	require.NoError(t, err)
	staff, err := a.Sign("reception", []string{"viewer"}, time.Now())
	require.NoError(t, err)
	expired, err := a.Sign("doctor", []string{RoleAdmin}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	other := New(Config{Secret: []byte("other-secret"), Issuer: "clinic-booking"})
	forged, err := other.Sign("doctor", []string{RoleAdmin}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, call(h, "Bearer "+admin))
	assert.Equal(t, http.StatusNoContent, call(h, "bearer "+admin))
	assert.Equal(t, http.StatusForbidden, call(h, "Bearer "+staff))
	assert.Equal(t, http.StatusUnauthorized, call(h, ""))
	assert.Equal(t, http.StatusUnauthorized, call(h, "Bearer "+expired))
	assert.Equal(t, http.StatusUnauthorized, call(h, "Bearer "+forged))
	assert.Equal(t, http.StatusUnauthorized, call(h, "Token "+admin))
}

type denyAll struct{}

func (denyAll) IsAdmin(ctx context.Context) bool { return false }

func TestRequireAdminAsksRoleProvider(t *testing.T) {
	a := newTestAuth()
	admin, err := a.Sign("doctor", []string{RoleAdmin}, time.Now())
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := a.Middleware(RequireAdmin(denyAll{})(ok))

	assert.Equal(t, http.StatusForbidden, call(h, "Bearer "+admin))
	assert.Equal(t, http.StatusUnauthorized, call(h, ""))
}

func TestMiddlewareLeavesBadTokensAnonymous(t *testing.T) {
	a := newTestAuth()
	expired, err := a.Sign("doctor", []string{RoleAdmin}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	for _, header := range []string{"Bearer " + expired, "Bearer garbage", "Token abc"} {
		var reached, hasClaims bool
		h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			_, hasClaims = ClaimsFrom(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		assert.Equal(t, http.StatusOK, call(h, header), header)
		assert.True(t, reached, header)
		assert.False(t, hasClaims, header)
	}
}

func TestContextRoles(t *testing.T) {
	a := newTestAuth()
	token, err := a.Sign("doctor", []string{RoleAdmin}, time.Now())
	require.NoError(t, err)

	var isAdmin bool
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isAdmin = ContextRoles{}.IsAdmin(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, isAdmin)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, isAdmin)
}
