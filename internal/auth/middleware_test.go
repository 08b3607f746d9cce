package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/westgate-auto/backend-westgate/internal/common"
)

func loginAs(t *testing.T, svc *Service, role string) string {
	t.Helper()
	ctx := context.Background()
	email := role + "@example.com"
	user, err := svc.Register(ctx, "Tester", email, "strongpass")
	require.NoError(t, err)
	if role == common.RoleAdmin {
		// The fake store lets tests promote users directly.
		queries := svc.queries.(*fakeQueries)
		u := queries.users[user.ID]
		u.Role = common.RoleAdmin
		queries.users[user.ID] = u
	}
	result, err := svc.Login(ctx, email, "strongpass", "", "")
	require.NoError(t, err)
	return result.AccessToken
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeQueries())
	m := Middleware{Service: svc}

	called := false
	handler := m.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.False(t, called)
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	svc := newTestAuthService(t, newFakeQueries())
	m := Middleware{Service: svc}
	token := loginAs(t, svc, common.RoleUser)

	var gotID, gotRole string
	handler := m.RequireAuth(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotID, _ = common.UserID(r.Context())
		gotRole, _ = common.Role(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, gotID)
	require.Equal(t, common.RoleUser, gotRole)
}

func TestRequireAdminRejectsRegularUser(t *testing.T) {
	svc := newTestAuthService(t, newFakeQueries())
	m := Middleware{Service: svc}
	token := loginAs(t, svc, common.RoleUser)

	handler := m.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	svc := newTestAuthService(t, newFakeQueries())
	m := Middleware{Service: svc}
	token := loginAs(t, svc, common.RoleAdmin)

	called := false
	handler := m.RequireAdmin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}
