package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartattendance/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDirectoryAuthenticate(t *testing.T) {
	dir, err := NewDirectory(DefaultAccounts)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantRole model.Role
		wantErr  error
	}{
		{name: "lecturer", username: "lecturer@uni.edu", password: "password123", wantRole: model.RoleLecturer},
		{name: "prefect mixed case", username: "  Prefect@Uni.edu ", password: "password123", wantRole: model.RoleClassPrefect},
		{name: "wrong password", username: "lecturer@uni.edu", password: "nope", wantErr: model.ErrInvalidCredentials},
		{name: "unknown user", username: "ghost@uni.edu", password: "password123", wantErr: model.ErrInvalidCredentials},
		{name: "empty", wantErr: model.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := dir.Authenticate(tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, usr.Role)
		})
	}

	usr, ok := dir.Lookup("prefect1")
	assert.True(t, ok)
	assert.Equal(t, "prefect@uni.edu", usr.Username)
}

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name     string
		role     model.Role
		required []model.Role
		want     bool
	}{
		{name: "any role, lecturer", role: model.RoleLecturer, want: true},
		{name: "any role, prefect", role: model.RoleClassPrefect, want: true},
		{name: "lecturer only, prefect", role: model.RoleClassPrefect, required: []model.Role{model.RoleLecturer}},
		{name: "lecturer only, lecturer", role: model.RoleLecturer, required: []model.Role{model.RoleLecturer}, want: true},
		{name: "prefect route, lecturer superset", role: model.RoleLecturer, required: []model.Role{model.RoleClassPrefect}, want: true},
		{name: "unknown role", role: "Janitor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.role, tt.required...))
		})
	}
}

func testSigner(now time.Time) Signer {
	return Signer{
		Key:        "test-key",
		Issuer:     "test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		Now:        func() time.Time { return now },
	}
}

func TestSignerIssueParse(t *testing.T) {
	now := time.Now()
	signer := testSigner(now)
	usr := model.User{ID: "lecturer1", Username: "lecturer@uni.edu", Role: model.RoleLecturer}

	pair, err := signer.Issue(usr)
	require.NoError(t, err)

	claims, err := signer.Parse(pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, usr, claims.User())
	assert.NotEmpty(t, claims.ID)

	_, err = signer.Parse(pair.AccessToken, TokenRefresh)
	assert.Error(t, err, "access token must not pass as refresh token")

	other := signer
	other.Key = "other-key"
	_, err = other.Parse(pair.AccessToken, TokenAccess)
	assert.Error(t, err)

	later := testSigner(now.Add(20 * time.Minute))
	_, err = later.Parse(pair.AccessToken, TokenAccess)
	assert.Error(t, err, "expired access token")
	_, err = later.Parse(pair.RefreshToken, TokenRefresh)
	assert.NoError(t, err, "refresh token still valid")
}

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewMemoryRevoker()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, r.Revoke(ctx, "b", now.Add(-time.Minute)))

	revoked, _ := r.Revoked(ctx, "a")
	assert.True(t, revoked)
	revoked, _ = r.Revoked(ctx, "b")
	assert.False(t, revoked, "already expired entries do not count")
	revoked, _ = r.Revoked(ctx, "c")
	assert.False(t, revoked)
}

func TestRequireSessionAndRoles(t *testing.T) {
	signer := testSigner(time.Now())
	revoker := NewMemoryRevoker()

	r := gin.New()
	r.GET("/common", RequireSession(signer, revoker), func(c *gin.Context) {
		s, _ := SessionFrom(c)
		c.String(http.StatusOK, s.User.ID)
	})
	r.GET("/lecturer", RequireSession(signer, revoker), RequireRoles(model.RoleLecturer), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	lecturer, err := signer.Issue(model.User{ID: "lecturer1", Role: model.RoleLecturer})
	require.NoError(t, err)
	prefect, err := signer.Issue(model.User{ID: "prefect1", Role: model.RoleClassPrefect})
	require.NoError(t, err)
	revokedPair, err := signer.Issue(model.User{ID: "prefect1", Role: model.RoleClassPrefect})
	require.NoError(t, err)
	claims, err := signer.Parse(revokedPair.AccessToken, TokenAccess)
	require.NoError(t, err)
	require.NoError(t, revoker.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
	}{
		{name: "no token", path: "/common", wantCode: http.StatusUnauthorized},
		{name: "garbage token", path: "/common", header: "Bearer nope", wantCode: http.StatusUnauthorized},
		{name: "refresh token as access", path: "/common", header: "Bearer " + prefect.RefreshToken, wantCode: http.StatusUnauthorized},
		{name: "prefect common", path: "/common", header: "Bearer " + prefect.AccessToken, wantCode: http.StatusOK},
		{name: "prefect lecturer route", path: "/lecturer", header: "Bearer " + prefect.AccessToken, wantCode: http.StatusForbidden},
		{name: "lecturer lecturer route", path: "/lecturer", header: "bearer " + lecturer.AccessToken, wantCode: http.StatusNoContent},
		{name: "revoked", path: "/common", header: "Bearer " + revokedPair.AccessToken, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
