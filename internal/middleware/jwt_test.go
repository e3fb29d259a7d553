package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	"github.com/noah-isme/classroom-snapshot-api/internal/service"
)

func newJWTRouter(t *testing.T) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(service.AuthConfig{Secret: "secret"})
	r := gin.New()
	r.GET("/me", JWT(auth), func(c *gin.Context) {
		claims, ok := TenantFromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.TeacherID)
	})
	return r, auth
}

func TestJWTAcceptsBearerToken(t *testing.T) {
	r, auth := newJWTRouter(t)
	token, err := auth.IssueToken(models.Tenant{ID: "teacher-1"}, "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", w.Body.String())
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	r, _ := newJWTRouter(t)
	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}
