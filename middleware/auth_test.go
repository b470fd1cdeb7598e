package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpilot/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(jwtService *services.JWTService) *gin.Engine {
	r := gin.New()
	r.GET("/protected", Auth(jwtService), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    c.GetInt("user_id"),
			"user_email": c.GetString("user_email"),
		})
	})
	return r
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	r := authRouter(services.NewJWTService("test-secret"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization header required")
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	r := authRouter(services.NewJWTService("test-secret"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid or expired token")
}

func TestAuthRejectsTokenSignedWithOtherSecret(t *testing.T) {
	other := services.NewJWTService("other-secret")
	token, err := other.GenerateToken(7, "mallory@example.com")
	require.NoError(t, err)

	r := authRouter(services.NewJWTService("test-secret"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid or expired token")
}

func TestAuthPassesClaimsToHandler(t *testing.T) {
	jwtService := services.NewJWTService("test-secret")
	token, err := jwtService.GenerateToken(42, "dana@example.com")
	require.NoError(t, err)

	r := authRouter(jwtService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":42`)
	assert.Contains(t, w.Body.String(), "dana@example.com")
}

func TestAuthAcceptsBareToken(t *testing.T) {
	// TrimPrefix leaves the header untouched when the Bearer prefix is
	// absent, so a raw token is accepted as well.
	jwtService := services.NewJWTService("test-secret")
	token, err := jwtService.GenerateToken(9, "sam@example.com")
	require.NoError(t, err)

	r := authRouter(jwtService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
