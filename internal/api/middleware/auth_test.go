package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789"

func adminRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", append(AdminAuth(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("subject"))
	})...)
	return r
}

func doAuth(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/admin", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	w := doAuth(adminRouter(testSecret), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization header required")
}

func TestAuthMiddleware_NotBearer(t *testing.T) {
	w := doAuth(adminRouter(testSecret), "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidAdminToken(t *testing.T) {
	token, err := SignAdminToken(testSecret, "ops@example.com", RoleAdmin, time.Hour)
	require.NoError(t, err)

	w := doAuth(adminRouter(testSecret), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops@example.com", w.Body.String())
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	wrongKey, err := SignAdminToken("another-secret", "x", RoleAdmin, time.Hour)
	require.NoError(t, err)
	expired, err := SignAdminToken(testSecret, "x", RoleAdmin, -time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{Role: RoleAdmin}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AdminClaims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	r := adminRouter(testSecret)
	for name, tok := range map[string]string{
		"wrong key": wrongKey,
		"expired":   expired,
		"no exp":    noExp,
		"alg none":  unsigned,
		"garbage":   "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, doAuth(r, "Bearer "+tok).Code)
		})
	}
}

func TestAuthMiddleware_NonAdminRoleForbidden(t *testing.T) {
	token, err := SignAdminToken(testSecret, "viewer", "user", time.Hour)
	require.NoError(t, err)
	w := doAuth(adminRouter(testSecret), "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	w := doAuth(adminRouter(""), "Bearer anything")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	_, err := SignAdminToken("", "x", RoleAdmin, time.Hour)
	assert.Error(t, err)
}

func TestRequireRole_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("role", "admin")
		c.Next()
	})
	r.Use(RequireRole("admin"))
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("role", "user")
		c.Next()
	})
	r.Use(RequireRole("admin"))
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
