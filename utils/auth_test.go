package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(secret), func(c *gin.Context) {
		id, ok := AccountID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	return r
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	account := uuid.New()
	token, err := GenerateToken("s3cret", account, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	newAuthRouter("s3cret").ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, account.String(), w.Body.String())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	account := uuid.New()
	wrongKey, err := GenerateToken("other", account, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("s3cret", account, -time.Hour)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":   "",
		"wrong key": "Bearer " + wrongKey,
		"expired":   "Bearer " + expired,
		"garbage":   "Bearer not-a-token",
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		newAuthRouter("s3cret").ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestAuthMiddlewareMarksServiceTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", AuthMiddleware("s3cret"), func(c *gin.Context) {
		if IsService(c) {
			c.String(http.StatusOK, "service")
			return
		}
		c.String(http.StatusOK, "account")
	})

	service, err := GenerateServiceToken("s3cret", time.Hour)
	require.NoError(t, err)
	account, err := GenerateToken("s3cret", uuid.New(), time.Hour)
	require.NoError(t, err)

	for token, want := range map[string]string{service: "service", account: "account"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, want, w.Body.String())
	}
}

func TestGenerateTokenNeedsSecret(t *testing.T) {
	_, err := GenerateToken("", uuid.New(), time.Hour)
	assert.Error(t, err)
}
