package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"debtreminder-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bearer(t *testing.T, account uuid.UUID) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, account, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func serviceBearer(t *testing.T) string {
	t.Helper()
	token, err := utils.GenerateServiceToken(testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

// newEngine returns a router whose routes all sit behind the JWT middleware.
func newEngine() (*gin.Engine, *gin.RouterGroup) {
	r := gin.New()
	return r, r.Group("", utils.AuthMiddleware(testSecret))
}

func do(t *testing.T, r http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
