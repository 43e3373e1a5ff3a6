package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"debtreminder-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdateHandler struct {
	got []services.Update
	err error
}

func (f *fakeUpdateHandler) Handle(_ context.Context, upd services.Update) error {
	f.got = append(f.got, upd)
	return f.err
}

func postUpdate(r http.Handler, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/functions/telegram-webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(telegramSecretHeader, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newWebhookRouter(h UpdateHandler, secret string) http.Handler {
	wc := NewWebhookController(h, secret, discardLogger())
	r := gin.New()
	r.POST("/functions/telegram-webhook", wc.TelegramWebhook)
	return r
}

const helpUpdate = `{"update_id": 7, "message": {"message_id": 1, "date": 0, "chat": {"id": 42, "type": "private"}, "text": "/help"}}`

func TestWebhookAcknowledgesMessages(t *testing.T) {
	h := &fakeUpdateHandler{}
	r := newWebhookRouter(h, "")

	w := postUpdate(r, helpUpdate, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true}`, w.Body.String())
	require.Len(t, h.got, 1)
	assert.Equal(t, services.IncomingMessage{UpdateID: 7, ChatID: 42, Text: "/help"}, h.got[0])

	w = postUpdate(r, `{"update_id": 8, "edited_message": {"message_id": 1, "date": 0, "chat": {"id": 42, "type": "private"}, "text": "x"}}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.UnknownPayload{UpdateID: 8}, h.got[1])
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	h := &fakeUpdateHandler{}
	w := postUpdate(newWebhookRouter(h, ""), `{"update_id":`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.got)
}

func TestWebhookSecret(t *testing.T) {
	h := &fakeUpdateHandler{}
	r := newWebhookRouter(h, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, postUpdate(r, helpUpdate, "").Code)
	assert.Equal(t, http.StatusUnauthorized, postUpdate(r, helpUpdate, "wrong").Code)
	assert.Empty(t, h.got)

	assert.Equal(t, http.StatusOK, postUpdate(r, helpUpdate, "s3cret").Code)
	assert.Len(t, h.got, 1)
}

func TestWebhookInternalFailure(t *testing.T) {
	h := &fakeUpdateHandler{err: errors.New("insert telegram_messages: connection reset")}
	w := postUpdate(newWebhookRouter(h, ""), helpUpdate, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}
