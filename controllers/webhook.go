package controllers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"debtreminder-backend/services"
	"debtreminder-backend/utils"

	"github.com/gin-gonic/gin"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type UpdateHandler interface {
	Handle(ctx context.Context, upd services.Update) error
}

type WebhookController struct {
	handler UpdateHandler
	secret  string
	logger  *slog.Logger
}

func NewWebhookController(handler UpdateHandler, secret string, logger *slog.Logger) *WebhookController {
	return &WebhookController{handler: handler, secret: secret, logger: logger}
}

// TelegramWebhook answers 200 for every update it could process, even when
// the command itself was rejected, so Telegram does not redeliver it.
func (wc *WebhookController) TelegramWebhook(c *gin.Context) {
	if wc.secret != "" {
		got := c.GetHeader(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(wc.secret)) != 1 {
			utils.RespondWithError(c, http.StatusUnauthorized, "Invalid webhook secret")
			return
		}
	}

	body, err := c.GetRawData()
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Could not read request body")
		return
	}

	upd, err := services.ParseUpdate(body)
	if err != nil {
		if errors.Is(err, services.ErrMalformedUpdate) {
			wc.logger.Warn("malformed telegram update", slog.Any("error", err))
			utils.RespondWithError(c, http.StatusBadRequest, "Malformed update")
			return
		}
		respondServiceError(c, wc.logger, err)
		return
	}

	if err := wc.handler.Handle(c.Request.Context(), upd); err != nil {
		wc.logger.Error("telegram update failed", slog.Any("error", err))
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
