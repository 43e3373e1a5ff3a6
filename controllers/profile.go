package controllers

import (
	"context"
	"log/slog"
	"net/http"

	"debtreminder-backend/models"
	"debtreminder-backend/services"
	"debtreminder-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountSettings covers the per-account switches the sweeps read.
type AccountSettings interface {
	ReminderSettings(ctx context.Context, owner uuid.UUID) (models.ReminderSettings, error)
	SaveReminderSettings(ctx context.Context, owner uuid.UUID, in services.ReminderSettingsInput) (models.ReminderSettings, error)
	NotificationPreference(ctx context.Context, owner uuid.UUID) (models.NotificationPreference, error)
	SaveNotificationPreference(ctx context.Context, owner uuid.UUID, dailyEnabled bool, minimum decimal.NullDecimal) (models.NotificationPreference, error)
}

type SettingsController struct {
	settings AccountSettings
	logger   *slog.Logger
}

func NewSettingsController(settings AccountSettings, logger *slog.Logger) *SettingsController {
	return &SettingsController{settings: settings, logger: logger}
}

type UpdateReminderSettingsInput struct {
	ReminderDaysBefore []int  `json:"reminder_days_before"`
	ReminderTime       string `json:"reminder_time"`
	TelegramEnabled    *bool  `json:"telegram_enabled" binding:"required"`
	EmailEnabled       *bool  `json:"email_enabled" binding:"required"`
}

type UpdateNotificationPreferenceInput struct {
	DailyEnabled      *bool               `json:"daily_enabled" binding:"required"`
	MinimumDebtAmount decimal.NullDecimal `json:"minimum_debt_amount"`
}

func (sc *SettingsController) GetReminderSettings(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	settings, err := sc.settings.ReminderSettings(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (sc *SettingsController) UpdateReminderSettings(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}

	var input UpdateReminderSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	settings, err := sc.settings.SaveReminderSettings(c.Request.Context(), owner, services.ReminderSettingsInput{
		ReminderDaysBefore: input.ReminderDaysBefore,
		ReminderTime:       input.ReminderTime,
		TelegramEnabled:    *input.TelegramEnabled,
		EmailEnabled:       *input.EmailEnabled,
	})
	if err != nil {
		respondServiceError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (sc *SettingsController) GetNotificationPreference(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	pref, err := sc.settings.NotificationPreference(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

func (sc *SettingsController) UpdateNotificationPreference(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}

	var input UpdateNotificationPreferenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	pref, err := sc.settings.SaveNotificationPreference(c.Request.Context(), owner, *input.DailyEnabled, input.MinimumDebtAmount)
	if err != nil {
		respondServiceError(c, sc.logger, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}
