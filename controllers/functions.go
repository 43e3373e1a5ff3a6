package controllers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"debtreminder-backend/services"
	"debtreminder-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Sweeps is the part of the reminder service the function endpoints call.
type Sweeps interface {
	RunReminderSweep(ctx context.Context, owner *uuid.UUID) (services.SweepSummary, error)
	RunOverdueDigest(ctx context.Context, owner *uuid.UUID) (services.DigestSummary, error)
	SendOwnerAlert(ctx context.Context, req services.OwnerAlert) error
}

type FunctionsController struct {
	sweeps Sweeps
	logger *slog.Logger
}

func NewFunctionsController(sweeps Sweeps, logger *slog.Logger) *FunctionsController {
	return &FunctionsController{sweeps: sweeps, logger: logger}
}

type SweepInput struct {
	UserID string `json:"user_id"`
}

type OwnerAlertInput struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
	DebtID      string `json:"debt_id" binding:"required"`
}

// sweepScope reads the optional user_id. Account tokens only ever sweep
// their own account; a service token sweeps every account unless it names one.
func sweepScope(c *gin.Context) (*uuid.UUID, bool) {
	caller, ok := accountID(c)
	if !ok {
		return nil, false
	}
	service := utils.IsService(c)

	var input SweepInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return nil, false
	}
	if input.UserID == "" {
		input.UserID = c.Query("user_id")
	}
	if input.UserID == "" {
		if service {
			return nil, true
		}
		return &caller, true
	}

	owner, err := uuid.Parse(input.UserID)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid user_id format")
		return nil, false
	}
	if !service && owner != caller {
		utils.RespondWithError(c, http.StatusForbidden, "Cannot run a sweep for another account")
		return nil, false
	}
	return &owner, true
}

// CheckOverdueDebts sends every owner a digest of debts due today or earlier.
func (fc *FunctionsController) CheckOverdueDebts(c *gin.Context) {
	owner, ok := sweepScope(c)
	if !ok {
		return
	}

	summary, err := fc.sweeps.RunOverdueDigest(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, fc.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SendReminders reminds customers whose debts fell due yesterday.
func (fc *FunctionsController) SendReminders(c *gin.Context) {
	owner, ok := sweepScope(c)
	if !ok {
		return
	}

	summary, err := fc.sweeps.RunReminderSweep(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, fc.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// TelegramSendMessage alerts the calling account's owner chat about one debt.
func (fc *FunctionsController) TelegramSendMessage(c *gin.Context) {
	caller, ok := accountID(c)
	if !ok {
		return
	}

	var input OwnerAlertInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Phone number and debt ID are required")
		return
	}
	debtID, err := uuid.Parse(input.DebtID)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid debt_id format")
		return
	}

	err = fc.sweeps.SendOwnerAlert(c.Request.Context(), services.OwnerAlert{
		AccountID:   caller,
		PhoneNumber: input.PhoneNumber,
		DebtID:      debtID,
	})
	if err != nil {
		respondServiceError(c, fc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reminder sent successfully"})
}
