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
)

type TelegramAccounts interface {
	VerificationCode(ctx context.Context, owner uuid.UUID) (models.VerificationCode, error)
	RefreshVerificationCode(ctx context.Context, owner uuid.UUID) (models.VerificationCode, error)
	TelegramStatus(ctx context.Context, owner uuid.UUID) (services.TelegramStatus, error)
	DeactivateTelegram(ctx context.Context, owner uuid.UUID) (int64, error)
	Registrations(ctx context.Context, owner uuid.UUID) ([]models.TelegramUser, error)
	SetRegistrationActive(ctx context.Context, owner, id uuid.UUID, active bool) (models.TelegramUser, error)
	LinkCustomerChat(ctx context.Context, link services.CustomerLink) (models.TelegramUser, error)
}

type TelegramController struct {
	accounts TelegramAccounts
	logger   *slog.Logger
}

func NewTelegramController(accounts TelegramAccounts, logger *slog.Logger) *TelegramController {
	return &TelegramController{accounts: accounts, logger: logger}
}

type UpdateRegistrationInput struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type LinkCustomerInput struct {
	TelegramChatID int64  `json:"telegram_chat_id" binding:"required"`
	CustomerID     string `json:"customer_id" binding:"required"`
}

func codeResponse(vc models.VerificationCode) gin.H {
	return gin.H{"code": vc.Code, "expires_at": vc.ExpiresAt}
}

// GetVerificationCode returns the live code the owner sends as
// /register_owner <code>, creating one when none is live.
func (tc *TelegramController) GetVerificationCode(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	vc, err := tc.accounts.VerificationCode(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, codeResponse(vc))
}

func (tc *TelegramController) RefreshVerificationCode(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	vc, err := tc.accounts.RefreshVerificationCode(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, codeResponse(vc))
}

func (tc *TelegramController) Status(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	status, err := tc.accounts.TelegramStatus(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (tc *TelegramController) Deactivate(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	n, err := tc.accounts.DeactivateTelegram(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deactivated": n})
}

func (tc *TelegramController) ListUsers(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	regs, err := tc.accounts.Registrations(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	if regs == nil {
		regs = []models.TelegramUser{}
	}
	c.JSON(http.StatusOK, regs)
}

func (tc *TelegramController) UpdateUser(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var input UpdateRegistrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	reg, err := tc.accounts.SetRegistrationActive(c.Request.Context(), owner, id, *input.IsActive)
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// LinkCustomer binds the chat id a customer saw after /start to one of the
// account's customers.
func (tc *TelegramController) LinkCustomer(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}

	var input LinkCustomerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	customerID, err := uuid.Parse(input.CustomerID)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid customer_id format")
		return
	}

	reg, err := tc.accounts.LinkCustomerChat(c.Request.Context(), services.CustomerLink{
		OwnerID:    owner,
		CustomerID: customerID,
		ChatID:     input.TelegramChatID,
	})
	if err != nil {
		respondServiceError(c, tc.logger, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}
