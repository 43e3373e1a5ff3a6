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

// AccountRecords is the record keeping side of the account service.
type AccountRecords interface {
	Reminders(ctx context.Context, owner uuid.UUID, debtID *uuid.UUID) ([]models.Reminder, error)
	SetDebtStatus(ctx context.Context, owner, id uuid.UUID, status models.DebtStatus) (models.Debt, error)
	DeleteCustomer(ctx context.Context, owner, id uuid.UUID) error
	Overview(ctx context.Context, owner uuid.UUID) (services.DebtOverview, error)
}

type RecordsController struct {
	records AccountRecords
	logger  *slog.Logger
}

func NewRecordsController(records AccountRecords, logger *slog.Logger) *RecordsController {
	return &RecordsController{records: records, logger: logger}
}

// DeleteCustomer removes a customer together with everything recorded
// against them.
func (rc *RecordsController) DeleteCustomer(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := rc.records.DeleteCustomer(c.Request.Context(), owner, id); err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}

type UpdateDebtStatusInput struct {
	Status models.DebtStatus `json:"status" binding:"required,oneof=pending paid overdue"`
}

func (rc *RecordsController) UpdateDebtStatus(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var input UpdateDebtStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	debt, err := rc.records.SetDebtStatus(c.Request.Context(), owner, id, input.Status)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, debt)
}
