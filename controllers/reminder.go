// controllers/reminder.go
package controllers

import (
	"net/http"

	"debtreminder-backend/models"
	"debtreminder-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetReminders lists the account's reminder log, newest first, optionally
// for one debt.
func (rc *RecordsController) GetReminders(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}

	var debtID *uuid.UUID
	if raw := c.Query("debt_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid debt_id format")
			return
		}
		debtID = &id
	}

	reminders, err := rc.records.Reminders(c.Request.Context(), owner, debtID)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	c.JSON(http.StatusOK, reminders)
}
