package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDashboardOverview summarises the account's overdue and due-today debts.
func (rc *RecordsController) GetDashboardOverview(c *gin.Context) {
	owner, ok := accountID(c)
	if !ok {
		return
	}

	overview, err := rc.records.Overview(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}
