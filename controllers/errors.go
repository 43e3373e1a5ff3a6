package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"debtreminder-backend/services"
	"debtreminder-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondServiceError maps service sentinels to status codes. Anything
// unrecognised is logged and reported as a 500 without internals.
func respondServiceError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrOwnerNotRegistered):
		utils.RespondWithError(c, http.StatusNotFound, "Business owner has no active Telegram registration")
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(c, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrSweepInProgress):
		utils.RespondWithError(c, http.StatusConflict, "A sweep for this trigger is already running")
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrAmbiguousRegistration):
		utils.RespondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrDeliveryFailed):
		utils.RespondWithError(c, http.StatusBadGateway, "Message could not be delivered")
	default:
		logger.Error("request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		utils.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

func accountID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := utils.AccountID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Account not found in context")
	}
	return id, ok
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
