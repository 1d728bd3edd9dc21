// internal/handlers/common.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/channelgrid/partner-portal/internal/lifecycle"
	"github.com/channelgrid/partner-portal/internal/provider"
	"github.com/channelgrid/partner-portal/internal/services"
	"github.com/channelgrid/partner-portal/internal/utils"
)

// handleServiceError translates service errors into the response envelope.
// Every handler funnels its service failures through here so the status
// mapping stays in one place.
func handleServiceError(c *gin.Context, err error) {
	var (
		modelConflict    *services.ModelConflictError
		providerConflict *services.ProviderModelConflictError
		quotaExceeded    *services.QuotaExceededError
		transition       *lifecycle.TransitionError
		apiErr           *provider.APIError
	)

	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, err.Error())
	case errors.Is(err, services.ErrValidation):
		utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, services.ErrInvalidKey):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, provider.ErrUnavailable):
		utils.BadGatewayResponse(c, "cloud provider is unavailable, please retry later")
	case errors.As(err, &modelConflict),
		errors.As(err, &providerConflict),
		errors.As(err, &transition):
		utils.ConflictResponse(c, err.Error())
	case errors.As(err, &quotaExceeded):
		utils.BadRequestResponse(c, err.Error())
	case errors.As(err, &apiErr):
		utils.BadGatewayResponse(c, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled service error")
		utils.InternalErrorResponse(c, "")
	}
}

// actorID extracts the authenticated user id set by the auth middleware.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	idStr, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	return id, true
}

// pathUUID parses a uuid path parameter, responding 400 on garbage input.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
