// internal/handlers/usage.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/channelgrid/partner-portal/internal/services"
	"github.com/channelgrid/partner-portal/internal/utils"
)

type UsageHandler struct {
	usageService *services.UsageService
}

func NewUsageHandler(usageService *services.UsageService) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

// GET /usage?tenant_ids=a,b,c
func (h *UsageHandler) GetUsage(c *gin.Context) {
	raw := c.Query("tenant_ids")
	if raw == "" {
		utils.BadRequestResponse(c, "tenant_ids query parameter is required")
		return
	}

	var tenantIDs []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			tenantIDs = append(tenantIDs, id)
		}
	}

	usage, err := h.usageService.GetReconciledUsage(c.Request.Context(), tenantIDs)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "usage retrieved", usage)
}
