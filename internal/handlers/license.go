// internal/handlers/license.go
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/channelgrid/partner-portal/internal/models"
	"github.com/channelgrid/partner-portal/internal/services"
	"github.com/channelgrid/partner-portal/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// POST /licenses
func (h *LicenseHandler) CreateLicenses(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req services.CreateLicensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	licenses, err := h.licenseService.CreateLicenses(actor, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, fmt.Sprintf("%d licenses created", len(licenses)), licenses)
}

// POST /licenses/assign
func (h *LicenseHandler) AssignLicenses(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req services.AssignLicensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	result, err := h.licenseService.AssignLicenses(actor, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// Partial assignment is reported as a failure so callers never mistake
	// a half-applied batch for success.
	if result.Updated < result.Requested {
		c.JSON(http.StatusOK, utils.APIResponse{
			OK:      false,
			Message: fmt.Sprintf("only %d of %d licenses were assigned", result.Updated, result.Requested),
			Data:    result,
		})
		return
	}

	utils.SuccessResponse(c, fmt.Sprintf("%d licenses assigned", result.Updated), result)
}

// POST /licenses/activate
func (h *LicenseHandler) ActivateLicense(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req services.ActivateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	licenses, err := h.licenseService.ActivateLicense(c.Request.Context(), actor, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, fmt.Sprintf("%d licenses activated", len(licenses)), licenses)
}

// POST /licenses/:id/split
func (h *LicenseHandler) SplitLicense(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	licenseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.SplitLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	license, err := h.licenseService.SplitLicense(c.Request.Context(), actor, licenseID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "license split into partials", license)
}

// DELETE /licenses/:id/partials
func (h *LicenseHandler) DepartializeLicense(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	licenseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	license, err := h.licenseService.DepartializeLicense(c.Request.Context(), actor, licenseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "partials removed", license)
}

// GET /licenses/:id
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	licenseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	license, err := h.licenseService.GetLicense(licenseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "license retrieved", license)
}

// GET /licenses
func (h *LicenseHandler) SearchLicenses(c *gin.Context) {
	params := services.LicenseSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if v := c.Query("product_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, "invalid product_id")
			return
		}
		params.ProductID = &id
	}
	if v := c.Query("partner_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, "invalid partner_id")
			return
		}
		params.PartnerID = &id
	}
	if v := c.Query("customer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, "invalid customer_id")
			return
		}
		params.CustomerID = &id
	}
	if v := c.Query("state"); v != "" {
		state := models.LicenseState(v)
		switch state {
		case models.LicenseStateUnassigned, models.LicenseStateAssigned,
			models.LicenseStateActivated, models.LicenseStateCompleted,
			models.LicenseStateExpired:
			params.State = &state
		default:
			utils.BadRequestResponse(c, "invalid state")
			return
		}
	}
	if v := c.Query("expiring_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.BadRequestResponse(c, "invalid expiring_before, expected RFC3339 timestamp")
			return
		}
		params.ExpiringBefore = &t
	}

	licenses, total, err := h.licenseService.SearchLicenses(params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(licenses, total, params.PaginationParams)
	utils.PaginatedResponse(c, "licenses retrieved", result)
}

// GET /licenses/stats
func (h *LicenseHandler) GetLicenseStats(c *gin.Context) {
	stats, err := h.licenseService.GetLicenseStats()
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "license statistics", stats)
}
