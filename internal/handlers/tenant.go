// internal/handlers/tenant.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/channelgrid/partner-portal/internal/services"
	"github.com/channelgrid/partner-portal/internal/utils"
)

type TenantHandler struct {
	provisioningService *services.ProvisioningService
}

func NewTenantHandler(provisioningService *services.ProvisioningService) *TenantHandler {
	return &TenantHandler{
		provisioningService: provisioningService,
	}
}

// POST /partners
func (h *TenantHandler) ProvisionPartner(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req services.ProvisionTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	result, err := h.provisioningService.ProvisionPartner(c.Request.Context(), actor, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	message := "partner provisioned"
	if len(result.Warnings) > 0 {
		message = "partner provisioned with warnings"
	}
	utils.CreatedResponse(c, message, result)
}

// POST /customers
func (h *TenantHandler) ProvisionCustomer(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req services.ProvisionTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	result, err := h.provisioningService.ProvisionCustomer(c.Request.Context(), actor, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	message := "customer provisioned"
	if len(result.Warnings) > 0 {
		message = "customer provisioned with warnings"
	}
	utils.CreatedResponse(c, message, result)
}

// GET /partners
func (h *TenantHandler) ListPartners(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	partners, total, err := h.provisioningService.ListPartners(params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(partners, total, params)
	utils.PaginatedResponse(c, "partners retrieved", result)
}

// GET /customers
func (h *TenantHandler) ListCustomers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	var partnerID *uuid.UUID
	if v := c.Query("partner_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, "invalid partner_id")
			return
		}
		partnerID = &id
	}

	customers, total, err := h.provisioningService.ListCustomers(partnerID, params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(customers, total, params)
	utils.PaginatedResponse(c, "customers retrieved", result)
}
