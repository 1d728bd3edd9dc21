// internal/handlers/auth.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/channelgrid/partner-portal/internal/services"
	"github.com/channelgrid/partner-portal/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	authResponse, err := h.authService.Login(&req)
	if err != nil {
		utils.UnauthorizedResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, "login successful", authResponse)
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req services.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	authResponse, err := h.authService.RefreshToken(&req)
	if err != nil {
		utils.UnauthorizedResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, "token refreshed", authResponse)
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	user, err := h.authService.GetProfile(actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "profile retrieved", user)
}
