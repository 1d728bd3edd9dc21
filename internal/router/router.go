// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/channelgrid/partner-portal/internal/config"
	"github.com/channelgrid/partner-portal/internal/handlers"
	"github.com/channelgrid/partner-portal/internal/middleware"
	"github.com/channelgrid/partner-portal/internal/provider"
	"github.com/channelgrid/partner-portal/internal/services"
	"github.com/channelgrid/partner-portal/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Provider client with its own token source, shared by every service
	// that talks to the cloud API.
	tokens := provider.NewTokenSource(
		cfg.Provider.TokenURL,
		cfg.Provider.ClientID,
		cfg.Provider.ClientSecret,
		cfg.Provider.Timeout,
	)
	client := provider.NewClient(cfg.Provider.BaseURL, tokens, cfg.Provider.Timeout)

	// Initialize services
	authService := services.NewAuthService(db, cfg)
	productService := services.NewProductService(db)
	licenseService := services.NewLicenseService(db, client)
	provisioningService := services.NewProvisioningService(db, client, cfg)
	usageService := services.NewUsageService(client)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	licenseHandler := handlers.NewLicenseHandler(licenseService)
	tenantHandler := handlers.NewTenantHandler(provisioningService)
	usageHandler := handlers.NewUsageHandler(usageService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		// Product catalogue
		products := v1.Group("/products")
		products.Use(middleware.AuthRequired())
		{
			products.GET("", productHandler.ListProducts)
			products.GET("/:id", productHandler.GetProduct)
			products.POST("", middleware.AdminRequired(), productHandler.CreateProduct)
		}

		// License lifecycle
		licenses := v1.Group("/licenses")
		licenses.Use(middleware.AuthRequired())
		{
			licenses.GET("", licenseHandler.SearchLicenses)
			licenses.GET("/stats", middleware.AdminRequired(), licenseHandler.GetLicenseStats)
			licenses.GET("/:id", licenseHandler.GetLicense)
			licenses.POST("", middleware.AdminRequired(), licenseHandler.CreateLicenses)
			licenses.POST("/assign", middleware.AdminRequired(), licenseHandler.AssignLicenses)
			licenses.POST("/activate", licenseHandler.ActivateLicense)
			licenses.POST("/:id/split", middleware.AdminRequired(), licenseHandler.SplitLicense)
			licenses.DELETE("/:id/partials", middleware.AdminRequired(), licenseHandler.DepartializeLicense)
		}

		// Tenant provisioning
		partners := v1.Group("/partners")
		partners.Use(middleware.AuthRequired())
		{
			partners.GET("", tenantHandler.ListPartners)
			partners.POST("", middleware.AdminRequired(), tenantHandler.ProvisionPartner)
		}

		customers := v1.Group("/customers")
		customers.Use(middleware.AuthRequired())
		{
			customers.GET("", tenantHandler.ListCustomers)
			customers.POST("", tenantHandler.ProvisionCustomer)
		}

		// Usage reconciliation
		usage := v1.Group("/usage")
		usage.Use(middleware.AuthRequired())
		{
			usage.GET("", usageHandler.GetUsage)
		}
	}

	return r
}
