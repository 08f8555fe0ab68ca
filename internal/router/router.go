package router

import (
	"time"

	"reportgate/config"
	"reportgate/internal/handler"
	"reportgate/internal/middleware"
	"reportgate/internal/repository"
	"reportgate/internal/service"
	"reportgate/pkg/cloudinary"
	"reportgate/pkg/stripe"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers and returns the HTTP engine.
func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	reportRepo := repository.NewReportRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	gateway := stripe.NewClient(cfg.Stripe.SecretKey)
	mailer := service.NewBrevoMailer(&cfg.Brevo, &cfg.Site)

	checkoutSvc := service.NewCheckoutService(reportRepo, purchaseRepo, gateway, mailer, cfg.Site.BaseURL)
	entitlementSvc := service.NewEntitlementService(reportRepo, purchaseRepo, mailer)
	authSvc := service.NewAuthService(adminRepo, &cfg.JWT)

	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc, &cfg.JWT)
	webhookHandler := handler.NewWebhookHandler(checkoutSvc, cfg.Stripe.WebhookSecret)
	reportHandler := handler.NewReportHandler(reportRepo, entitlementSvc, &cfg.JWT)
	leadHandler := handler.NewLeadHandler(leadRepo, reportRepo, &cfg.JWT)
	adminHandler := handler.NewAdminHandler(authSvc, reportRepo, purchaseRepo, leadRepo, cloud)

	r := gin.Default()
	r.Use(middleware.RateLimit(middleware.NewRateLimiter(120, time.Minute)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/reports", reportHandler.List)
		v1.GET("/reports/:id", reportHandler.Get)
		v1.POST("/reports/:id/access", reportHandler.Access)
		v1.POST("/reports/:id/download", reportHandler.Download)
		v1.POST("/reports/:id/email", reportHandler.Email)

		v1.POST("/leads", leadHandler.Create)

		v1.POST("/checkout", checkoutHandler.Start)
		v1.GET("/checkout/confirm", checkoutHandler.Confirm)

		v1.POST("/webhooks/stripe", webhookHandler.HandleStripe)

		admin := v1.Group("/admin")
		{
			admin.POST("/login", adminHandler.Login)

			protected := admin.Group("")
			protected.Use(middleware.AdminRequired(&cfg.JWT))
			{
				protected.GET("/reports", adminHandler.ListReports)
				protected.POST("/reports", adminHandler.CreateReport)
				protected.PUT("/reports/:id", adminHandler.UpdateReport)
				protected.DELETE("/reports/:id", adminHandler.DeleteReport)
				protected.POST("/reports/:id/cover", adminHandler.UploadCover)
				protected.GET("/purchases", adminHandler.ListPurchases)
				protected.GET("/leads", adminHandler.ListLeads)
				protected.GET("/leads/export", adminHandler.ExportLeads)
			}
		}
	}

	return r
}
