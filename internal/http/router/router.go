package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-api/internal/config"
	"github.com/ignatzorin/marketplace-api/internal/http/handlers"
	"github.com/ignatzorin/marketplace-api/internal/http/middleware"
	"github.com/ignatzorin/marketplace-api/internal/http/response"
	"github.com/ignatzorin/marketplace-api/internal/models"
)

// Handlers набор хэндлеров API. В минимальном наборе маршрутов платёжные,
// connects, уведомления, сертификаты и ws не регистрируются и могут быть nil.
type Handlers struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Jobs           *handlers.JobHandler
	Contracts      *handlers.ContractHandler
	Payments       *handlers.PaymentHandler
	Connects       *handlers.ConnectHandler
	Notifications  *handlers.NotificationHandler
	Certifications *handlers.CertificationHandler
	WS             *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessTokenParser) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.BodyLimit(cfg.BodyLimit))
	r.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "маршрут не найден")
	})

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	api.GET("/health", h.Health.Health)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.AuthRateLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/auth/me", h.Auth.Me)

		jobs := protected.Group("/jobs")
		jobs.GET("", h.Jobs.List)
		jobs.POST("", middleware.RequireRoles(models.RoleClient), h.Jobs.Create)
		jobs.GET("/freelancer/:freelancerId", middleware.UUIDValidator("freelancerId"), h.Jobs.ListByFreelancer)
		jobs.GET("/:id", middleware.UUIDValidator("id"), h.Jobs.Get)
		jobs.PUT("/:id", middleware.UUIDValidator("id"), h.Jobs.Update)
		jobs.DELETE("/:id", middleware.UUIDValidator("id"), h.Jobs.Delete)
		jobs.PATCH("/:id/status", middleware.UUIDValidator("id"), h.Jobs.UpdateStatus)
		jobs.GET("/:id/contract", middleware.UUIDValidator("id"), h.Jobs.ActiveContract)
		jobs.PATCH("/:id/close", middleware.UUIDValidator("id"), h.Jobs.Close)
		jobs.POST("/:id/proposals", middleware.UUIDValidator("id"), h.Jobs.SubmitProposal)
		jobs.PUT("/:id/proposals/:proposalId/accept", middleware.UUIDValidator("id", "proposalId"), h.Jobs.AcceptProposal)
		jobs.PUT("/:id/proposals/:proposalId/reject", middleware.UUIDValidator("id", "proposalId"), h.Jobs.RejectProposal)

		contracts := protected.Group("/contracts")
		contracts.GET("", h.Contracts.List)
		contracts.GET("/:id", middleware.UUIDValidator("id"), h.Contracts.Get)
		contracts.PATCH("/:id/complete", middleware.UUIDValidator("id"), h.Contracts.Complete)
		contracts.PATCH("/:id/cancel", middleware.UUIDValidator("id"), h.Contracts.Cancel)
	}

	if cfg.RouteSet != config.RouteSetFull {
		return r
	}

	api.GET("/ws", h.WS.Handle)
	api.GET("/connect-purchase/packages", h.Connects.Packages)
	r.StaticFS("/uploads", http.Dir(cfg.UploadsPath))

	{
		payments := protected.Group("/payments")
		payments.GET("/history", h.Payments.History)
		payments.POST("/escrow", h.Payments.CreateEscrow)
		payments.POST("/release/:paymentId", middleware.UUIDValidator("paymentId"), h.Payments.Release)
		payments.POST("/refund/:paymentId", middleware.UUIDValidator("paymentId"), h.Payments.Refund)

		connects := protected.Group("/connect-purchase")
		connects.POST("/purchase", h.Connects.Purchase)
		connects.GET("/history", h.Connects.History)
		connects.GET("/balance", h.Connects.Balance)

		notifications := protected.Group("/notifications")
		notifications.GET("", h.Notifications.List)
		notifications.GET("/unread/count", h.Notifications.UnreadCount)
		notifications.PUT("/read/all", h.Notifications.MarkAllRead)
		notifications.DELETE("/read/all", h.Notifications.DeleteAllRead)
		notifications.PUT("/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkRead)
		notifications.DELETE("/:id", middleware.UUIDValidator("id"), h.Notifications.Delete)

		certifications := protected.Group("/certifications")
		certifications.GET("", h.Certifications.List)
		certifications.POST("", h.Certifications.Create)
		certifications.GET("/:id", middleware.UUIDValidator("id"), h.Certifications.Get)
		certifications.PUT("/:id", middleware.UUIDValidator("id"), h.Certifications.Update)
		certifications.DELETE("/:id", middleware.UUIDValidator("id"), h.Certifications.Delete)
		certifications.POST("/:id/document", middleware.UUIDValidator("id"), h.Certifications.UploadDocument)
	}

	return r
}
