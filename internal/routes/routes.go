package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/referralhub/backend/internal/handlers"
	"github.com/referralhub/backend/internal/middleware"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth         *handlers.AuthHandler
	Tasks        *handlers.TaskHandler
	Submissions  *handlers.SubmissionHandler
	Redeem       *handlers.RedeemHandler
	Certificates *handlers.CertificateHandler
	Users        *handlers.UserHandler
	Audit        *handlers.AuditHandler
	Jobs         *handlers.JobHandler
	Health       *handlers.HealthHandler
}

// RegisterRoutes registers all API routes. requireAuth guards everything
// except login, signup and the health check.
func RegisterRoutes(router *gin.Engine, h Handlers, requireAuth gin.HandlerFunc, rateLimiter *middleware.RateLimiter) {
	router.GET("/healthz", h.Health.Check)

	api := router.Group("/api")
	api.Use(rateLimiter.IPRateLimiterMiddleware())

	RegisterAuthRoutes(api, h.Auth, requireAuth, rateLimiter)

	protected := api.Group("")
	protected.Use(requireAuth)

	RegisterTaskRoutes(protected, h.Tasks, h.Submissions)
	RegisterRedeemRoutes(protected, h.Redeem)
	RegisterDirectoryRoutes(protected, h.Users, h.Certificates)
	RegisterOperationsRoutes(protected, h.Audit, h.Jobs)
}

// RegisterAuthRoutes registers authentication routes
func RegisterAuthRoutes(api *gin.RouterGroup, authHandler *handlers.AuthHandler, requireAuth gin.HandlerFunc, rateLimiter *middleware.RateLimiter) {
	public := api.Group("/auth")
	public.Use(rateLimiter.AuthRateLimiterMiddleware())
	{
		public.POST("/login", authHandler.Login)
		public.POST("/register", authHandler.Register)
		public.POST("/google", authHandler.GoogleLogin)
	}

	session := api.Group("/auth")
	session.Use(requireAuth)
	{
		session.POST("/logout", authHandler.Logout)
		session.GET("/me", authHandler.Me)
		session.POST("/totp/setup", authHandler.SetupTOTP)
		session.POST("/totp/enable", authHandler.EnableTOTP)
	}
}

// RegisterTaskRoutes registers task catalogue and submission review routes
func RegisterTaskRoutes(group *gin.RouterGroup, taskHandler *handlers.TaskHandler, submissionHandler *handlers.SubmissionHandler) {
	tasks := group.Group("/tasks")
	{
		tasks.GET("", taskHandler.List)
		tasks.POST("", taskHandler.Create)
		tasks.GET("/:id", taskHandler.Get)
		tasks.PUT("/:id", taskHandler.Update)
		tasks.DELETE("/:id", taskHandler.Delete)
	}

	submissions := group.Group("/submissions")
	{
		submissions.GET("", submissionHandler.List)
		submissions.POST("", submissionHandler.Create)
		submissions.POST("/:id/decision", submissionHandler.Decide)
	}
}

// RegisterRedeemRoutes registers redeem request and payout routes
func RegisterRedeemRoutes(group *gin.RouterGroup, redeemHandler *handlers.RedeemHandler) {
	redeem := group.Group("/redeem-requests")
	{
		redeem.GET("", redeemHandler.List)
		redeem.POST("", redeemHandler.Create)
		redeem.POST("/:id/process", redeemHandler.Process)
	}

	group.GET("/payouts", redeemHandler.ListPayouts)
}

// RegisterDirectoryRoutes registers user, referral, certificate and analytics routes
func RegisterDirectoryRoutes(group *gin.RouterGroup, userHandler *handlers.UserHandler, certificateHandler *handlers.CertificateHandler) {
	group.GET("/users", userHandler.List)
	group.GET("/users/:id", userHandler.Get)
	group.GET("/referrals", userHandler.Referrals)
	group.GET("/analytics/summary", userHandler.Summary)

	group.GET("/certificates", certificateHandler.List)
	group.POST("/certificates/:id/resend", certificateHandler.Resend)
}

// RegisterOperationsRoutes registers audit trail and outbox routes
func RegisterOperationsRoutes(group *gin.RouterGroup, auditHandler *handlers.AuditHandler, jobHandler *handlers.JobHandler) {
	group.GET("/audit-logs", auditHandler.List)
	group.GET("/jobs", jobHandler.List)
	group.POST("/jobs/:id/retry", jobHandler.Retry)
}
