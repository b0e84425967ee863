package handler

import (
	"ap2-gateway/internal/adapter/http/middleware"
	redisStore "ap2-gateway/internal/adapter/storage/redis"
	"ap2-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	MerchantSvc    ports.MerchantService
	MandateSvc     ports.MandateService
	GatewaySvc     ports.GatewayService
	ReportingSvc   ports.ReportingService
	AuditSvc       ports.AuditService
	MerchantRepo   ports.MerchantRepository
	EncSvc         ports.EncryptionService
	SigSvc         ports.SignatureService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	merchantHandler := NewMerchantHandler(deps.MerchantSvc, deps.ReportingSvc)
	v1.POST("/merchants/register", rl("merchant_register"), merchantHandler.Register)

	// --- API-key-authenticated routes (merchant management) ---
	apiKeyAuth := middleware.APIKeyAuth(deps.MerchantRepo, deps.Logger)
	merchants := v1.Group("/merchants", apiKeyAuth)
	{
		merchants.GET("/:merchantId", rl("reports"), merchantHandler.Get)
		merchants.PUT("/:merchantId/status", rl("reports"), merchantHandler.UpdateStatus)
		merchants.PUT("/:merchantId/settings", rl("reports"), merchantHandler.UpdateSettings)
		merchants.PUT("/:merchantId/webhook", rl("reports"), merchantHandler.ConfigureWebhook)
		merchants.POST("/:merchantId/rotate-keys", rl("reports"), merchantHandler.RotateKeys)
		merchants.GET("/:merchantId/transactions", rl("reports"), merchantHandler.ListTransactions)
		merchants.GET("/:merchantId/transactions/:transactionId", rl("reports"), merchantHandler.GetTransaction)
		merchants.GET("/:merchantId/webhooks", rl("reports"), merchantHandler.ListWebhookDeliveries)
	}

	// --- Signed routes (agent gateway: API key + HMAC signature) ---
	sigAuth := middleware.SignatureAuth(deps.EncSvc, deps.SigSvc, deps.Logger)
	gatewayHandler := NewGatewayHandler(deps.GatewaySvc)
	gateway := v1.Group("/gateway", apiKeyAuth, sigAuth)
	{
		gateway.POST("/authorize", rl("gateway"), gatewayHandler.Authorize)
		gateway.POST("/verify-mandate", rl("gateway"), gatewayHandler.VerifyMandate)
		gateway.POST("/cart", rl("gateway"), gatewayHandler.Cart)
		gateway.POST("/intent", rl("gateway"), gatewayHandler.Intent)
		gateway.POST("/payment", rl("gateway_payment"), gatewayHandler.Payment)
		gateway.POST("/payment/refund", rl("gateway_payment"), gatewayHandler.Refund)
	}

	// --- JWT-authenticated routes (mandate owners) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	mandateHandler := NewMandateHandler(deps.MandateSvc, deps.AuditSvc)
	mandates := v1.Group("/mandates", jwtAuth)
	{
		mandates.POST("", rl("mandates"), mandateHandler.Create)
		mandates.GET("", rl("mandates"), mandateHandler.List)
		mandates.GET("/:mandateId", rl("mandates"), mandateHandler.Get)
		mandates.POST("/:mandateId/approve", rl("mandates"), mandateHandler.Approve)
		mandates.POST("/:mandateId/suspend", rl("mandates"), mandateHandler.Suspend)
		mandates.POST("/:mandateId/revoke", rl("mandates"), mandateHandler.Revoke)
	}
	v1.GET("/agent-actions", jwtAuth, rl("mandates"), mandateHandler.ListActions)

	return r
}
