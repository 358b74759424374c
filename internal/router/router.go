package router

import (
	"net/http"

	"github.com/dukani-next/internal/cache"
	"github.com/dukani-next/internal/config"
	adminhandlers "github.com/dukani-next/internal/http/handlers/admin"
	publichandlers "github.com/dukani-next/internal/http/handlers/public"
	"github.com/dukani-next/internal/http/response"
	"github.com/dukani-next/internal/logger"
	"github.com/dukani-next/internal/metrics"
	"github.com/dukani-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter builds the engine with public, payment and admin routes
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisClient := cache.Client()

	loginRule := RateLimitRule{
		Prefix:        "rate:admin_login",
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
	}
	checkoutRule := RateLimitRule{
		Prefix:        "rate:checkout",
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxAttempts,
	}
	stkPushRule := RateLimitRule{
		Prefix:        "rate:stk_push",
		WindowSeconds: cfg.Security.PaymentRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.PaymentRateLimit.MaxAttempts,
		Respond:       successFlagResponder,
	}
	smsRule := RateLimitRule{
		Prefix:        "rate:sms",
		WindowSeconds: cfg.Security.SMSRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.SMSRateLimit.MaxAttempts,
		Respond:       successFlagResponder,
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	if cfg.Metrics.Enabled {
		r.Use(MetricsMiddleware())
	}
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		public := apiV1.Group("/public")
		{
			public.GET("/config", publicHandler.GetConfig)
			public.GET("/products", publicHandler.GetProducts)
			public.GET("/products/:slug", publicHandler.GetProductBySlug)
			public.GET("/locations/counties", publicHandler.GetCounties)
			public.GET("/locations/counties/:county", publicHandler.GetCounty)
			public.GET("/couriers", publicHandler.GetCouriers)
			public.GET("/delivery/quote", publicHandler.GetDeliveryQuote)
			public.GET("/captcha/image", publicHandler.GetImageCaptcha)
		}

		orders := apiV1.Group("/orders")
		{
			orders.POST("", RateLimitMiddleware(redisClient, checkoutRule, KeyByIPAndJSONField("customer_phone")), publicHandler.CreateOrder)
			orders.GET("/by-order-no/:order_no", publicHandler.GetOrderByOrderNo)
		}

		payments := apiV1.Group("/payments/mpesa")
		{
			payments.POST("/stk-push", RateLimitMiddleware(redisClient, stkPushRule, KeyByIPAndJSONField("phone")), publicHandler.InitiateMpesaPayment)
			payments.POST("/callback", publicHandler.MpesaCallback)
		}

		apiV1.POST("/notifications/sms", RateLimitMiddleware(redisClient, smsRule, KeyByIPAndJSONField("phone")), publicHandler.SendSMS)

		apiV1.POST("/admin/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("username")), adminHandler.Login)

		authorized := apiV1.Group("/admin")
		authorized.Use(AdminAuthMiddleware(c.AuthService))
		{
			// identity only, no RBAC
			authorized.GET("/auth/me", adminHandler.Me)
		}

		admin := authorized.Group("")
		admin.Use(AdminRBACMiddleware(c.AuthzService))
		{
			admin.GET("/orders", adminHandler.GetOrders)
			admin.GET("/orders/:id", adminHandler.GetOrder)
			admin.PATCH("/orders/:id/status", adminHandler.UpdateOrderStatus)
			admin.PATCH("/orders/:id/payment-status", adminHandler.UpdateOrderPaymentStatus)
			admin.POST("/orders/:id/mpesa-query", adminHandler.QueryOrderMpesaStatus)

			admin.GET("/products", adminHandler.GetProducts)
			admin.GET("/products/:id", adminHandler.GetProduct)
			admin.POST("/products", adminHandler.CreateProduct)
			admin.PUT("/products/:id", adminHandler.UpdateProduct)
			admin.DELETE("/products/:id", adminHandler.DeleteProduct)

			admin.GET("/settings/:key", adminHandler.GetSetting)
			admin.PUT("/settings/:key", adminHandler.UpdateSetting)

			admin.POST("/notifications/test-sms", adminHandler.SendTestSMS)
			admin.POST("/notifications/sms", adminHandler.SendSMS)
			admin.GET("/notification-logs", adminHandler.GetNotificationLogs)
			admin.GET("/dashboard/overview", adminHandler.GetDashboardOverview)

			admin.GET("/authz/roles", adminHandler.GetRoles)
			admin.GET("/authz/roles/:role/policies", adminHandler.GetRolePolicies)
			admin.POST("/authz/roles/:role/policies", adminHandler.GrantRolePolicy)
			admin.GET("/authz/admins/:id/roles", adminHandler.GetAdminRoles)
			admin.PUT("/authz/admins/:id/roles", adminHandler.SetAdminRoles)
			admin.GET("/authz/audit-logs", adminHandler.GetAuthzAuditLogs)
		}
	}

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(metrics.Handler()))
	}

	r.GET("/health", func(ctx *gin.Context) {
		response.Success(ctx, gin.H{"status": "ok"})
	})

	r.NoRoute(func(ctx *gin.Context) {
		response.NotFound(ctx, "route not found")
	})

	return r
}

// successFlagResponder rejection body for the payment and SMS endpoints
func successFlagResponder(c *gin.Context, code int, msg string) {
	status := http.StatusInternalServerError
	if code == response.CodeTooManyRequests {
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}
