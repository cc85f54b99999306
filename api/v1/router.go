package v1

import (
	"ion7/api/v1/auth"
	"ion7/api/v1/billing"
	"ion7/api/v1/cron"
	"ion7/api/v1/deployments"
	"ion7/api/v1/domains"
	"ion7/api/v1/emails"
	"ion7/api/v1/middleware"
	"ion7/api/v1/sites"
	"ion7/api/v1/webhooks"
	"ion7/internal/httpx"

	"github.com/gin-gonic/gin"
)

// Handlers bundles the constructed handlers for route registration
type Handlers struct {
	Auth    *auth.Handler
	Domains *domains.Handler
	Emails  *emails.Handler
	Sites   *sites.Handler
	Deploy  *deployments.Handler
	Billing *billing.Handler
	Webhook *webhooks.Handler
	Cron    *cron.Handler
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, h *Handlers, cronSecret string) {
	v1 := r.Group("/api/v1")
	{
		// Public routes (no authentication required)
		v1.GET("/ping", pingHandler)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Auth.Register)
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
			authGroup.POST("/reset-password", h.Auth.ResetPassword)
		}

		// Billing provider callbacks are verified by signature, not JWT
		v1.POST("/webhooks/stripe", h.Webhook.Stripe)

		// Scheduled tasks guarded by a shared secret
		cronGroup := v1.Group("/cron")
		cronGroup.Use(middleware.CronAuth(cronSecret))
		{
			cronGroup.POST("/renew-domains", h.Cron.RenewDomains)
			cronGroup.POST("/sync-transfers", h.Cron.SyncTransfers)
		}

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/me", h.Auth.Me)

			domainsGroup := protected.Group("/domains")
			{
				domainsGroup.GET("", h.Domains.List)
				domainsGroup.GET("/check", h.Domains.Check)
				domainsGroup.POST("/register", h.Domains.Register)
				domainsGroup.POST("/transfer", h.Domains.Transfer)
				domainsGroup.GET("/:id", h.Domains.Get)
				domainsGroup.GET("/:id/renew", h.Domains.RenewQuote)
				domainsGroup.POST("/:id/renew", h.Domains.Renew)
				domainsGroup.POST("/:id/renew/checkout", h.Domains.RenewCheckout)

				domainsGroup.GET("/:id/emails", h.Emails.List)
				domainsGroup.POST("/:id/emails", h.Emails.Create)
				domainsGroup.DELETE("/:id/emails/:emailId", h.Emails.Delete)
				domainsGroup.GET("/:id/emails/:emailId/usage", h.Emails.Usage)

				domainsGroup.GET("/:id/site", h.Sites.Get)
				domainsGroup.POST("/:id/site", h.Sites.Create)
				domainsGroup.PUT("/:id/site", h.Sites.Update)

				domainsGroup.GET("/:id/deploy", h.Deploy.Status)
				domainsGroup.POST("/:id/deploy", h.Deploy.Deploy)
			}

			billingGroup := protected.Group("/billing")
			{
				billingGroup.POST("/checkout", h.Billing.Checkout)
				billingGroup.GET("/verify", h.Billing.Verify)
				billingGroup.POST("/portal", h.Billing.Portal)
				billingGroup.GET("/preview", h.Billing.Preview)
				billingGroup.POST("/update", h.Billing.Update)
				billingGroup.POST("/cancel", h.Billing.Cancel)
			}
		}
	}
}

// pingHandler handles the ping request using unified response
func pingHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"pong": true,
	})
}
