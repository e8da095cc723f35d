package routes

import (
	"net/http"

	"checkout-service/controllers"
	apperrors "checkout-service/errors"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
)

const serviceName = "checkout-service"

// Options configures the checkout route guards.
type Options struct {
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
}

// RegisterRoutes sets up the health check and the payment routes.
func RegisterRoutes(r *gin.Engine, cc *controllers.CheckoutController, wc *controllers.WebhookController, opts Options) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	payment := r.Group("/payment")

	// Called by the storefront from the browser.
	checkout := []gin.HandlerFunc{middleware.CORSMiddleware(opts.AllowedOrigins)}
	if opts.RateLimiter != nil {
		checkout = append(checkout, middleware.RateLimitMiddleware(opts.RateLimiter))
	}
	checkout = append(checkout, apperrors.ErrorMiddleware(), cc.CreateCheckoutSession)
	payment.OPTIONS("/create-checkout-session", checkout[0])
	payment.POST("/create-checkout-session", checkout...)

	// Stripe webhook (no auth, signature verified in the handler)
	payment.POST("/webhook", wc.StripeWebhook)
}
