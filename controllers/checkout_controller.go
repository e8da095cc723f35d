package controllers

import (
	"context"
	"net/http"

	"checkout-service/logger"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserIDHeader identifies the shopper whose server-side cart may be used.
const UserIDHeader = "X-User-ID"

// SessionCreator opens a checkout session for a cart.
type SessionCreator interface {
	CreateSession(ctx context.Context, items []models.CartItem) (*models.CheckoutSession, error)
}

type CheckoutController struct {
	Checkout SessionCreator
	// Carts is optional; when set, an empty request cart is loaded from it.
	Carts  services.CartSource
	Logger *zap.Logger
}

func NewCheckoutController(checkout SessionCreator, carts services.CartSource, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{Checkout: checkout, Carts: carts, Logger: logger}
}

type createSessionRequest struct {
	CartItems []models.CartItem `json:"cartItems"`
}

// CreateCheckoutSession handles POST /payment/create-checkout-session.
func (cc *CheckoutController) CreateCheckoutSession(c *gin.Context) {
	ctx := requestContext(c)
	log := logger.FromContext(ctx, cc.Logger)

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, log, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	items := req.CartItems
	if len(items) == 0 && cc.Carts != nil {
		if userID := c.GetHeader(UserIDHeader); userID != "" {
			stored, err := cc.Carts.LoadCart(ctx, userID)
			if err != nil {
				respondError(c, log, http.StatusInternalServerError, "Failed to load cart", err)
				return
			}
			items = stored
		}
	}

	sess, err := cc.Checkout.CreateSession(ctx, items)
	if err != nil {
		abortWithAppError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.RedirectURL})
}
