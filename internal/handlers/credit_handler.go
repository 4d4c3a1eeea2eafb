package handlers

import (
	"net/http"

	"github.com/carshot/backend/internal/models"
	"github.com/carshot/backend/internal/services"
	"github.com/gin-gonic/gin"
)

type CreditHandler struct {
	creditService *services.CreditService
}

func NewCreditHandler(creditService *services.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// GetCredits returns the user's balance and override state
func (h *CreditHandler) GetCredits(c *gin.Context) {
	userID := c.GetString("user_id")
	ctx := c.Request.Context()

	credits, err := h.creditService.Credits(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credits":           credits,
		"skip_credit_check": h.creditService.SkipCreditCheck(ctx, userID),
	})
}

// UseCredit consumes one credit
func (h *CreditHandler) UseCredit(c *gin.Context) {
	userID := c.GetString("user_id")

	ok, syncState, err := h.creditService.UseCredit(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to use credit"})
		return
	}
	if !ok {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "No credits remaining"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"used": true, "sync_state": syncState})
}

// AddCredits grants credits (admin only)
func (h *CreditHandler) AddCredits(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Amount int    `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	credits, syncState, err := h.creditService.AddCredits(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits": credits, "sync_state": syncState})
}

// ToggleSkipCreditCheck flips the testing override (admin only)
func (h *CreditHandler) ToggleSkipCreditCheck(c *gin.Context) {
	userID := c.GetString("user_id")

	skip, err := h.creditService.ToggleSkipCreditCheck(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle override"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"skip_credit_check": skip})
}

// ResetCredits restores the default grant (admin only)
func (h *CreditHandler) ResetCredits(c *gin.Context) {
	userID := c.GetString("user_id")

	credits, syncState, err := h.creditService.ResetCredits(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits": credits, "sync_state": syncState})
}

// CreateCheckout starts a Stripe checkout for a credit pack
func (h *CreditHandler) CreateCheckout(c *gin.Context) {
	userVal, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	user := userVal.(*models.User)

	purchase, checkoutURL, err := h.creditService.CreateCreditCheckout(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"purchase_id":  purchase.ID,
		"credits":      purchase.Credits,
		"price":        purchase.Price,
		"checkout_url": checkoutURL,
	})
}
