package services

import (
	"github.com/carshot/backend/internal/models"
)

// PaymentProvider is the checkout surface for credit pack purchases.
// Stripe is the only production implementation; tests stub it.
type PaymentProvider interface {
	// CreateCreditCheckout creates a checkout session for the purchase and
	// returns the hosted checkout URL.
	CreateCreditCheckout(purchase *models.CreditPurchase, user *models.User) (checkoutURL string, err error)

	// CheckAndCapturePurchase checks payment status for active polling and
	// marks the purchase paid if the provider reports it complete.
	CheckAndCapturePurchase(purchase *models.CreditPurchase) bool

	// GetProviderName returns the name of the provider.
	GetProviderName() string
}
