package services

import (
	"fmt"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"gorm.io/gorm"
)

// StripeProvider implements PaymentProvider for Stripe
type StripeProvider struct {
	cfg *config.Config
	db  *gorm.DB
}

// NewStripeProvider creates a new Stripe payment provider
func NewStripeProvider(cfg *config.Config, db *gorm.DB) *StripeProvider {
	stripe.Key = cfg.StripeSecretKey
	return &StripeProvider{
		cfg: cfg,
		db:  db,
	}
}

// GetProviderName returns "stripe"
func (p *StripeProvider) GetProviderName() string {
	return "stripe"
}

// CreateCreditCheckout creates a Stripe checkout session for a credit pack
func (p *StripeProvider) CreateCreditCheckout(purchase *models.CreditPurchase, user *models.User) (string, error) {
	lineItems := []*stripe.CheckoutSessionLineItemParams{
		{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("eur"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(fmt.Sprintf("%d photo credits", purchase.Credits)),
					Description: stripe.String("Credits for saving processed vehicle photos"),
				},
				UnitAmount: stripe.Int64(int64(purchase.Price * 100)),
			},
			Quantity: stripe.Int64(1),
		},
	}

	successURL := fmt.Sprintf("%s?purchase_id=%s&session_id={CHECKOUT_SESSION_ID}", p.cfg.StripeSuccessURL, purchase.ID.String())
	cancelURL := fmt.Sprintf("%s?purchase_id=%s", p.cfg.StripeCancelURL, purchase.ID.String())

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice(p.cfg.StripePaymentMethods),
		LineItems:          lineItems,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
		CustomerEmail:      stripe.String(user.Email),
		Metadata: map[string]string{
			"purchase_id": purchase.ID.String(),
			"user_id":     user.ID.String(),
		},
	}

	// Enable automatic payment methods if configured
	if p.cfg.StripeAutomaticPaymentMethods {
		params.PaymentMethodTypes = nil
		params.PaymentMethodOptions = &stripe.CheckoutSessionPaymentMethodOptionsParams{
			Card: &stripe.CheckoutSessionPaymentMethodOptionsCardParams{},
		}
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe session: %w", err)
	}

	purchase.StripeSessionID = sess.ID
	if err := p.db.Save(purchase).Error; err != nil {
		return "", fmt.Errorf("failed to save purchase: %w", err)
	}

	return sess.URL, nil
}

// CheckAndCapturePurchase checks if a Stripe payment was completed (for active polling)
// Stripe auto-captures, so we just check the session status
func (p *StripeProvider) CheckAndCapturePurchase(purchase *models.CreditPurchase) bool {
	if purchase.StripeSessionID == "" {
		return false
	}

	sess, err := session.Get(purchase.StripeSessionID, nil)
	if err != nil {
		return false
	}

	if sess.PaymentStatus == "paid" {
		paymentIntentID := ""
		if sess.PaymentIntent != nil {
			paymentIntentID = sess.PaymentIntent.ID
		}

		updates := map[string]interface{}{
			"status":                   "paid",
			"stripe_payment_intent_id": paymentIntentID,
		}

		if err := p.db.Model(&models.CreditPurchase{}).Where("id = ?", purchase.ID).Updates(updates).Error; err != nil {
			return false
		}

		return true
	}

	return false
}
