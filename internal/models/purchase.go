package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditPurchase tracks one credit pack bought through Stripe checkout.
type CreditPurchase struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Credits int       `gorm:"not null" json:"credits"`
	Price   float64   `gorm:"not null" json:"price"`
	Status  string    `gorm:"not null;default:'pending'" json:"status"` // pending, paid, cancelled

	StripeSessionID       string `json:"-"`
	StripePaymentIntentID string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (p *CreditPurchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
