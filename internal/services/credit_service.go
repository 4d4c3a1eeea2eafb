package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncState tells the caller whether a balance change reached the remote
// ledger or only the local cache.
type SyncState string

const (
	SyncSynced    SyncState = "synced"
	SyncLocalOnly SyncState = "local_only"
)

// RemoteLedger is the authoritative credit store. Production backs it
// with the users table in Postgres.
type RemoteLedger interface {
	FetchCredits(ctx context.Context, userID string) (int, error)
	AdjustCredits(ctx context.Context, userID string, delta int) error
	SetCredits(ctx context.Context, userID string, credits int) error
}

type gormLedger struct {
	db *gorm.DB
}

// NewGormLedger backs the credit ledger with the users table.
func NewGormLedger(db *gorm.DB) RemoteLedger {
	return &gormLedger{db: db}
}

func (l *gormLedger) FetchCredits(ctx context.Context, userID string) (int, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %w", err)
	}
	var user models.User
	if err := l.db.WithContext(ctx).Select("credits").First(&user, id).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch credits: %w", err)
	}
	return user.Credits, nil
}

func (l *gormLedger) AdjustCredits(ctx context.Context, userID string, delta int) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	result := l.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("credits", gorm.Expr("credits + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to adjust credits: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("user not found")
	}
	return nil
}

func (l *gormLedger) SetCredits(ctx context.Context, userID string, credits int) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	result := l.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("credits", credits)
	if result.Error != nil {
		return fmt.Errorf("failed to set credits: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("user not found")
	}
	return nil
}

// CreditService manages per-user photo credits. Balances are cached in
// the key-value store for fast reads; every change is also pushed to the
// remote ledger. A remote failure never blocks the user: the local
// change stands and the operation reports SyncLocalOnly.
type CreditService struct {
	kv       KVStore
	ledger   RemoteLedger
	provider PaymentProvider
	db       *gorm.DB
	cfg      *config.Config
}

func NewCreditService(kv KVStore, ledger RemoteLedger, provider PaymentProvider, db *gorm.DB, cfg *config.Config) *CreditService {
	return &CreditService{kv: kv, ledger: ledger, provider: provider, db: db, cfg: cfg}
}

func creditsKey(userID string) string { return "credits:" + userID }
func skipKey(userID string) string    { return "skip_credit_check:" + userID }

// Credits returns the cached balance, seeding the cache from the remote
// ledger (or the default grant) on first use.
func (s *CreditService) Credits(ctx context.Context, userID string) (int, error) {
	raw, err := s.kv.Get(ctx, creditsKey(userID))
	if err == nil {
		n, convErr := strconv.Atoi(string(raw))
		if convErr == nil {
			return n, nil
		}
		log.Printf("WARN: Corrupt credit record for user %s: %q", userID, raw)
	} else if !errors.Is(err, ErrKVNotFound) {
		return 0, err
	}

	// Seed from the remote ledger; fall back to the default grant when the
	// ledger is unreachable or the service runs without one.
	credits := s.cfg.DefaultCredits
	if s.ledger != nil {
		if n, err := s.ledger.FetchCredits(ctx, userID); err == nil {
			credits = n
		} else {
			log.Printf("WARN: Could not fetch remote credits for user %s: %v", userID, err)
		}
	}
	if err := s.writeLocal(ctx, userID, credits); err != nil {
		return 0, err
	}
	return credits, nil
}

// SkipCreditCheck reports whether the testing override is on for this
// user. The flag is stored as a stringified boolean.
func (s *CreditService) SkipCreditCheck(ctx context.Context, userID string) bool {
	raw, err := s.kv.Get(ctx, skipKey(userID))
	if err != nil {
		return false
	}
	return string(raw) == "true"
}

// ToggleSkipCreditCheck flips the override and returns the new value.
func (s *CreditService) ToggleSkipCreditCheck(ctx context.Context, userID string) (bool, error) {
	next := !s.SkipCreditCheck(ctx, userID)
	if err := s.kv.Set(ctx, skipKey(userID), []byte(strconv.FormatBool(next))); err != nil {
		return false, err
	}
	return next, nil
}

// UseCredit consumes one credit. With the override on it succeeds without
// touching the balance. Returns false when the balance is exhausted.
func (s *CreditService) UseCredit(ctx context.Context, userID string) (bool, SyncState, error) {
	if s.SkipCreditCheck(ctx, userID) {
		return true, SyncSynced, nil
	}

	credits, err := s.Credits(ctx, userID)
	if err != nil {
		return false, SyncLocalOnly, err
	}
	if credits <= 0 {
		return false, SyncSynced, nil
	}

	if err := s.writeLocal(ctx, userID, credits-1); err != nil {
		return false, SyncLocalOnly, err
	}
	return true, s.pushRemote(ctx, userID, -1), nil
}

// AddCredits grants credits and returns the new balance.
func (s *CreditService) AddCredits(ctx context.Context, userID string, amount int) (int, SyncState, error) {
	if amount <= 0 {
		return 0, SyncSynced, fmt.Errorf("invalid credit amount: %d", amount)
	}
	credits, err := s.Credits(ctx, userID)
	if err != nil {
		return 0, SyncLocalOnly, err
	}
	next := credits + amount
	if err := s.writeLocal(ctx, userID, next); err != nil {
		return 0, SyncLocalOnly, err
	}
	return next, s.pushRemote(ctx, userID, amount), nil
}

// ResetCredits restores the default grant locally and remotely.
func (s *CreditService) ResetCredits(ctx context.Context, userID string) (int, SyncState, error) {
	credits := s.cfg.DefaultCredits
	if err := s.writeLocal(ctx, userID, credits); err != nil {
		return 0, SyncLocalOnly, err
	}
	state := SyncSynced
	if s.ledger != nil {
		if err := s.ledger.SetCredits(ctx, userID, credits); err != nil {
			log.Printf("WARN: Remote credit reset failed for user %s: %v", userID, err)
			state = SyncLocalOnly
		}
	}
	return credits, state, nil
}

// HasEnoughCredits checks the balance without consuming anything. The
// override makes every check pass.
func (s *CreditService) HasEnoughCredits(ctx context.Context, userID string, amount int) (bool, error) {
	if s.SkipCreditCheck(ctx, userID) {
		return true, nil
	}
	credits, err := s.Credits(ctx, userID)
	if err != nil {
		return false, err
	}
	return credits >= amount, nil
}

func (s *CreditService) writeLocal(ctx context.Context, userID string, credits int) error {
	return s.kv.Set(ctx, creditsKey(userID), []byte(strconv.Itoa(credits)))
}

func (s *CreditService) pushRemote(ctx context.Context, userID string, delta int) SyncState {
	if s.ledger == nil {
		return SyncLocalOnly
	}
	if err := s.ledger.AdjustCredits(ctx, userID, delta); err != nil {
		log.Printf("WARN: Remote credit sync failed for user %s (delta %+d): %v", userID, delta, err)
		return SyncLocalOnly
	}
	return SyncSynced
}

// CreateCreditCheckout starts a Stripe checkout for one credit pack and
// returns the hosted payment URL.
func (s *CreditService) CreateCreditCheckout(user *models.User) (*models.CreditPurchase, string, error) {
	if s.db == nil || s.provider == nil {
		return nil, "", errors.New("credit purchases are not configured")
	}

	purchase := &models.CreditPurchase{
		UserID:  user.ID,
		Credits: s.cfg.CreditPackSize,
		Price:   s.cfg.CreditPackPrice,
		Status:  "pending",
	}
	if err := s.db.Create(purchase).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create purchase: %w", err)
	}

	url, err := s.provider.CreateCreditCheckout(purchase, user)
	if err != nil {
		return nil, "", err
	}
	return purchase, url, nil
}

// ConfirmPurchase marks a purchase paid and credits the buyer. Called
// from the payment webhook; idempotent for already-paid purchases.
func (s *CreditService) ConfirmPurchase(ctx context.Context, purchaseID uuid.UUID, paymentIntentID string) error {
	if s.db == nil {
		return errors.New("credit purchases are not configured")
	}

	var purchase models.CreditPurchase
	if err := s.db.First(&purchase, purchaseID).Error; err != nil {
		return fmt.Errorf("purchase not found: %w", err)
	}
	if purchase.Status == "paid" {
		return nil
	}

	updates := map[string]interface{}{
		"status":                   "paid",
		"stripe_payment_intent_id": paymentIntentID,
	}
	if err := s.db.Model(&purchase).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}

	if _, _, err := s.AddCredits(ctx, purchase.UserID.String(), purchase.Credits); err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	return nil
}
