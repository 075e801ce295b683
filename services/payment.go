package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"

	"loyalty-program-system/models"
	"loyalty-program-system/utils"

	"gorm.io/gorm"
)

// Supported payout providers.
const (
	PaymentProviderMock        = "mock"
	PaymentProviderPaystack    = "paystack"
	PaymentProviderFlutterwave = "flutterwave"
)

// PaymentService transfers cashback credits through an external payment
// gateway. It is entirely outside the loyalty write path: a payout failure
// never undoes or blocks purchase recording or achievement evaluation.
type PaymentService struct {
	DB       *gorm.DB
	Provider string
	APIKey   string
	BaseURL  string
	Client   *http.Client

	// MockSuccessRate is the percentage of mock transfers that succeed.
	MockSuccessRate int
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	provider := os.Getenv("PAYMENT_PROVIDER")
	if provider == "" {
		provider = PaymentProviderMock
	}
	return &PaymentService{
		DB:              db,
		Provider:        provider,
		APIKey:          os.Getenv("PAYMENT_API_KEY"),
		BaseURL:         os.Getenv("PAYMENT_BASE_URL"),
		Client:          utils.HTTPClient,
		MockSuccessRate: 95,
	}
}

// ProcessCashback pays out one purchase's cashback. Returns whether the
// transfer succeeded; transport and provider errors all map to false.
func (s *PaymentService) ProcessCashback(ctx context.Context, purchase *models.Purchase) bool {
	switch s.Provider {
	case PaymentProviderMock:
		return s.processMockCashback(purchase)
	case PaymentProviderPaystack:
		return s.processPaystackCashback(ctx, purchase)
	case PaymentProviderFlutterwave:
		return s.processFlutterwaveCashback(ctx, purchase)
	default:
		log.Printf("❌ Unknown payment provider %q, cashback for %s not sent", s.Provider, purchase.ID)
		return false
	}
}

func (s *PaymentService) processMockCashback(purchase *models.Purchase) bool {
	success := rand.Intn(100) < s.MockSuccessRate
	if success {
		log.Printf("💸 Mock cashback processed: purchase=%s amount=%.2f", purchase.ID, purchase.CashbackAmount)
	} else {
		log.Printf("⚠️ Mock cashback failed: purchase=%s", purchase.ID)
	}
	return success
}

func (s *PaymentService) processPaystackCashback(ctx context.Context, purchase *models.Purchase) bool {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", purchase.UserID).Error; err != nil {
		log.Printf("❌ Paystack cashback: user lookup failed for %s: %v", purchase.UserID, err)
		return false
	}

	payload := map[string]interface{}{
		"source":    "balance",
		"amount":    int(purchase.CashbackAmount * 100), // Paystack uses kobo
		"recipient": user.Email,
		"reason":    "Loyalty Program Cashback",
		"reference": "cashback_" + purchase.ID,
	}
	return s.postTransfer(ctx, s.BaseURL+"/transfer", payload, purchase.ID)
}

func (s *PaymentService) processFlutterwaveCashback(ctx context.Context, purchase *models.Purchase) bool {
	payload := map[string]interface{}{
		"amount":    purchase.CashbackAmount,
		"narration": "Loyalty Program Cashback",
		"currency":  purchase.Currency,
		"reference": "cashback_" + purchase.ID,
	}
	return s.postTransfer(ctx, s.BaseURL+"/transfers", payload, purchase.ID)
}

func (s *PaymentService) postTransfer(ctx context.Context, url string, payload map[string]interface{}, purchaseID string) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ Cashback payload encode failed for %s: %v", purchaseID, err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("❌ Cashback request build failed for %s: %v", purchaseID, err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		log.Printf("❌ Cashback transfer failed for %s: %v", purchaseID, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("⚠️ Cashback transfer rejected for %s: %s returned %d", purchaseID, s.Provider, resp.StatusCode)
		return false
	}

	log.Printf("💸 Cashback processed via %s: purchase=%s", s.Provider, purchaseID)
	return true
}

// PayPendingCashback sweeps a batch of purchases with pending cashback and
// records the gateway outcome on each. Called by the payout scheduler.
func (s *PaymentService) PayPendingCashback(ctx context.Context, batchSize int) error {
	var purchases []models.Purchase
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND cashback_status = ?", models.PurchaseStatusCompleted, models.CashbackStatusPending).
		Order("created_at ASC").
		Limit(batchSize).
		Find(&purchases).Error; err != nil {
		return fmt.Errorf("failed to load pending cashback batch: %w", err)
	}

	for i := range purchases {
		status := models.CashbackStatusFailed
		if s.ProcessCashback(ctx, &purchases[i]) {
			status = models.CashbackStatusPaid
		}
		if err := s.DB.WithContext(ctx).Model(&models.Purchase{}).
			Where("id = ?", purchases[i].ID).
			Update("cashback_status", status).Error; err != nil {
			log.Printf("❌ Failed to record cashback status for %s: %v", purchases[i].ID, err)
		}
	}
	return nil
}
