package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"loyalty-program-system/models"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
	"gorm.io/gorm"
)

// Enqueuer hands a recorded purchase to the evaluation worker. Enqueue must
// never block; a false return means the queue was full and the periodic
// sweep will pick the purchase up instead.
type Enqueuer interface {
	Enqueue(purchaseID string) bool
}

// LoyaltyService records purchases and projects per-user loyalty summaries.
// Recording is durable independent of everything downstream: achievement
// evaluation and cashback payout can both fail without touching the
// purchase row.
type LoyaltyService struct {
	DB     *gorm.DB
	Users  *UserService
	Events EventSink
	Queue  Enqueuer
}

func NewLoyaltyService(db *gorm.DB, users *UserService, events EventSink) *LoyaltyService {
	if events == nil {
		events = LogSink{}
	}
	return &LoyaltyService{DB: db, Users: users, Events: events}
}

// RecordPurchase validates and persists a purchase with computed cashback,
// then emits the purchase-completed fact and queues achievement evaluation.
func (s *LoyaltyService) RecordPurchase(ctx context.Context, userID string, amount float64, transactionID string, paymentMethod *string, currencyCode string) (*models.Purchase, error) {
	if amount < 0.01 {
		return nil, &ValidationError{Field: "amount", Message: "amount must be at least 0.01"}
	}
	if transactionID == "" {
		return nil, &ValidationError{Field: "transaction_id", Message: "transaction_id is required"}
	}

	if currencyCode == "" {
		currencyCode = "USD"
	}
	currencyCode = strings.ToUpper(currencyCode)
	if _, err := currency.ParseISO(currencyCode); err != nil {
		return nil, &ValidationError{Field: "currency", Message: fmt.Sprintf("%q is not an ISO 4217 currency code", currencyCode)}
	}

	var userCount int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&userCount).Error; err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if userCount == 0 {
		return nil, &ValidationError{Field: "user_id", Message: "unknown user"}
	}

	// Friendly duplicate check up front; the unique constraint on
	// transaction_id is the real guard under races.
	var dupCount int64
	if err := s.DB.WithContext(ctx).Model(&models.Purchase{}).Where("transaction_id = ?", transactionID).Count(&dupCount).Error; err != nil {
		return nil, fmt.Errorf("failed to check transaction id: %w", err)
	}
	if dupCount > 0 {
		return nil, &ValidationError{Field: "transaction_id", Message: "transaction_id already recorded"}
	}

	purchase := models.Purchase{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         amount,
		Currency:       currencyCode,
		Status:         models.PurchaseStatusCompleted,
		CashbackAmount: RoundToCents(amount * models.CashbackRate),
		CashbackStatus: models.CashbackStatusPending,
		PaymentMethod:  paymentMethod,
		TransactionID:  transactionID,
	}

	if err := s.DB.WithContext(ctx).Create(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ValidationError{Field: "transaction_id", Message: "transaction_id already recorded"}
		}
		return nil, fmt.Errorf("failed to record purchase: %w", err)
	}

	s.Events.PurchaseCompleted(PurchaseCompleted{Purchase: purchase})

	// Best effort: a full (or absent) queue is fine, the evaluation sweep
	// processes every purchase with a missing evaluated_at stamp.
	if s.Queue != nil {
		s.Queue.Enqueue(purchase.ID)
	}

	return &purchase, nil
}

// RoundToCents rounds a currency value to 2 decimal places.
func RoundToCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// UnlockedAchievement is an achievement joined with its unlock timestamp.
type UnlockedAchievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Points      int       `json:"points"`
	Type        string    `json:"type"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// EarnedBadge is a badge joined with its earn timestamp.
type EarnedBadge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Level       int       `json:"level"`
	EarnedAt    time.Time `json:"earned_at"`
}

// LoyaltySummary is the read-only reporting view of a user's loyalty state.
type LoyaltySummary struct {
	UserID            string                `json:"user_id"`
	TotalPurchases    int64                 `json:"total_purchases"`
	TotalSpent        float64               `json:"total_spent"`
	TotalCashback     float64               `json:"total_cashback"`
	AchievementsCount int                   `json:"achievements_count"`
	Achievements      []UnlockedAchievement `json:"achievements"`
	BadgesCount       int                   `json:"badges_count"`
	CurrentBadge      string                `json:"current_badge"`
	Badges            []EarnedBadge         `json:"badges"`
}

// GetUserLoyaltySummary projects a user's purchases, achievements and badges
// into a single reporting view. Pure query: no unlock side effects, and only
// completed purchases feed the sums and counts.
func (s *LoyaltyService) GetUserLoyaltySummary(ctx context.Context, userRef string) (*LoyaltySummary, error) {
	user, err := s.Users.FindUser(ctx, userRef)
	if err != nil {
		return nil, err
	}

	totalPurchases, totalSpent, err := completedPurchaseStats(s.DB.WithContext(ctx), user.ID)
	if err != nil {
		return nil, err
	}

	var totalCashback float64
	if err := s.DB.WithContext(ctx).Model(&models.Purchase{}).
		Where("user_id = ? AND status = ?", user.ID, models.PurchaseStatusCompleted).
		Select("COALESCE(SUM(cashback_amount), 0)").
		Scan(&totalCashback).Error; err != nil {
		return nil, fmt.Errorf("failed to sum cashback: %w", err)
	}

	achievements, err := s.UserAchievements(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	badges, err := s.UserBadges(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &LoyaltySummary{
		UserID:            user.ID,
		TotalPurchases:    totalPurchases,
		TotalSpent:        totalSpent,
		TotalCashback:     totalCashback,
		AchievementsCount: len(achievements),
		Achievements:      achievements,
		BadgesCount:       len(badges),
		CurrentBadge:      currentBadge(badges),
		Badges:            badges,
	}, nil
}

// UserAchievements lists a user's unlocked achievements with timestamps.
func (s *LoyaltyService) UserAchievements(ctx context.Context, userID string) ([]UnlockedAchievement, error) {
	achievements := []UnlockedAchievement{}
	err := s.DB.WithContext(ctx).
		Table("user_achievements").
		Select("achievements.id, achievements.name, achievements.description, achievements.icon, achievements.points, achievements.type, user_achievements.unlocked_at").
		Joins("INNER JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ?", userID).
		Order("user_achievements.unlocked_at ASC").
		Scan(&achievements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked achievements: %w", err)
	}
	return achievements, nil
}

// UserBadges lists a user's earned badges with timestamps.
func (s *LoyaltyService) UserBadges(ctx context.Context, userID string) ([]EarnedBadge, error) {
	badges := []EarnedBadge{}
	err := s.DB.WithContext(ctx).
		Table("user_badges").
		Select("badges.id, badges.name, badges.description, badges.icon, badges.level, user_badges.earned_at").
		Joins("INNER JOIN badges ON badges.id = user_badges.badge_id").
		Where("user_badges.user_id = ?", userID).
		Order("user_badges.earned_at ASC").
		Scan(&badges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load earned badges: %w", err)
	}
	return badges, nil
}

// currentBadge picks the highest-level earned badge, or the None sentinel.
func currentBadge(badges []EarnedBadge) string {
	name := models.NoBadge
	best := -1
	for _, b := range badges {
		if b.Level > best {
			best = b.Level
			name = b.Name
		}
	}
	return name
}

// completedPurchaseStats returns the count and spend sum over a user's
// completed purchases. Pending and failed purchases never count.
func completedPurchaseStats(db *gorm.DB, userID string) (int64, float64, error) {
	var count int64
	if err := db.Model(&models.Purchase{}).
		Where("user_id = ? AND status = ?", userID, models.PurchaseStatusCompleted).
		Count(&count).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	var spent float64
	if err := db.Model(&models.Purchase{}).
		Where("user_id = ? AND status = ?", userID, models.PurchaseStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&spent).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to sum spend: %w", err)
	}

	return count, spent, nil
}
