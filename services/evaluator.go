package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"loyalty-program-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EvaluationService runs the purchase-triggered loyalty pipeline: it matches
// purchase_milestone achievements against a user's completed-purchase
// aggregates, records new unlocks, and cascades badge checks after each one.
//
// Unlock inserts go through ON CONFLICT DO NOTHING against the composite
// unique index, so concurrent evaluations of the same user can never produce
// a duplicate unlock row; RowsAffected tells us whether we won the insert.
type EvaluationService struct {
	DB      *gorm.DB
	Catalog *CatalogService
	Events  EventSink
}

func NewEvaluationService(db *gorm.DB, catalog *CatalogService, events EventSink) *EvaluationService {
	if events == nil {
		events = LogSink{}
	}
	return &EvaluationService{DB: db, Catalog: catalog, Events: events}
}

// ProcessPurchase runs achievement evaluation for the user behind a recorded
// purchase and stamps the purchase as evaluated. Re-running on an already
// evaluated purchase is a no-op; the whole pipeline is idempotent anyway.
func (s *EvaluationService) ProcessPurchase(ctx context.Context, purchaseID string) error {
	var purchase models.Purchase
	if err := s.DB.WithContext(ctx).First(&purchase, "id = ?", purchaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "purchase", Ref: purchaseID}
		}
		return fmt.Errorf("failed to load purchase %s: %w", purchaseID, err)
	}

	if purchase.EvaluatedAt != nil {
		return nil
	}

	if err := s.EvaluateUser(ctx, purchase.UserID); err != nil {
		// Leave evaluated_at empty so the sweep retries this purchase.
		return err
	}

	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ?", purchase.ID).
		Update("evaluated_at", &now).Error; err != nil {
		return fmt.Errorf("failed to stamp purchase %s as evaluated: %w", purchase.ID, err)
	}
	return nil
}

// EvaluateUser recomputes the user's completed-purchase aggregates and
// unlocks every purchase_milestone achievement that newly qualifies, in
// stable catalog order. Per-achievement failures are logged and skipped;
// only aggregate or catalog load failures abort the batch.
func (s *EvaluationService) EvaluateUser(ctx context.Context, userID string) error {
	totalPurchases, totalSpent, err := completedPurchaseStats(s.DB.WithContext(ctx), userID)
	if err != nil {
		return err
	}

	achievements, err := s.Catalog.AchievementsByType(ctx, models.AchievementTypePurchaseMilestone)
	if err != nil {
		return err
	}

	for _, achievement := range achievements {
		if !criteriaMet(achievement.Criteria, totalPurchases, totalSpent) {
			continue
		}

		unlocked, err := s.unlockAchievement(ctx, userID, achievement.ID)
		if err != nil {
			log.Printf("❌ Achievement check failed for %s / %s: %v", userID, achievement.Slug, err)
			continue
		}
		if !unlocked {
			continue
		}

		s.Events.AchievementUnlocked(AchievementUnlocked{UserID: userID, Achievement: achievement})

		// One cascade pass per newly unlocked achievement, re-reading the
		// now-larger achievement set each time.
		s.cascadeBadges(ctx, userID)
	}

	return nil
}

// criteriaMet applies the permissive-AND policy: every recognized criterion
// present must hold; unrecognized keys impose no constraint. An achievement
// whose criteria contain only unrecognized keys therefore unlocks for every
// user immediately — preserved source behavior, questionable as it is.
func criteriaMet(criteria models.Criteria, totalPurchases int64, totalSpent float64) bool {
	for key, required := range criteria {
		switch key {
		case models.CriteriaMinPurchases:
			if float64(totalPurchases) < required {
				return false
			}
		case models.CriteriaMinAmount:
			if totalSpent < required {
				return false
			}
		}
	}
	return true
}

// unlockAchievement inserts the unlock row if absent. The composite unique
// index makes this at-most-once; true means this call won the insert.
func (s *EvaluationService) unlockAchievement(ctx context.Context, userID, achievementID string) (bool, error) {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoNothing: true,
	}).Create(&models.UserAchievement{
		ID:            uuid.NewString(),
		UserID:        userID,
		AchievementID: achievementID,
		UnlockedAt:    time.Now(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// cascadeBadges checks every catalog badge against the user's aggregate
// achievement stats. Both thresholds are inclusive and both must hold. A
// single pass may earn several badges. Per-badge failures never abort the
// pass, and cascade failures never propagate to the purchase caller.
func (s *EvaluationService) cascadeBadges(ctx context.Context, userID string) {
	badges, err := s.Catalog.AllBadges(ctx)
	if err != nil {
		log.Printf("❌ Badge cascade aborted for %s: %v", userID, err)
		return
	}

	achievementCount, totalPoints, err := achievementStats(s.DB.WithContext(ctx), userID)
	if err != nil {
		log.Printf("❌ Badge cascade aborted for %s: %v", userID, err)
		return
	}

	for _, badge := range badges {
		if achievementCount < int64(badge.RequiredAchievements) || totalPoints < int64(badge.RequiredPoints) {
			continue
		}

		earned, err := s.earnBadge(ctx, userID, badge.ID)
		if err != nil {
			log.Printf("❌ Badge check failed for %s / %s: %v", userID, badge.Slug, err)
			continue
		}
		if earned {
			s.Events.BadgeUnlocked(BadgeUnlocked{UserID: userID, Badge: badge})
		}
	}
}

func (s *EvaluationService) earnBadge(ctx context.Context, userID, badgeID string) (bool, error) {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(&models.UserBadge{
		ID:       uuid.NewString(),
		UserID:   userID,
		BadgeID:  badgeID,
		EarnedAt: time.Now(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// achievementStats returns the user's unlock count (any achievement type)
// and cumulative points across all unlocked achievements.
func achievementStats(db *gorm.DB, userID string) (int64, int64, error) {
	var count int64
	if err := db.Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count achievements: %w", err)
	}

	var points int64
	if err := db.Table("user_achievements").
		Joins("INNER JOIN achievements ON achievements.id = user_achievements.achievement_id").
		Where("user_achievements.user_id = ?", userID).
		Select("COALESCE(SUM(achievements.points), 0)").
		Scan(&points).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to sum achievement points: %w", err)
	}

	return count, points, nil
}
