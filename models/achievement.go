package models

import (
	"time"
)

// Achievement types. Only purchase_milestone achievements are evaluated by
// the purchase-triggered pipeline; other types are hooks for future triggers.
const (
	AchievementTypePurchaseMilestone = "purchase_milestone"
	AchievementTypeReferral          = "referral"
	AchievementTypeEngagement        = "engagement"
)

// Criteria keys recognized by the evaluator. Keys outside this set are
// treated as trivially satisfied (see EvaluationService).
const (
	CriteriaMinPurchases = "min_purchases"
	CriteriaMinAmount    = "min_amount"
)

// Criteria maps threshold names to their required values,
// e.g. {"min_purchases": 10} or {"min_amount": 500}.
type Criteria map[string]float64

// Achievement: admin-authored catalog entry (rarely mutated, never deleted)
type Achievement struct {
	ID          string   `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string   `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string   `gorm:"not null" json:"name"`
	Description string   `json:"description"`
	Icon        string   `gorm:"type:text" json:"icon"`
	Points      int      `gorm:"not null;default:0" json:"points"`
	Type        string   `gorm:"type:varchar(32);not null;index" json:"type"`
	Criteria    Criteria `gorm:"serializer:json;type:jsonb" json:"criteria"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserAchievement: unlock instance (many-to-many join). The composite unique
// index is what makes unlocks at-most-once even under concurrent purchases.
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID string    `gorm:"not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"not null" json:"unlocked_at"`
}
