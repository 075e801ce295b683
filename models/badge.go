package models

import (
	"time"
)

// Badge: admin-authored catalog entry earned from aggregate achievement
// progress. Levels rank badges for display ("current badge" = max level);
// levels are not unique and badges are not mutually exclusive.
type Badge struct {
	ID                   string    `gorm:"primaryKey;type:uuid" json:"id"`
	Slug                 string    `gorm:"uniqueIndex;not null" json:"slug"`
	Name                 string    `gorm:"not null" json:"name"`
	Description          string    `json:"description"`
	Icon                 string    `gorm:"type:text" json:"icon"`
	Level                int       `gorm:"not null;default:1" json:"level"`
	RequiredAchievements int       `gorm:"not null;default:1" json:"required_achievements"`
	RequiredPoints       int       `gorm:"not null;default:0" json:"required_points"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserBadge: earned instance (many-to-many join), at most one per
// (user, badge) pair — enforced by the composite unique index.
type UserBadge struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string    `gorm:"not null;uniqueIndex:idx_user_badge" json:"user_id"`
	BadgeID  string    `gorm:"not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	EarnedAt time.Time `gorm:"not null" json:"earned_at"`
}

// NoBadge is the "current badge" sentinel for users who have earned nothing.
const NoBadge = "None"
