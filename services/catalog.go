package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"loyalty-program-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const catalogCacheTTL = time.Hour

// CatalogService serves the admin-managed Achievement/Badge definitions
// through a read-through Redis cache. Catalog writes are rare admin actions,
// so the cache is simply invalidated on create. A nil Redis client means
// every read goes straight to the DB (dev/test mode).
type CatalogService struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewCatalogService(db *gorm.DB, rdb *redis.Client) *CatalogService {
	return &CatalogService{DB: db, Redis: rdb}
}

func achievementsCacheKey(achievementType string) string {
	return "catalog:achievements:" + achievementType
}

const badgesCacheKey = "catalog:badges"

// AchievementsByType returns catalog achievements of one type in stable
// order (creation time, then slug) so unlock order is deterministic.
func (s *CatalogService) AchievementsByType(ctx context.Context, achievementType string) ([]models.Achievement, error) {
	key := achievementsCacheKey(achievementType)
	if s.Redis != nil {
		cached, err := s.Redis.Get(ctx, key).Result()
		if err == nil {
			var achievements []models.Achievement
			if err := json.Unmarshal([]byte(cached), &achievements); err == nil {
				return achievements, nil
			}
			// Corrupt entry: drop it and fall through to the DB.
			s.Redis.Del(ctx, key)
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("⚠️ Catalog cache read failed for %s: %v", key, err)
		}
	}

	var achievements []models.Achievement
	if err := s.DB.WithContext(ctx).
		Where("type = ?", achievementType).
		Order("created_at ASC, slug ASC").
		Find(&achievements).Error; err != nil {
		return nil, fmt.Errorf("failed to load achievements of type %s: %w", achievementType, err)
	}

	s.cacheSet(ctx, key, achievements)
	return achievements, nil
}

// AllAchievements returns the full achievement catalog (admin listing).
func (s *CatalogService) AllAchievements(ctx context.Context) ([]models.Achievement, error) {
	var achievements []models.Achievement
	if err := s.DB.WithContext(ctx).
		Order("created_at ASC, slug ASC").
		Find(&achievements).Error; err != nil {
		return nil, fmt.Errorf("failed to load achievement catalog: %w", err)
	}
	return achievements, nil
}

// AllBadges returns the badge catalog in stable order.
func (s *CatalogService) AllBadges(ctx context.Context) ([]models.Badge, error) {
	if s.Redis != nil {
		cached, err := s.Redis.Get(ctx, badgesCacheKey).Result()
		if err == nil {
			var badges []models.Badge
			if err := json.Unmarshal([]byte(cached), &badges); err == nil {
				return badges, nil
			}
			s.Redis.Del(ctx, badgesCacheKey)
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("⚠️ Catalog cache read failed for %s: %v", badgesCacheKey, err)
		}
	}

	var badges []models.Badge
	if err := s.DB.WithContext(ctx).
		Order("created_at ASC, slug ASC").
		Find(&badges).Error; err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}

	s.cacheSet(ctx, badgesCacheKey, badges)
	return badges, nil
}

func (s *CatalogService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.Redis == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, key, payload, catalogCacheTTL).Err(); err != nil {
		log.Printf("⚠️ Catalog cache write failed for %s: %v", key, err)
	}
}

// invalidate drops cached catalog entries after an admin write.
func (s *CatalogService) invalidate(ctx context.Context, keys ...string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("⚠️ Catalog cache invalidation failed: %v", err)
	}
}

// CreateAchievement adds a catalog achievement (admin only).
func (s *CatalogService) CreateAchievement(ctx context.Context, a *models.Achievement) error {
	if a.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if a.Points < 0 {
		return &ValidationError{Field: "points", Message: "points must not be negative"}
	}
	if a.Type == "" {
		return &ValidationError{Field: "type", Message: "type is required"}
	}

	a.ID = uuid.NewString()
	a.Slug = slug.Make(a.Name)

	var count int64
	s.DB.WithContext(ctx).Model(&models.Achievement{}).Where("slug = ?", a.Slug).Count(&count)
	if count > 0 {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("an achievement named %q already exists", a.Name)}
	}

	if err := s.DB.WithContext(ctx).Create(a).Error; err != nil {
		// Unique index backstop: a concurrent create can slip past the count.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &ValidationError{Field: "name", Message: fmt.Sprintf("an achievement named %q already exists", a.Name)}
		}
		return fmt.Errorf("failed to create achievement: %w", err)
	}

	s.invalidate(ctx, achievementsCacheKey(a.Type))
	log.Printf("📚 Achievement added to catalog: %s (%s, %d pts)", a.Name, a.Type, a.Points)
	return nil
}

// CreateBadge adds a catalog badge (admin only).
func (s *CatalogService) CreateBadge(ctx context.Context, b *models.Badge) error {
	if b.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if b.RequiredAchievements < 1 {
		return &ValidationError{Field: "required_achievements", Message: "required_achievements must be at least 1"}
	}
	if b.RequiredPoints < 0 {
		return &ValidationError{Field: "required_points", Message: "required_points must not be negative"}
	}

	b.ID = uuid.NewString()
	b.Slug = slug.Make(b.Name)

	var count int64
	s.DB.WithContext(ctx).Model(&models.Badge{}).Where("slug = ?", b.Slug).Count(&count)
	if count > 0 {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("a badge named %q already exists", b.Name)}
	}

	if err := s.DB.WithContext(ctx).Create(b).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &ValidationError{Field: "name", Message: fmt.Sprintf("a badge named %q already exists", b.Name)}
		}
		return fmt.Errorf("failed to create badge: %w", err)
	}

	s.invalidate(ctx, badgesCacheKey)
	log.Printf("📚 Badge added to catalog: %s (level %d)", b.Name, b.Level)
	return nil
}

// SetAchievementIcon updates a catalog achievement's icon URL and drops the
// cached entries for its type.
func (s *CatalogService) SetAchievementIcon(ctx context.Context, id, iconURL string) (*models.Achievement, error) {
	var a models.Achievement
	if err := s.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "achievement", Ref: id}
		}
		return nil, err
	}
	a.Icon = iconURL
	if err := s.DB.WithContext(ctx).Save(&a).Error; err != nil {
		return nil, fmt.Errorf("failed to update achievement icon: %w", err)
	}
	s.invalidate(ctx, achievementsCacheKey(a.Type))
	return &a, nil
}

// SetBadgeIcon updates a catalog badge's icon URL.
func (s *CatalogService) SetBadgeIcon(ctx context.Context, id, iconURL string) (*models.Badge, error) {
	var b models.Badge
	if err := s.DB.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "badge", Ref: id}
		}
		return nil, err
	}
	b.Icon = iconURL
	if err := s.DB.WithContext(ctx).Save(&b).Error; err != nil {
		return nil, fmt.Errorf("failed to update badge icon: %w", err)
	}
	s.invalidate(ctx, badgesCacheKey)
	return &b, nil
}

// EnsureDefaultCatalog seeds the starter achievements and badges when the
// catalog is empty, so a fresh install has working milestone rules.
func (s *CatalogService) EnsureDefaultCatalog(ctx context.Context) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Achievement{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		achievements := []models.Achievement{
			{Name: "First Purchase", Description: "Make your first purchase", Icon: "🎉", Points: 10,
				Type: models.AchievementTypePurchaseMilestone, Criteria: models.Criteria{models.CriteriaMinPurchases: 1}},
			{Name: "Big Spender", Description: "Spend $500 or more", Icon: "💰", Points: 50,
				Type: models.AchievementTypePurchaseMilestone, Criteria: models.Criteria{models.CriteriaMinAmount: 500}},
			{Name: "Loyal Customer", Description: "Make 10 purchases", Icon: "⭐", Points: 100,
				Type: models.AchievementTypePurchaseMilestone, Criteria: models.Criteria{models.CriteriaMinPurchases: 10}},
			{Name: "VIP Member", Description: "Earn 500 loyalty points", Icon: "👑", Points: 200,
				Type: models.AchievementTypeEngagement, Criteria: models.Criteria{"min_points": 500}},
		}
		for i := range achievements {
			achievements[i].ID = uuid.NewString()
			achievements[i].Slug = slug.Make(achievements[i].Name)
		}
		if err := s.DB.WithContext(ctx).Create(&achievements).Error; err != nil {
			return fmt.Errorf("failed to seed achievements: %w", err)
		}
		log.Printf("🌱 Seeded %d default achievements", len(achievements))
	}

	if err := s.DB.WithContext(ctx).Model(&models.Badge{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		badges := []models.Badge{
			{Name: "Bronze Member", Description: "Unlock 2 achievements", Icon: "🥉", Level: 1, RequiredAchievements: 2, RequiredPoints: 50},
			{Name: "Silver Member", Description: "Unlock 3 achievements", Icon: "🥈", Level: 2, RequiredAchievements: 3, RequiredPoints: 150},
			{Name: "Gold Member", Description: "Unlock 4 achievements", Icon: "🥇", Level: 3, RequiredAchievements: 4, RequiredPoints: 350},
		}
		for i := range badges {
			badges[i].ID = uuid.NewString()
			badges[i].Slug = slug.Make(badges[i].Name)
		}
		if err := s.DB.WithContext(ctx).Create(&badges).Error; err != nil {
			return fmt.Errorf("failed to seed badges: %w", err)
		}
		log.Printf("🌱 Seeded %d default badges", len(badges))
	}

	return nil
}
