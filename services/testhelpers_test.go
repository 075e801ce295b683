package services

import (
	"fmt"
	"sync"
	"testing"

	"loyalty-program-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Purchase{},
		&models.Achievement{},
		&models.Badge{},
		&models.UserAchievement{},
		&models.UserBadge{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()
	user := &models.User{ID: uuid.NewString(), Name: name, Email: email}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedAchievement(t *testing.T, db *gorm.DB, name string, points int, achievementType string, criteria models.Criteria) *models.Achievement {
	t.Helper()
	a := &models.Achievement{
		ID:       uuid.NewString(),
		Slug:     slug.Make(name),
		Name:     name,
		Points:   points,
		Type:     achievementType,
		Criteria: criteria,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedBadge(t *testing.T, db *gorm.DB, name string, level, requiredAchievements, requiredPoints int) *models.Badge {
	t.Helper()
	b := &models.Badge{
		ID:                   uuid.NewString(),
		Slug:                 slug.Make(name),
		Name:                 name,
		Level:                level,
		RequiredAchievements: requiredAchievements,
		RequiredPoints:       requiredPoints,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

// recordingSink captures emitted loyalty facts for assertions.
type recordingSink struct {
	mu           sync.Mutex
	purchases    []PurchaseCompleted
	achievements []AchievementUnlocked
	badges       []BadgeUnlocked
}

func (s *recordingSink) PurchaseCompleted(e PurchaseCompleted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = append(s.purchases, e)
}

func (s *recordingSink) AchievementUnlocked(e AchievementUnlocked) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.achievements = append(s.achievements, e)
}

func (s *recordingSink) BadgeUnlocked(e BadgeUnlocked) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badges = append(s.badges, e)
}

func (s *recordingSink) achievementNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.achievements))
	for _, e := range s.achievements {
		names = append(names, e.Achievement.Name)
	}
	return names
}

func (s *recordingSink) badgeNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.badges))
	for _, e := range s.badges {
		names = append(names, e.Badge.Name)
	}
	return names
}
