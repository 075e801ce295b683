package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"loyalty-program-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserService owns user lookups and the admin user listing.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// FindUser resolves a user by id or email (the API lets callers address
// users either way). The ref's shape picks the column: Postgres rejects a
// non-uuid bind against the uuid id column outright, so an email ref must
// never reach the id query.
func (s *UserService) FindUser(ctx context.Context, ref string) (*models.User, error) {
	column := "email = ?"
	value := strings.ToLower(ref)
	if uuid.Validate(ref) == nil {
		column = "id = ?"
		value = ref
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, column, value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "user", Ref: ref}
		}
		return nil, fmt.Errorf("failed to look up user %s: %w", ref, err)
	}
	return &user, nil
}

// CreateUser registers a loyalty-program customer.
func (s *UserService) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Message: "a valid email is required"}
	}

	user := models.User{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ValidationError{Field: "email", Message: "email already registered"}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// UserOverview is one row of the admin user listing.
type UserOverview struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	TotalAchievements int64  `json:"total_achievements"`
	BadgesCount       int64  `json:"badges_count"`
	CurrentBadge      string `json:"current_badge"`
}

// ListUsersWithStats returns every user with achievement/badge aggregate
// counts and their current (highest level) badge.
func (s *UserService) ListUsersWithStats(ctx context.Context) ([]UserOverview, error) {
	overviews := []UserOverview{}
	err := s.DB.WithContext(ctx).Raw(`
		SELECT u.id, u.name, u.email,
			(SELECT COUNT(*) FROM user_achievements ua WHERE ua.user_id = u.id) AS total_achievements,
			(SELECT COUNT(*) FROM user_badges ub WHERE ub.user_id = u.id) AS badges_count,
			COALESCE((
				SELECT b.name FROM user_badges ub
				INNER JOIN badges b ON b.id = ub.badge_id
				WHERE ub.user_id = u.id
				ORDER BY b.level DESC
				LIMIT 1
			), ?) AS current_badge
		FROM users u
		WHERE u.deleted_at IS NULL
		ORDER BY u.created_at ASC
	`, models.NoBadge).Scan(&overviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return overviews, nil
}
