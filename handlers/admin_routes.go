// handlers/admin_routes.go
package handlers

import (
	"fmt"
	"path/filepath"
	"strings"

	"loyalty-program-system/middleware"
	"loyalty-program-system/models"
	"loyalty-program-system/services"
	"loyalty-program-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupAdminRoutes(router fiber.Router, catalogService *services.CatalogService, userService *services.UserService, loyaltyService *services.LoyaltyService) {
	admin := router.Group("/admin", middleware.AdminAuthMiddleware())

	// --- Catalog: achievements ---

	admin.Get("/achievements", func(c *fiber.Ctx) error {
		achievements, err := catalogService.AllAchievements(c.Context())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    achievements,
			"count":   len(achievements),
		})
	})

	admin.Post("/achievements", func(c *fiber.Ctx) error {
		var req struct {
			Name        string          `json:"name" validate:"required"`
			Description string          `json:"description" validate:"required"`
			Icon        string          `json:"icon"`
			Points      *int            `json:"points" validate:"required,gte=0"`
			Type        string          `json:"type" validate:"required"`
			Criteria    models.Criteria `json:"criteria" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "validation failed",
				"fields": validationFields(err),
			})
		}

		achievement := models.Achievement{
			Name:        req.Name,
			Description: req.Description,
			Icon:        req.Icon,
			Points:      *req.Points,
			Type:        req.Type,
			Criteria:    req.Criteria,
		}
		if err := catalogService.CreateAchievement(c.Context(), &achievement); err != nil {
			return serviceError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Achievement created successfully",
			"data":    achievement,
		})
	})

	admin.Post("/achievements/:id/icon", func(c *fiber.Ctx) error {
		return uploadIcon(c, "achievements", func(url string) (interface{}, error) {
			return catalogService.SetAchievementIcon(c.Context(), c.Params("id"), url)
		})
	})

	// --- Catalog: badges ---

	admin.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := catalogService.AllBadges(c.Context())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    badges,
			"count":   len(badges),
		})
	})

	admin.Post("/badges", func(c *fiber.Ctx) error {
		var req struct {
			Name                 string `json:"name" validate:"required"`
			Description          string `json:"description" validate:"required"`
			Icon                 string `json:"icon"`
			Level                *int   `json:"level" validate:"required"`
			RequiredAchievements *int   `json:"required_achievements" validate:"required,gte=1"`
			RequiredPoints       *int   `json:"required_points" validate:"required,gte=0"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "validation failed",
				"fields": validationFields(err),
			})
		}

		badge := models.Badge{
			Name:                 req.Name,
			Description:          req.Description,
			Icon:                 req.Icon,
			Level:                *req.Level,
			RequiredAchievements: *req.RequiredAchievements,
			RequiredPoints:       *req.RequiredPoints,
		}
		if err := catalogService.CreateBadge(c.Context(), &badge); err != nil {
			return serviceError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Badge created successfully",
			"data":    badge,
		})
	})

	admin.Post("/badges/:id/icon", func(c *fiber.Ctx) error {
		return uploadIcon(c, "badges", func(url string) (interface{}, error) {
			return catalogService.SetBadgeIcon(c.Context(), c.Params("id"), url)
		})
	})

	// --- Users ---

	admin.Post("/users", func(c *fiber.Ctx) error {
		var req struct {
			Name  string `json:"name" validate:"required"`
			Email string `json:"email" validate:"required,email"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "validation failed",
				"fields": validationFields(err),
			})
		}

		user, err := userService.CreateUser(c.Context(), req.Name, req.Email)
		if err != nil {
			return serviceError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "User created successfully",
			"data":    user,
		})
	})

	admin.Get("/users/achievements", func(c *fiber.Ctx) error {
		overviews, err := userService.ListUsersWithStats(c.Context())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    overviews,
			"count":   len(overviews),
		})
	})

	admin.Get("/users/:id/achievements", func(c *fiber.Ctx) error {
		user, err := userService.FindUser(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}

		achievements, err := loyaltyService.UserAchievements(c.Context(), user.ID)
		if err != nil {
			return serviceError(c, err)
		}
		badges, err := loyaltyService.UserBadges(c.Context(), user.ID)
		if err != nil {
			return serviceError(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data": fiber.Map{
				"user_id":      user.ID,
				"name":         user.Name,
				"email":        user.Email,
				"achievements": achievements,
				"badges":       badges,
			},
		})
	})
}

// uploadIcon stores a multipart icon on R2 (or the local uploads dir when R2
// is not configured) and applies the resulting URL through apply.
func uploadIcon(c *fiber.Ctx, kind string, apply func(url string) (interface{}, error)) error {
	fileHeader, err := c.FormFile("icon")
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": fiber.Map{"icon": "icon file is required"},
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	key := fmt.Sprintf("icons/%s/%s%s", kind, uuid.NewString(), ext)

	var url string
	if utils.R2Enabled() {
		url, err = utils.UploadFileToR2(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "icon upload failed", "cause": err.Error()})
		}
	} else {
		destPath := utils.GetUploadPath(key)
		if err := utils.SaveFile(fileHeader, destPath); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "icon upload failed", "cause": err.Error()})
		}
		url = "/uploads/" + key
	}

	entity, err := apply(url)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Icon updated successfully",
		"data":    entity,
	})
}
