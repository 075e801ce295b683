// handlers/loyalty_routes.go
package handlers

import (
	"loyalty-program-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLoyaltyRoutes(router fiber.Router, loyaltyService *services.LoyaltyService) {
	users := router.Group("/users")

	users.Get("/:id/achievements", func(c *fiber.Ctx) error {
		user, err := loyaltyService.Users.FindUser(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}

		achievements, err := loyaltyService.UserAchievements(c.Context(), user.ID)
		if err != nil {
			return serviceError(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    achievements,
			"count":   len(achievements),
		})
	})

	users.Get("/:id/summary", func(c *fiber.Ctx) error {
		summary, err := loyaltyService.GetUserLoyaltySummary(c.Context(), c.Params("id"))
		if err != nil {
			return serviceError(c, err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"data":    summary,
		})
	})
}
