// handlers/purchase_routes.go
package handlers

import (
	"loyalty-program-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPurchaseRoutes(router fiber.Router, loyaltyService *services.LoyaltyService) {
	router.Post("/purchases", func(c *fiber.Ctx) error {
		var req struct {
			UserID        string  `json:"user_id" validate:"required"`
			Amount        float64 `json:"amount" validate:"required,gt=0"`
			TransactionID string  `json:"transaction_id" validate:"required"`
			PaymentMethod *string `json:"payment_method"`
			Currency      string  `json:"currency" validate:"omitempty,len=3"`
		}

		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := validate.Struct(&req); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "validation failed",
				"fields": validationFields(err),
			})
		}

		purchase, err := loyaltyService.RecordPurchase(
			c.Context(), req.UserID, req.Amount, req.TransactionID, req.PaymentMethod, req.Currency,
		)
		if err != nil {
			return serviceError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Purchase recorded successfully",
			"data": fiber.Map{
				"id":              purchase.ID,
				"user_id":         purchase.UserID,
				"amount":          purchase.Amount,
				"currency":        purchase.Currency,
				"cashback_amount": purchase.CashbackAmount,
				"status":          purchase.Status,
				"transaction_id":  purchase.TransactionID,
				"created_at":      purchase.CreatedAt,
			},
		})
	})
}
