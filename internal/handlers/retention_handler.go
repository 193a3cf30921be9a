package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/sin3107/matching-sub001/internal/services"
)

type retentionOperator interface {
	RunGlobalSweep(ctx context.Context) error
	PurgeUser(ctx context.Context, userID int64) error
}

// RetentionHandler exposes the retention operations on internal routes: the
// sweep trigger (also what the scheduler task calls) and the account-deletion
// cascade.
type RetentionHandler struct {
	service retentionOperator
}

func NewRetentionHandler(service retentionOperator) *RetentionHandler {
	return &RetentionHandler{service: service}
}

func (h *RetentionHandler) RunSweep(c *fiber.Ctx) error {
	if err := h.service.RunGlobalSweep(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Sweep failed"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *RetentionHandler) PurgeUser(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	if err := h.service.PurgeUser(c.Context(), userID); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Purge failed"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
