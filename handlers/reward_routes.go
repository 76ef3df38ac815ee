// handlers/reward_routes.go
package handlers

import (
	"strconv"
	"strings"
	"time"

	"activity-reward-system/middleware"
	"activity-reward-system/models"
	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupRewardRoutes exposes the player's reward feed and trainers.
func SetupRewardRoutes(app *fiber.App, rewards *services.RewardService, owners *services.GormOwnerStore) {
	feed := app.Group("/rewards", middleware.UserContextMiddleware())
	trainers := app.Group("/trainers", middleware.UserContextMiddleware())

	feed.Get("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var filter services.RewardFilter
		if s := c.Query("claimed"); s != "" {
			claimed, err := strconv.ParseBool(s)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid claimed parameter"})
			}
			filter.Claimed = &claimed
		}
		if k := c.Query("kind"); k != "" {
			switch kind := models.RewardKind(k); kind {
			case models.RewardCoin, models.RewardLevel, models.RewardItem, models.RewardMonster:
				filter.Kind = kind
			default:
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid kind parameter"})
			}
		}
		filter.Limit = 50
		if s := c.Query("limit"); s != "" {
			l, err := strconv.Atoi(s)
			if err != nil || l <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
			}
			filter.Limit = l
		}

		list, err := rewards.ListRewards(c.UserContext(), userID, filter)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"rewards": list})
	})

	feed.Get("/counts", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		counts, err := rewards.Counts(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(counts)
	})

	feed.Get("/stream", func(c *fiber.Ctx) error {
		return rewards.StreamRewardsSSE(c, 3*time.Second)
	})

	trainers.Get("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		list, err := owners.Trainers(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"trainers": list})
	})

	trainers.Post("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Trainer name is required"})
		}

		trainer, err := owners.CreateOwner(c.UserContext(), userID, req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(trainer)
	})
}
