// handlers/activity_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"

	"activity-reward-system/middleware"
	"activity-reward-system/models"
	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// ActivityServices bundles what the activity routes need.
type ActivityServices struct {
	Sessions *services.SessionService
	Cooldown *services.CooldownGate
	Claims   *services.ClaimService
	Prompts  *services.PromptProvider
}

func SetupActivityRoutes(app *fiber.App, svc ActivityServices) {
	// 🔐 All activity routes act on behalf of the player set by the Gateway
	activities := app.Group("/activities", middleware.UserContextMiddleware())

	activities.Get("/locations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"locations": svc.Prompts.Locations()})
	})

	activities.Get("/status/:location", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		status, err := svc.Sessions.Status(c.UserContext(), userID, c.Params("location"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(status)
	})

	activities.Get("/can-start/:location", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		cd, err := svc.Cooldown.CanStart(c.UserContext(), userID, c.Params("location"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"can_start": !cd.Active, "cooldown": cd})
	})

	activities.Post("/start", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Location string `json:"location"`
			Activity string `json:"activity"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		session, err := svc.Sessions.Start(c.UserContext(), userID, req.Location, req.Activity)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sessionStartView(svc.Prompts, session, false))
	})

	activities.Post("/resume", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Location string `json:"location"`
			Activity string `json:"activity"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		session, resumed, err := svc.Sessions.Resume(c.UserContext(), userID, req.Location, req.Activity)
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusCreated
		if resumed {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(sessionStartView(svc.Prompts, session, resumed))
	})

	activities.Get("/sessions/:id", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		session, err := svc.Sessions.Get(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		flavor, _ := svc.Prompts.Flavor(session.Location, session.Activity)
		return c.JSON(fiber.Map{
			"session": session,
			"prompt":  promptView(session),
			"flavor":  flavor,
		})
	})

	activities.Post("/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			SessionID  string `json:"session_id"`
			Assessment string `json:"assessment"`
			Minutes    int    `json:"minutes"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		run, err := svc.Sessions.RecordProgress(c.UserContext(), userID, req.SessionID, req.Assessment, req.Minutes)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"run": run, "productivity_score": run.AverageAssessment()})
	})

	activities.Post("/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			SessionID string                   `json:"session_id"`
			Outcome   services.CompleteRequest `json:"outcome"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		result, err := svc.Sessions.Complete(c.UserContext(), userID, req.SessionID, req.Outcome)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"session_id": result.Session.ID,
			"outcome":    result.Session.Outcome,
			"reward_bundle": fiber.Map{
				"multipliers": result.Bundle.Multipliers,
				"rewards":     result.Rewards,
			},
		})
	})

	activities.Post("/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			SessionID          string `json:"session_id"`
			DestinationOwnerID string `json:"destination_owner_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		result, err := svc.Claims.Claim(c.UserContext(), userID, req.SessionID, req.DestinationOwnerID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	activities.Post("/sessions/:id/cancel", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		session, err := svc.Sessions.Cancel(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Session cancelled", "session": session})
	})

	activities.Get("/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit := 20
		if s := c.Query("limit"); s != "" {
			l, err := strconv.Atoi(s)
			if err != nil || l <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
			}
			limit = l
		}

		sessions, err := svc.Sessions.History(c.UserContext(), userID, limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"sessions": sessions})
	})
}

func promptView(s *models.ActivitySession) fiber.Map {
	return fiber.Map{"id": s.PromptID, "text": s.PromptText, "difficulty": s.PromptDifficulty}
}

func sessionStartView(prompts *services.PromptProvider, s *models.ActivitySession, resumed bool) fiber.Map {
	flavor, _ := prompts.Flavor(s.Location, s.Activity)
	return fiber.Map{
		"session_id":       s.ID,
		"location":         s.Location,
		"activity":         s.Activity,
		"prompt":           promptView(s),
		"flavor":           flavor,
		"duration_minutes": s.DurationMinutes,
		"started_at":       s.StartedAt,
		"expected_end_at":  s.ExpectedEndAt,
		"resumed":          resumed,
	}
}

// respondError maps engine errors onto status codes with a stable kind.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.ErrorKind(err)
	body := fiber.Map{"error": err.Error(), "kind": kind}

	status := fiber.StatusInternalServerError
	switch kind {
	case "invalid_location_or_activity", "invalid_assessment", "invalid_trainer_name":
		status = fiber.StatusBadRequest
	case "session_not_found", "owner_not_found":
		status = fiber.StatusNotFound
	case "on_cooldown", "session_not_active", "session_not_completed", "already_claimed":
		status = fiber.StatusConflict
	}

	var cd *services.CooldownError
	if errors.As(err, &cd) {
		body["time_remaining_seconds"] = int64(cd.Remaining.Seconds())
	}
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
		body["error"] = "internal error"
	}
	return c.Status(status).JSON(body)
}
