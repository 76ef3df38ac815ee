package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"activity-reward-system/models"

	"github.com/gofiber/fiber/v2"
)

// StreamRewardsSSE streams newly finalized rewards for the authenticated player.
func (s *RewardService) StreamRewardsSSE(c *fiber.Ctx, pollEvery time.Duration) error {
	playerID, _ := c.Locals("user_id").(string)
	if playerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User ID not found in context"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	reqCtx := c.Context()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx := context.Background()
		ticker := time.NewTicker(pollEvery)
		defer ticker.Stop()

		cursor, err := s.FeedHead(ctx, playerID)
		if err != nil {
			log.Printf("[SSE] init error for player %s: %v", playerID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				head, err := s.FeedHead(ctx, playerID)
				if err != nil {
					log.Printf("[SSE] query error for player %s: %v", playerID, err)
					continue
				}
				var rewards []models.SessionReward
				if head > cursor {
					rewards, err = s.Since(ctx, playerID, cursor, head)
					if err != nil {
						log.Printf("[SSE] query error for player %s: %v", playerID, err)
						continue
					}
					cursor = head
				}
				if len(rewards) == 0 {
					if _, err := w.WriteString(":\n\n"); err != nil || w.Flush() != nil {
						return
					}
					continue
				}

				for _, r := range rewards {
					payload, _ := json.Marshal(r)
					fmt.Fprintf(w, "event: reward\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-reqCtx.Done():
				return
			}
		}
	})

	return nil
}
