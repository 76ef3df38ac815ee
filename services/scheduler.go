// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSessionSweeper abandons sessions left active well past their expected end.
// A non-positive interval disables it and returns a nil scheduler.
func (s *SessionService) StartSessionSweeper(interval, abandonAfter time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		log.Println("⚠️  Session sweeper disabled (SESSION_SWEEP_INTERVAL=0)")
		return nil, nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := s.SweepStale(ctx, abandonAfter); err != nil {
				log.Printf("[SWEEPER] ❌ %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	log.Printf("✅ Session sweeper running (every %s, abandon after %s)", interval, abandonAfter)
	return sched, nil
}

// SweepStale expires every active session whose expected end is older than abandonAfter.
func (s *SessionService) SweepStale(ctx context.Context, abandonAfter time.Duration) (int, error) {
	n, err := s.ExpireStale(ctx, s.now().Add(-abandonAfter))
	if n > 0 {
		log.Printf("[SWEEPER] ⏰ Abandoned %d stale session(s)", n)
	}
	return n, err
}
