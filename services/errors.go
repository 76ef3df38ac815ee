// services/errors.go
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidLocationOrActivity = errors.New("invalid location or activity")
	ErrOnCooldown                = errors.New("location is on cooldown")
	ErrSessionNotFound           = errors.New("session not found")
	ErrSessionNotActive          = errors.New("session is not active")
	ErrSessionNotCompleted       = errors.New("session bundle is not finalized")
	ErrAlreadyClaimed            = errors.New("rewards already claimed")
	ErrOwnerNotFound             = errors.New("destination owner not found")
	ErrInvalidAssessment         = errors.New("invalid assessment")
	ErrInvalidTrainerName        = errors.New("trainer name is required")

	// Catalog errors are recovered during generation and never reach callers.
	ErrCatalogTimeout     = errors.New("catalog lookup timed out")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// CooldownError carries how long the caller has to wait.
type CooldownError struct {
	Location  string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s is available again in %s", ErrOnCooldown, e.Location, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrOnCooldown }

// ErrorKind maps an error to its stable kind string.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidLocationOrActivity):
		return "invalid_location_or_activity"
	case errors.Is(err, ErrOnCooldown):
		return "on_cooldown"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionNotActive):
		return "session_not_active"
	case errors.Is(err, ErrSessionNotCompleted):
		return "session_not_completed"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrOwnerNotFound):
		return "owner_not_found"
	case errors.Is(err, ErrInvalidAssessment):
		return "invalid_assessment"
	case errors.Is(err, ErrInvalidTrainerName):
		return "invalid_trainer_name"
	case errors.Is(err, ErrCatalogTimeout):
		return "catalog_timeout"
	case errors.Is(err, ErrCatalogUnavailable):
		return "catalog_unavailable"
	}
	return "internal"
}
