package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/jobrunner/internal/jobs"
)

// RegisterAll wires every built-in handler into the registry. Called once
// at worker startup, before the claim loop begins.
func RegisterAll(registry *jobs.Registry, logger *slog.Logger) error {
	factories := map[string]jobs.Factory{
		"send_welcome_email": func() jobs.Handler { return &SendWelcomeEmail{logger: logger} },
		"sleep":              func() jobs.Handler { return &Sleep{logger: logger} },
	}

	for name, factory := range factories {
		if err := registry.Register(name, factory); err != nil {
			return fmt.Errorf("failed to register handler %s: %w", name, err)
		}
	}

	return nil
}

// SendWelcomeEmail delivers the onboarding email for a newly created user.
type SendWelcomeEmail struct {
	logger *slog.Logger
}

type welcomeEmailArgs struct {
	UserID int    `json:"userId"`
	Email  string `json:"email"`
}

// Perform implements jobs.Handler.
func (h *SendWelcomeEmail) Perform(ctx context.Context, args []json.RawMessage) error {
	if len(args) == 0 {
		return fmt.Errorf("send_welcome_email requires one argument")
	}

	var params welcomeEmailArgs
	if err := json.Unmarshal(args[0], &params); err != nil {
		return fmt.Errorf("invalid send_welcome_email arguments: %w", err)
	}

	// Delivery goes through the mail relay here; for now the job records
	// its intent so the pipeline can be exercised end to end.
	h.logger.Info("Sending welcome email",
		slog.Int("user_id", params.UserID),
		slog.String("email", params.Email),
	)

	return nil
}

// Sleep pauses for a duration, useful for exercising timeouts and drain
// behavior in staging.
type Sleep struct {
	logger *slog.Logger
}

// Perform implements jobs.Handler.
func (h *Sleep) Perform(ctx context.Context, args []json.RawMessage) error {
	duration := time.Second
	if len(args) > 0 {
		var seconds float64
		if err := json.Unmarshal(args[0], &seconds); err != nil {
			return fmt.Errorf("invalid sleep arguments: %w", err)
		}
		duration = time.Duration(seconds * float64(time.Second))
	}

	h.logger.Info("Sleeping", slog.Duration("duration", duration))

	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
