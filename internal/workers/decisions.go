package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/morningai/morningai/internal/decisions"
	"github.com/morningai/morningai/internal/tasks"
)

// HandleDecisionAutoApprove approves a decision whose countdown elapsed.
// Decisions reviewed in the meantime are left alone.
func HandleDecisionAutoApprove(ctx context.Context, t *asynq.Task, svc *decisions.Service, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		// A malformed payload will never succeed
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.DecisionID == "" {
		return fmt.Errorf("%w: missing decision_id", asynq.SkipRetry)
	}

	log := logger.With().Str("decision_id", payload.DecisionID).Logger()

	approved, err := svc.AutoApprove(ctx, payload.DecisionID)
	if err != nil {
		log.Error().Err(err).Msg("Auto-approval failed")
		return err
	}
	if approved {
		log.Info().Msg("Decision auto-approved")
	} else {
		log.Debug().Msg("Decision already reviewed or not yet due - nothing to do")
	}
	return nil
}
