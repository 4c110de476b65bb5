package workers

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/morningai/morningai/internal/tokens"
)

// HandleBlacklistCleanup purges blacklist entries whose tokens have expired
func HandleBlacklistCleanup(ctx context.Context, _ *asynq.Task, svc *tokens.Service, logger zerolog.Logger) error {
	cleaned, err := svc.Cleanup(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Blacklist cleanup failed")
		return err
	}
	logger.Info().Int64("cleaned_count", cleaned).Msg("Blacklist cleanup finished")
	return nil
}
