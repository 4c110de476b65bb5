// Package decisions manages automated actions awaiting operator approval.
//
// A decision leaves the pending state exactly once. Every transition is a
// conditional UPDATE on status = 'pending', so an operator approving, an
// operator rejecting and the auto-approval job can race without two of them
// winning.
package decisions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/morningai/morningai/internal/models"
)

var (
	ErrNotFound      = errors.New("decision not found")
	ErrNotPending    = errors.New("decision is no longer pending")
	ErrInvalidStatus = errors.New("invalid decision status")
)

// Scheduler arranges for a decision to be auto-approved at a given time
type Scheduler interface {
	ScheduleAutoApprove(ctx context.Context, decisionID string, at time.Time) error
}

// CreateInput describes a new decision
type CreateInput struct {
	Strategy            string
	StrategyDescription string
	TriggerType         string
	TriggerValue        float64
	TriggerThreshold    float64
	PredictedImpact     string
	RiskAssessment      string
	Priority            string
	// Zero disables auto-approval
	AutoApproveAfter time.Duration
}

// View is a decision as shown to clients, with the live countdown
type View struct {
	models.Decision
	AutoApproveInSeconds int `json:"auto_approve_in_seconds"`
}

// NewView derives the countdown at now
func NewView(d models.Decision, now time.Time) View {
	return View{Decision: d, AutoApproveInSeconds: int(d.AutoApproveIn(now).Seconds())}
}

// Service manages decisions
type Service struct {
	db        *gorm.DB
	scheduler Scheduler
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a decision service. scheduler may be nil, in which case
// overdue decisions are only picked up by SweepOverdue.
func NewService(db *gorm.DB, scheduler Scheduler, logger zerolog.Logger) *Service {
	return &Service{db: db, scheduler: scheduler, logger: logger, now: time.Now}
}

// Create stores a pending decision and schedules its auto-approval
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Decision, error) {
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	d := &models.Decision{
		Strategy:            in.Strategy,
		StrategyDescription: in.StrategyDescription,
		TriggerType:         in.TriggerType,
		TriggerValue:        in.TriggerValue,
		TriggerThreshold:    in.TriggerThreshold,
		PredictedImpact:     in.PredictedImpact,
		RiskAssessment:      in.RiskAssessment,
		Priority:            priority,
		Status:              models.DecisionPending,
	}
	if in.AutoApproveAfter > 0 {
		at := s.now().Add(in.AutoApproveAfter).UTC()
		d.AutoApproveAt = &at
	}

	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, fmt.Errorf("failed to create decision: %w", err)
	}

	if d.AutoApproveAt != nil && s.scheduler != nil {
		if err := s.scheduler.ScheduleAutoApprove(ctx, d.ID, *d.AutoApproveAt); err != nil {
			// The worker's sweep still catches it
			s.logger.Warn().Err(err).Str("decision_id", d.ID).Msg("Failed to schedule auto-approval")
		}
	}

	s.logger.Info().
		Str("decision_id", d.ID).
		Str("strategy", d.Strategy).
		Str("priority", d.Priority).
		Msg("Decision created")
	return d, nil
}

// Get loads a decision by ID
func (s *Service) Get(ctx context.Context, id string) (*models.Decision, error) {
	var d models.Decision
	if err := models.FindByID(s.db.WithContext(ctx), id, &d); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find decision: %w", err)
	}
	return &d, nil
}

// List returns decisions newest first, optionally filtered by status
func (s *Service) List(ctx context.Context, status string) ([]models.Decision, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		if !ValidStatus(status) {
			return nil, ErrInvalidStatus
		}
		query = query.Where("status = ?", status)
	}

	var items []models.Decision
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	return items, nil
}

// CountPending returns how many decisions await review
func (s *Service) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Decision{}).
		Where("status = ?", models.DecisionPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count pending decisions: %w", err)
	}
	return count, nil
}

// Approve marks a pending decision approved by reviewerID
func (s *Service) Approve(ctx context.Context, id, reviewerID, comment string) (*models.Decision, error) {
	return s.review(ctx, id, models.DecisionApproved, reviewerID, comment)
}

// Reject marks a pending decision rejected by reviewerID
func (s *Service) Reject(ctx context.Context, id, reviewerID, comment string) (*models.Decision, error) {
	return s.review(ctx, id, models.DecisionRejected, reviewerID, comment)
}

func (s *Service) review(ctx context.Context, id, status, reviewerID, comment string) (*models.Decision, error) {
	now := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&models.Decision{}).
		Where("id = ? AND status = ?", id, models.DecisionPending).
		Updates(map[string]any{
			"status":         status,
			"reviewed_by_id": reviewerID,
			"review_comment": comment,
			"reviewed_at":    now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update decision: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, s.missOrConflict(ctx, id)
	}

	s.logger.Info().Str("decision_id", id).Str("status", status).Str("reviewed_by", reviewerID).Msg("Decision reviewed")
	return s.Get(ctx, id)
}

// AutoApprove approves a pending decision whose countdown has elapsed.
// It returns false without error when there was nothing to do.
func (s *Service) AutoApprove(ctx context.Context, id string) (bool, error) {
	now := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&models.Decision{}).
		Where("id = ? AND status = ? AND auto_approve_at IS NOT NULL AND auto_approve_at <= ?", id, models.DecisionPending, now).
		Updates(map[string]any{
			"status":      models.DecisionAutoApproved,
			"reviewed_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to auto-approve decision: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	s.logger.Info().Str("decision_id", id).Msg("Decision auto-approved")
	return true, nil
}

// SweepOverdue auto-approves every pending decision past its deadline
func (s *Service) SweepOverdue(ctx context.Context) (int64, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Decision{}).
		Where("status = ? AND auto_approve_at IS NOT NULL AND auto_approve_at <= ?", models.DecisionPending, s.now().UTC()).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find overdue decisions: %w", err)
	}

	var approved int64
	for _, id := range ids {
		ok, err := s.AutoApprove(ctx, id)
		if err != nil {
			return approved, err
		}
		if ok {
			approved++
		}
	}
	return approved, nil
}

func (s *Service) missOrConflict(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotPending
}

// ValidStatus reports whether status is a known decision status
func ValidStatus(status string) bool {
	switch status {
	case models.DecisionPending, models.DecisionApproved, models.DecisionRejected, models.DecisionAutoApproved:
		return true
	}
	return false
}
