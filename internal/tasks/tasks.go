package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeDecisionAutoApprove = "decision:auto_approve"
	TypeBlacklistCleanup    = "blacklist:cleanup"
)

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	DecisionID string `json:"decision_id,omitempty"`
}

// NewDecisionAutoApproveTask creates a task that auto-approves a decision if still pending
func NewDecisionAutoApproveTask(decisionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{
		DecisionID: decisionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeDecisionAutoApprove, payload), nil
}

// NewBlacklistCleanupTask creates a task that purges expired blacklist entries
func NewBlacklistCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeBlacklistCleanup, nil)
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

// Enqueuer is the part of *asynq.Client used to submit tasks
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler submits morningai tasks to the queue
type Scheduler struct {
	client Enqueuer
	now    func() time.Time
}

// NewScheduler wraps an asynq client
func NewScheduler(client Enqueuer) *Scheduler {
	return &Scheduler{client: client, now: time.Now}
}

// ScheduleAutoApprove enqueues the auto-approval of a decision to run at at.
// Scheduling the same decision twice is a no-op.
func (s *Scheduler) ScheduleAutoApprove(ctx context.Context, decisionID string, at time.Time) error {
	task, err := NewDecisionAutoApproveTask(decisionID)
	if err != nil {
		return err
	}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	_, err = s.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.TaskID("auto-approve:"+decisionID),
		asynq.MaxRetry(5),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("failed to enqueue auto-approval: %w", err)
	}
	return nil
}

// EnqueueBlacklistCleanup enqueues a cleanup unless one is already queued
func (s *Scheduler) EnqueueBlacklistCleanup(ctx context.Context) error {
	_, err := s.client.EnqueueContext(ctx, NewBlacklistCleanupTask(),
		asynq.Queue("low"),
		asynq.Unique(30*time.Minute),
	)
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("failed to enqueue blacklist cleanup: %w", err)
	}
	return nil
}
