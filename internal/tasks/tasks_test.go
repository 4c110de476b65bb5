package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "x"}, nil
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func TestScheduleAutoApprove(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := NewScheduler(enq)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.ScheduleAutoApprove(context.Background(), "d1", now.Add(5*time.Minute)))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeDecisionAutoApprove, enq.tasks[0].Type())

	payload, err := ParseTaskPayload(enq.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, "d1", payload.DecisionID)

	delay, ok := optionValue(enq.opts[0], asynq.ProcessInOpt)
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, delay)

	id, ok := optionValue(enq.opts[0], asynq.TaskIDOpt)
	require.True(t, ok)
	assert.Equal(t, "auto-approve:d1", id)
}

func TestScheduleAutoApprove_ConflictIsNoop(t *testing.T) {
	s := NewScheduler(&fakeEnqueuer{err: asynq.ErrTaskIDConflict})
	assert.NoError(t, s.ScheduleAutoApprove(context.Background(), "d1", time.Now()))

	s = NewScheduler(&fakeEnqueuer{err: assert.AnError})
	assert.Error(t, s.ScheduleAutoApprove(context.Background(), "d1", time.Now()))
}

func TestEnqueueBlacklistCleanup(t *testing.T) {
	enq := &fakeEnqueuer{}
	require.NoError(t, NewScheduler(enq).EnqueueBlacklistCleanup(context.Background()))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TypeBlacklistCleanup, enq.tasks[0].Type())

	assert.NoError(t, NewScheduler(&fakeEnqueuer{err: asynq.ErrDuplicateTask}).EnqueueBlacklistCleanup(context.Background()))
}
