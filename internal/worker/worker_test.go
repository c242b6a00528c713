package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zapcore"

	mock_queue "github.com/ryhan5/aicademy/internal/mocks/queue"
	"github.com/ryhan5/aicademy/internal/queue"
	"github.com/ryhan5/aicademy/internal/record"
	"github.com/ryhan5/aicademy/internal/testutil"
)

type recordingRunner struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
	panic bool
	done  chan struct{}
}

func (r *recordingRunner) RunTask(_ context.Context, task queue.Task) error {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	n := len(r.tasks)
	r.mu.Unlock()
	if n == 1 && r.done != nil {
		defer close(r.done)
	}
	if r.panic {
		panic("boom")
	}
	return r.err
}

func TestPool_Run(t *testing.T) {
	tests := []struct {
		name    string
		runner  *recordingRunner
		wantLog string
	}{
		{name: "runs tasks", runner: &recordingRunner{}, wantLog: "task done"},
		{name: "logs task errors", runner: &recordingRunner{err: errors.New("upstream")}, wantLog: "task failed"},
		{name: "survives panics", runner: &recordingRunner{panic: true}, wantLog: "task panicked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			consumer := mock_queue.NewMockConsumer(ctrl)
			task := queue.Task{RecordID: "r1", CourseID: "c1", ContentType: record.ContentTypeNotes, Attempt: 1}

			consumer.EXPECT().Receive(gomock.Any()).Return(task, nil).Times(1)
			consumer.EXPECT().Receive(gomock.Any()).DoAndReturn(func(ctx context.Context) (queue.Task, error) {
				select {
				case <-ctx.Done():
					return queue.Task{}, ctx.Err()
				case <-time.After(time.Millisecond):
					return queue.Task{}, queue.ErrEmpty
				}
			}).AnyTimes()

			tt.runner.done = make(chan struct{})
			log, logs := testutil.NewObservedLogger(zapcore.DebugLevel)
			pool := NewPool(consumer, tt.runner, 1, log)

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- pool.Run(ctx) }()

			select {
			case <-tt.runner.done:
			case <-time.After(2 * time.Second):
				t.Fatal("task was not run")
			}
			cancel()
			require.NoError(t, <-errCh)

			tt.runner.mu.Lock()
			defer tt.runner.mu.Unlock()
			require.Len(t, tt.runner.tasks, 1)
			assert.Equal(t, task, tt.runner.tasks[0])
			assert.Equal(t, 1, logs.FilterMessage(tt.wantLog).Len())
		})
	}
}

func TestPool_ReceiveErrorBacksOff(t *testing.T) {
	ctrl := gomock.NewController(t)
	consumer := mock_queue.NewMockConsumer(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	consumer.EXPECT().Receive(gomock.Any()).DoAndReturn(func(context.Context) (queue.Task, error) {
		cancel()
		return queue.Task{}, errors.New("connection refused")
	}).Times(1)

	pool := NewPool(consumer, &recordingRunner{}, 0, nil)
	assert.NoError(t, pool.Run(ctx))
}
