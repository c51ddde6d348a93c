package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sinc-labs/janitor/internal/domain"
	"github.com/sinc-labs/janitor/internal/infra/lock"
	"github.com/sinc-labs/janitor/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	calls   int32
	started chan struct{}
	block   chan struct{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context) (*domain.RunSummary, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &domain.RunSummary{RunID: "r", Status: domain.RunStatusSucceeded}, f.err
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := scheduler.New(&fakeRunner{}, nil, scheduler.Config{Cron: "0 0 * * *", Timezone: "Mars/Olympus"}, zap.NewNop())
	assert.Error(t, err)

	_, err = scheduler.New(&fakeRunner{}, nil, scheduler.Config{Cron: "every midnight", Timezone: "UTC"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNext_UsesConfiguredTimezone(t *testing.T) {
	s, err := scheduler.New(&fakeRunner{}, nil, scheduler.Config{Cron: "0 0 * * *", Timezone: "America/Sao_Paulo"}, zap.NewNop())
	require.NoError(t, err)

	next := s.Next()
	assert.Equal(t, "America/Sao_Paulo", next.Location().String())
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(time.Now()))
}

func TestTrigger_RunsOnce(t *testing.T) {
	runner := &fakeRunner{}
	s, err := scheduler.New(runner, lock.NewLocalLock(), scheduler.Config{}, zap.NewNop())
	require.NoError(t, err)

	summary, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r", summary.RunID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))

	// The lock is released afterwards.
	_, err = s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&runner.calls))
}

func TestTrigger_OverlapIsRejected(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}, 1), block: make(chan struct{})}
	s, err := scheduler.New(runner, lock.NewLocalLock(), scheduler.Config{}, zap.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background())
		done <- err
	}()
	<-runner.started

	_, err = s.Trigger(context.Background())
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	close(runner.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
}

func TestTrigger_PropagatesScanFailure(t *testing.T) {
	scanErr := &domain.ErrScanFailure{Err: errors.New("boom")}
	s, err := scheduler.New(&fakeRunner{err: scanErr}, nil, scheduler.Config{}, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Trigger(context.Background())
	var target *domain.ErrScanFailure
	assert.ErrorAs(t, err, &target)
}

func TestTrigger_RunTimeout(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s, err := scheduler.New(runner, nil, scheduler.Config{RunTimeout: 20 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	_, err = s.Trigger(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartStop(t *testing.T) {
	s, err := scheduler.New(&fakeRunner{}, nil, scheduler.Config{Cron: "0 3 * * *", Timezone: "UTC"}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
