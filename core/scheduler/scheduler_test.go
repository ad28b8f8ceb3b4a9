package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"crm-bridge/core/models"
	"crm-bridge/core/orchestrator"
	"crm-bridge/core/store"
	"crm-bridge/core/syncerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []orchestrator.RunOptions
	started []time.Time
	block   chan struct{}
	ran   chan struct{}
	err   error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{ran: make(chan struct{}, 16)}
}

func (f *fakeRunner) RunCycle(ctx context.Context, opts orchestrator.RunOptions) (*orchestrator.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.started = append(f.started, time.Now())
	block := f.block
	f.mu.Unlock()

	select {
	case f.ran <- struct{}{}:
	default:
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Report{Cycle: &store.SyncCycle{CycleID: "c", Status: models.CycleSucceeded}}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitRan(t *testing.T, f *fakeRunner) {
	t.Helper()
	select {
	case <-f.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not run")
	}
}

func TestScheduler_Interval(t *testing.T) {
	r := newFakeRunner()
	s := New(r, 10*time.Millisecond, nil).WithDefaults(orchestrator.RunOptions{DryRun: true})
	s.Start(context.Background())

	waitRan(t, r)
	waitRan(t, r)
	s.Stop()

	assert.GreaterOrEqual(t, r.count(), 2)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.True(t, r.calls[0].DryRun)
}

func TestScheduler_Trigger(t *testing.T) {
	r := newFakeRunner()
	s := New(r, 0, nil)
	s.Start(context.Background())
	defer s.Stop()

	require.True(t, s.Trigger(orchestrator.RunOptions{DryRun: true}))
	waitRan(t, r)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.calls, 1)
	assert.True(t, r.calls[0].DryRun)
}

func TestScheduler_TriggerDroppedWhileRunning(t *testing.T) {
	r := newFakeRunner()
	r.block = make(chan struct{})
	s := New(r, 0, nil)
	s.Start(context.Background())
	defer s.Stop()

	require.True(t, s.Trigger(orchestrator.RunOptions{}))
	waitRan(t, r)
	assert.True(t, s.Busy())

	assert.False(t, s.Trigger(orchestrator.RunOptions{}))

	close(r.block)
	assert.Eventually(t, func() bool { return !s.Busy() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, r.count())
}

func TestScheduler_StopWaitsForCycle(t *testing.T) {
	r := newFakeRunner()
	r.block = make(chan struct{})
	s := New(r, 0, nil)
	s.Start(context.Background())

	require.True(t, s.Trigger(orchestrator.RunOptions{}))
	waitRan(t, r)

	// Stop cancels the cycle context, which releases the blocked runner.
	s.Stop()
	assert.False(t, s.Busy())
	s.Stop()
}

func TestScheduler_LockHeldIsNotAnError(t *testing.T) {
	r := newFakeRunner()
	r.err = syncerr.ErrCycleInProgress
	s := New(r, 0, nil)
	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	require.True(t, s.Trigger(orchestrator.RunOptions{}))
	waitRan(t, r)
}

func TestScheduler_LongCycleSkipsMissedTick(t *testing.T) {
	const interval = 200 * time.Millisecond
	r := newFakeRunner()
	r.block = make(chan struct{})
	s := New(r, interval, nil)
	s.Start(context.Background())
	defer s.Stop()

	waitRan(t, r)
	// Outlast the next tick so the ticker buffers it.
	time.Sleep(interval + interval/4)
	released := time.Now()
	close(r.block)

	waitRan(t, r)
	r.mu.Lock()
	defer r.mu.Unlock()
	require.GreaterOrEqual(t, len(r.started), 2)
	assert.GreaterOrEqual(t, r.started[1].Sub(released), interval/4,
		"the tick missed during the cycle must not start another at once")
}
