package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func stopWithin(t *testing.T, s *Supervisor) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(ctx)
}

func TestGoLatchesFirstError(t *testing.T) {
	s := New(context.Background())
	boom := errors.New("boom")
	s.Go("a", func(ctx context.Context) error { return boom })
	s.Go0("b", func(ctx context.Context) { <-ctx.Done() })

	require.Eventually(t, func() bool { return s.Err() != nil }, 2*time.Second, 5*time.Millisecond)
	require.ErrorIs(t, s.Err(), boom)
	require.ErrorContains(t, s.Err(), "a: boom")
	require.ErrorIs(t, stopWithin(t, s), boom)
}

func TestCancelOnError(t *testing.T) {
	s := New(context.Background(), WithCancelOnError(true))
	s.Go0("waiter", func(ctx context.Context) { <-ctx.Done() })
	s.Go("failer", func(ctx context.Context) error { return errors.New("x") })

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled")
	}
	require.Error(t, stopWithin(t, s))
}

func TestGoRecoversPanic(t *testing.T) {
	s := New(context.Background())
	s.Go("p", func(ctx context.Context) error { panic("oops") })
	require.ErrorContains(t, stopWithin(t, s), "panic: oops")

	snap := s.Snapshot()
	require.Len(t, snap.Workers, 1)
	require.EqualValues(t, 1, snap.Workers[0].Panics)
	require.False(t, snap.Workers[0].Running)
}

func TestCanceledIsClean(t *testing.T) {
	s := New(context.Background())
	s.Go("w", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, stopWithin(t, s))
}

func TestGoRestartRestartsUntilHealthy(t *testing.T) {
	s := New(context.Background())
	var calls atomic.Int32
	healthy := make(chan struct{})
	s.GoRestart("loop", func(ctx context.Context) error {
		switch calls.Add(1) {
		case 1:
			return errors.New("transient")
		case 2:
			panic("again")
		}
		close(healthy)
		<-ctx.Done()
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond), WithPublishFirstError(true))

	select {
	case <-healthy:
	case <-time.After(2 * time.Second):
		t.Fatal("never became healthy")
	}
	snap := s.Snapshot()
	require.Len(t, snap.Workers, 1)
	require.EqualValues(t, 2, snap.Workers[0].Restarts)
	require.EqualValues(t, 1, snap.Workers[0].Panics)
	require.True(t, snap.Workers[0].Running)
	require.ErrorContains(t, s.Err(), "loop: transient")

	require.ErrorContains(t, stopWithin(t, s), "transient")
}

func TestGoRestartGivesUp(t *testing.T) {
	s := New(context.Background())
	var calls atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("down")
	}, WithRestartBackoff(time.Millisecond, time.Millisecond), WithMaxRestarts(2))

	require.Eventually(t, func() bool { return s.Err() != nil }, 2*time.Second, 5*time.Millisecond)
	require.EqualValues(t, 3, calls.Load())
	require.Error(t, stopWithin(t, s))
}

func TestWaitHonoursContext(t *testing.T) {
	s := New(context.Background())
	release := make(chan struct{})
	s.Go0("stuck", func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, stopWithin(t, s))
}
