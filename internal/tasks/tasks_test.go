package tasks_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nir0k/photokeep/internal/tasks"
)

func TestAwaitReturnsResult(t *testing.T) {
	r := tasks.NewRunner(nil)

	got, err := tasks.Await(context.Background(), r, "quick", time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, got)
}

func TestAwaitPropagatesError(t *testing.T) {
	r := tasks.NewRunner(nil)
	boom := errors.New("boom")

	_, err := tasks.Await(context.Background(), r, "failing", time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestAwaitTimesOut(t *testing.T) {
	r := tasks.NewRunner(nil)

	started := time.Now()
	_, err := tasks.Await(context.Background(), r, "slow", 50*time.Millisecond, func(ctx context.Context) (int, error) {
		select {
		case <-time.After(5 * time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
	require.ErrorIs(t, err, tasks.ErrTimeout)
	require.Less(t, time.Since(started), time.Second, "caller must not block past the deadline")
}

func TestAwaitCancelsWorkerOnTimeout(t *testing.T) {
	r := tasks.NewRunner(nil)

	cancelled := make(chan struct{})
	_, err := tasks.Await(context.Background(), r, "cancellable", 50*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, tasks.ErrTimeout)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("worker never observed cancellation")
	}
}

func TestAwaitLogsLateCompletion(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	r := tasks.NewRunner(func(format string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	release := make(chan struct{})
	_, err := tasks.Await(context.Background(), r, "straggler", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-release
		return 7, nil
	})
	require.ErrorIs(t, err, tasks.ErrTimeout)

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, lines[0], "straggler")
}

func TestAwaitErr(t *testing.T) {
	r := tasks.NewRunner(nil)

	err := tasks.AwaitErr(context.Background(), r, "noop", time.Second, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}
