package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCronSchedulerRejectsBadExpression(t *testing.T) {
	t.Parallel()

	_, err := NewCronScheduler("every two hours", time.UTC, nil)
	require.Error(t, err)

	s, err := NewCronScheduler("0 */2 * * *", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, s.location)
}

func TestCronSchedulerStartStop(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("* * * * *", time.UTC, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx, func(time.Time) { calls.Add(1) }))
	require.Error(t, s.Start(ctx, func(time.Time) {}), "second start must fail")
	require.Error(t, s.Start(ctx, nil))

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
