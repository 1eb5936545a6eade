package control_test

import (
	"context"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goems/internal/control"
	"github.com/dantte-lp/goems/internal/queue"
)

func TestSIGINTClearsRunningAndShutsDownQueue(t *testing.T) {
	state := control.NewState()
	q := queue.New(2)
	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctrl := control.NewController(state, q, logger, cancel)
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("controller did not exit after SIGINT")
	}

	assert.False(t, state.Running())
	assert.True(t, q.ShuttingDown())
}

func TestSIGUSR1SetsListAllOnce(t *testing.T) {
	state := control.NewState()
	q := queue.New(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctrl := control.NewController(state, q, logger, cancel)
	go ctrl.Run(ctx)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, func() bool {
		return state.ListAllRequested()
	}, time.Second, 5*time.Millisecond)

	assert.False(t, state.ListAllRequested())
}
