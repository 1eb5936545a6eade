// Package control holds the process-global control state spec.md §3
// describes (server_running, list_all) and the Signal Controller that
// drives it. Design Note "Global mutable state" re-architects the
// source's process-wide globals as an explicit, reference-shared value
// with atomic-boolean flags rather than package-level variables.
package control

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/dantte-lp/goems/internal/queue"
)

// State is the process-global control state shared by the acceptor,
// worker pool, and Signal Controller.
type State struct {
	running atomic.Bool
	listAll atomic.Bool
}

// NewState returns a State with Running initially true.
func NewState() *State {
	s := &State{}
	s.running.Store(true)
	return s
}

// Running reports whether the server should keep accepting and serving
// sessions.
func (s *State) Running() bool { return s.running.Load() }

// ListAllRequested reports whether a diagnostic dump has been requested
// and clears the flag; intended to be polled once per acceptor loop
// iteration per spec.md §4.5 step 1.
func (s *State) ListAllRequested() bool {
	return s.listAll.CompareAndSwap(true, false)
}

// Controller is the Signal Controller of spec.md §4.6. It owns the
// process's signal disposition and must be started before any worker
// goroutine runs, exactly as the spec requires signal installation to
// happen "before worker threads are created".
//
// Go has no per-goroutine signal mask, so "workers must mask the
// diagnostic signal so only the acceptor thread services it" is
// satisfied structurally instead: signal.Notify delivers SIGUSR1 to a
// channel that only this Controller's goroutine ever reads, so no
// worker goroutine has the opportunity to observe it regardless of
// which goroutine happens to be scheduled when the signal arrives.
type Controller struct {
	state  *State
	queue  *queue.Queue
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewController builds a Controller. cancel is invoked once, after
// server_running is cleared, to unblock anything selecting on a
// context derived from it (such as the acceptor's poll loop and the
// metrics HTTP server's graceful shutdown).
func NewController(state *State, q *queue.Queue, logger *slog.Logger, cancel context.CancelFunc) *Controller {
	return &Controller{state: state, queue: q, logger: logger.With(slog.String("component", "signal_controller")), cancel: cancel}
}

// Run installs handlers for SIGINT, SIGUSR1, and SIGPIPE and services
// them until ctx is done. SIGPIPE is ignored for the life of the
// process so a write to a vanished client's FIFO fails as a returned
// EPIPE error rather than killing the process.
func (c *Controller) Run(ctx context.Context) error {
	signal.Ignore(syscall.SIGPIPE)

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT:
				c.logger.Info("received interrupt, shutting down")
				c.state.running.Store(false)
				c.queue.Shutdown()
				if c.cancel != nil {
					c.cancel()
				}
			case syscall.SIGUSR1:
				c.logger.Info("received diagnostic signal, scheduling catalog dump")
				c.state.listAll.Store(true)
			}
		}
	}
}
