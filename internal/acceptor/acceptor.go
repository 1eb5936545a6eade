// Package acceptor implements the Connection Acceptor: the single
// goroutine that owns the well-known rendezvous FIFO, parses setup
// frames, constructs Session records, and hands them to the Session
// Queue.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dantte-lp/goems/internal/catalog"
	"github.com/dantte-lp/goems/internal/control"
	"github.com/dantte-lp/goems/internal/frame"
	"github.com/dantte-lp/goems/internal/queue"
)

// pollInterval bounds how long a single rendezvous read blocks before
// the acceptor re-checks server_running. Go has no portable way to
// interrupt a goroutine blocked in a blocking Read the way a delivered
// signal interrupts a C thread's read(2) with EINTR, so the acceptor
// periodically re-arms a short read deadline instead; this bounds
// shutdown latency to one interval rather than leaving the acceptor
// blocked forever on a rendezvous pipe nobody writes to again.
const pollInterval = 250 * time.Millisecond

// Metrics is the narrow observability surface the acceptor needs.
type Metrics interface {
	SessionAdmitted()
}

// NopMetrics implements Metrics by doing nothing.
type NopMetrics struct{}

func (NopMetrics) SessionAdmitted() {}

// Acceptor owns the rendezvous FIFO and feeds the Session Queue.
type Acceptor struct {
	path    string
	queue   *queue.Queue
	state   *control.State
	catalog catalog.Facade
	logger  *slog.Logger
	metrics Metrics
	nextID  atomic.Uint32
}

// New constructs an Acceptor. cat is used only for the SIGUSR1
// diagnostic dump (spec.md §4.5 step 1 / §13's supplemented feature);
// metrics may be nil.
func New(path string, q *queue.Queue, state *control.State, cat catalog.Facade, logger *slog.Logger, metrics Metrics) *Acceptor {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Acceptor{
		path:    path,
		queue:   q,
		state:   state,
		catalog: cat,
		logger:  logger.With(slog.String("component", "acceptor")),
		metrics: metrics,
	}
}

// Run drives the acceptor loop of spec.md §4.5 until server_running is
// cleared or ctx is done. It returns nil on a clean shutdown and a
// non-nil error only for a rendezvous-pipe I/O failure severe enough to
// abort the loop (spec.md §7's IoError "terminates ... the acceptor
// loop" case).
func (a *Acceptor) Run(ctx context.Context) error {
	for a.state.Running() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if a.state.ListAllRequested() {
			a.dumpDiagnostics()
		}

		if err := a.acceptOnce(ctx); err != nil {
			if errors.Is(err, errRetry) {
				continue
			}
			return err
		}
	}
	return nil
}

var errRetry = errors.New("acceptor: retry")

// acceptOnce opens the rendezvous FIFO, reads one setup frame, and
// admits the resulting session. A nil error means one session was
// admitted (or the queue is shutting down and the loop should exit via
// Run's state check); errRetry means the caller should loop back
// immediately without treating this as a fatal condition.
func (a *Acceptor) acceptOnce(ctx context.Context) error {
	// Opened read/write, not read-only, so the open never blocks on the
	// absence of a writer and a client closing its write end does not
	// make the next read spuriously observe end-of-stream (spec.md
	// Design Notes, "Open question").
	f, err := os.OpenFile(a.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open rendezvous pipe %s: %w", a.path, err)
	}
	defer f.Close()

	if err := f.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		// Not every filesystem's FIFO implementation supports deadlines;
		// fall back to an unbounded read rather than failing startup.
		a.logger.Debug("rendezvous pipe does not support read deadlines", slog.String("error", err.Error()))
	}

	setup, err := a.readSetup(f)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			return errRetry
		case errors.Is(err, io.EOF), errors.Is(err, frame.ErrNoData):
			// "A zero-byte read is treated as 'no client yet'".
			return errRetry
		case errors.Is(err, errBadOpcode):
			a.logger.Warn("rendezvous frame had unexpected opcode", slog.String("error", err.Error()))
			return errRetry
		default:
			return fmt.Errorf("read setup frame: %w", err)
		}
	}

	sess := &queue.Session{
		ID:       a.nextID.Add(1) - 1,
		ReqPath:  setup.ReqPath,
		RespPath: setup.RespPath,
	}
	a.metrics.SessionAdmitted()
	a.logger.Info("session admitted",
		slog.Uint64("session_id", uint64(sess.ID)),
		slog.String("req_path", sess.ReqPath),
		slog.String("resp_path", sess.RespPath))

	if err := a.queue.Enqueue(sess); err != nil {
		// Queue shut down: destroy the session (nothing to release in
		// Go) and let Run's server_running check end the loop.
		a.logger.Info("queue shut down, dropping admitted session", slog.Uint64("session_id", uint64(sess.ID)))
		return nil
	}
	return nil
}

var errBadOpcode = errors.New("acceptor: unexpected opcode on rendezvous pipe")

// readSetup reads one setup frame: a 4-byte opcode (which must equal
// SETUP) followed by the two PATH_LEN path fields.
func (a *Acceptor) readSetup(r io.Reader) (frame.SetupFrame, error) {
	raw, err := frame.ReadUint32(r)
	if err != nil {
		return frame.SetupFrame{}, err
	}
	if frame.Opcode(raw) != frame.OpSetup {
		return frame.SetupFrame{}, fmt.Errorf("%w: got %d", errBadOpcode, raw)
	}
	return frame.ReadSetupBody(r)
}

// dumpDiagnostics implements the list_all diagnostic dump supplemented
// from original_source/server/main.c's list_all_info(): one structured
// log line per known event, each carrying its full seat grid, emitted
// in place of the original's printf output.
func (a *Acceptor) dumpDiagnostics() {
	ids, err := a.catalog.List()
	if err != nil {
		a.logger.Warn("diagnostic dump: list failed", slog.String("error", err.Error()))
		return
	}
	a.logger.Info("diagnostic dump", slog.Int("event_count", len(ids)))
	for _, id := range ids {
		rows, cols, seats, err := a.catalog.Show(id)
		if err != nil {
			a.logger.Warn("diagnostic dump: show failed", slog.Uint64("event_id", uint64(id)), slog.String("error", err.Error()))
			continue
		}
		a.logger.Info("diagnostic dump: event",
			slog.Uint64("event_id", uint64(id)),
			slog.Uint64("rows", rows),
			slog.Uint64("cols", cols),
			slog.Any("seats", seats))
	}
}
