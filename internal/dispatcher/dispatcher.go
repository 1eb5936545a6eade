// Package dispatcher implements the Session Dispatcher (worker): the
// fixed pool of goroutines that drain the Session Queue, adopt one
// session at a time, and run its per-session request/response state
// machine against the Event Catalog.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/dantte-lp/goems/internal/catalog"
	"github.com/dantte-lp/goems/internal/frame"
	"github.com/dantte-lp/goems/internal/queue"
)

// Metrics is the narrow observability surface the dispatcher needs.
// internal/metrics.Collector implements it; tests can supply a no-op.
// active_sessions is incremented by the acceptor on admission (see
// internal/acceptor) and decremented here by SessionEnded, matching
// spec.md §4.4 step 4 and §4.5 step 4.
type Metrics interface {
	SessionEnded()
	RequestHandled(op frame.Opcode, ok bool)
	RecordSeatsReserved(n int)
}

// NopMetrics implements Metrics by doing nothing.
type NopMetrics struct{}

func (NopMetrics) SessionEnded()                     {}
func (NopMetrics) RequestHandled(frame.Opcode, bool) {}
func (NopMetrics) RecordSeatsReserved(int)           {}

// Pool runs the fixed worker pool against a Session Queue and an Event
// Catalog.
type Pool struct {
	queue   *queue.Queue
	catalog catalog.Facade
	logger  *slog.Logger
	metrics Metrics
}

// New constructs a worker Pool. metrics may be nil, in which case
// observations are discarded.
func New(q *queue.Queue, cat catalog.Facade, logger *slog.Logger, metrics Metrics) *Pool {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Pool{queue: q, catalog: cat, logger: logger.With(slog.String("component", "dispatcher")), metrics: metrics}
}

// RunWorker runs one worker's lifetime: dequeue, serve, repeat, until
// the queue reports shutdown. It is meant to be run as one goroutine per
// pool slot; ctx is only consulted between sessions, never to interrupt
// one in flight, matching spec.md §5's "do not interrupt catalog calls
// in flight".
func (p *Pool) RunWorker(ctx context.Context, workerID int) error {
	logger := p.logger.With(slog.Int("worker_id", workerID))
	for {
		sess, ok := p.queue.Dequeue()
		if !ok {
			logger.Debug("queue shut down, worker exiting")
			return nil
		}
		p.serveSession(logger, sess)
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// serveSession adopts one session end-to-end. It never returns an
// error: per spec.md §7, any session-scoped failure terminates only
// this session, logged and counted, while the worker loops back for
// the next one.
func (p *Pool) serveSession(logger *slog.Logger, sess *queue.Session) {
	logger = logger.With(slog.Uint64("session_id", uint64(sess.ID)))
	defer p.metrics.SessionEnded()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("session handler panicked, session terminated",
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()

	// Response pipe opens for writing first, then request pipe for
	// reading, mirroring the client's open order (response read, then
	// request write). Deviating deadlocks both ends against each other.
	respFile, err := os.OpenFile(sess.RespPath, os.O_WRONLY, 0)
	if err != nil {
		logger.Error("open response pipe failed", slog.String("error", err.Error()))
		return
	}
	defer respFile.Close()

	if err := frame.WriteAssignedID(respFile, sess.ID); err != nil {
		logger.Error("write assigned id failed", slog.String("error", err.Error()))
		return
	}

	reqFile, err := os.OpenFile(sess.ReqPath, os.O_RDONLY, 0)
	if err != nil {
		logger.Error("open request pipe failed", slog.String("error", err.Error()))
		return
	}
	defer reqFile.Close()

	logger.Info("session started")
	start := time.Now()
	n := p.runSessionLoop(logger, reqFile, respFile)
	logger.Info("session ended", slog.Int("requests_served", n), slog.Duration("duration", time.Since(start)))
}

// runSessionLoop implements the AwaitOpcode state machine of spec.md
// §4.4, matching requests rather than switching on a raw opcode per
// Design Note "Opcode dispatch". It returns the number of requests
// served before termination.
func (p *Pool) runSessionLoop(logger *slog.Logger, r io.Reader, w io.Writer) int {
	served := 0
	for {
		req, err := frame.ReadRequest(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, frame.ErrNoData) {
				logger.Debug("client closed request pipe, session ending")
				return served
			}
			logger.Warn("request read failed, session terminated", slog.String("error", err.Error()))
			return served
		}

		var handleErr error
		switch v := req.(type) {
		case frame.QuitRequest:
			logger.Debug("quit requested")
			return served
		case frame.CreateRequest:
			handleErr = p.handleCreate(logger, w, v)
		case frame.ReserveRequest:
			handleErr = p.handleReserve(logger, w, v)
		case frame.ShowRequest:
			handleErr = p.handleShow(logger, w, v)
		case frame.ListRequest:
			handleErr = p.handleList(logger, w)
		default:
			handleErr = fmt.Errorf("unhandled request type %T", req)
		}
		if handleErr != nil {
			logger.Warn("response write failed, session terminated", slog.String("error", handleErr.Error()))
			return served
		}
		served++
	}
}

func (p *Pool) handleCreate(logger *slog.Logger, w io.Writer, req frame.CreateRequest) error {
	err := p.catalog.Create(req.EventID, req.Rows, req.Cols)
	p.recordCatalogOutcome(logger, frame.OpCreate, req.EventID, err)
	return frame.WriteStatus(w, err == nil)
}

func (p *Pool) handleReserve(logger *slog.Logger, w io.Writer, req frame.ReserveRequest) error {
	err := p.catalog.Reserve(req.EventID, req.Xs, req.Ys)
	p.recordCatalogOutcome(logger, frame.OpReserve, req.EventID, err)
	if err == nil {
		p.metrics.RecordSeatsReserved(len(req.Xs))
	}
	return frame.WriteStatus(w, err == nil)
}

func (p *Pool) handleShow(logger *slog.Logger, w io.Writer, req frame.ShowRequest) error {
	rows, cols, seats, err := p.catalog.Show(req.EventID)
	p.recordCatalogOutcome(logger, frame.OpShow, req.EventID, err)
	if err != nil {
		return frame.WriteStatus(w, false)
	}
	if err := frame.WriteStatus(w, true); err != nil {
		return err
	}
	return frame.WriteShowPayload(w, rows, cols, seats)
}

func (p *Pool) handleList(logger *slog.Logger, w io.Writer) error {
	// ids is owned exclusively by this call stack (catalog.List returns
	// a fresh slice); there is nothing to release on any exit path, a
	// release-on-all-paths obligation Go's garbage collector discharges
	// automatically where spec.md's source language required an
	// explicit free.
	ids, err := p.catalog.List()
	p.recordCatalogOutcome(logger, frame.OpList, 0, err)
	if err != nil {
		return frame.WriteStatus(w, false)
	}
	if err := frame.WriteStatus(w, true); err != nil {
		return err
	}
	return frame.WriteListPayload(w, ids)
}

func (p *Pool) recordCatalogOutcome(logger *slog.Logger, op frame.Opcode, eventID uint32, err error) {
	p.metrics.RequestHandled(op, err == nil)
	if err != nil {
		logger.Debug("catalog operation failed",
			slog.String("opcode", op.String()),
			slog.Uint64("event_id", uint64(eventID)),
			slog.String("error", err.Error()))
	}
}
