// Package client implements the thin EMS client library: the
// rendezvous handshake and per-session request/response round trips
// spec.md §6 describes from the wire's point of view. It is deliberately
// not an interactive front-end (spec.md §1 puts that out of scope); it
// is the library cmd/emsctl's subcommands call into.
package client

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/dantte-lp/goems/internal/frame"
)

// ErrOperationFailed is returned by Create, Reserve, Show, and List when
// the server replies with a non-zero status. It wraps no further detail
// because the wire protocol carries none (spec.md §7's CatalogError is
// surfaced only as status=1).
var ErrOperationFailed = errors.New("client: server reported operation failure")

// Client is one established session: a rendezvous handshake followed by
// an open request/response pipe pair.
type Client struct {
	assignedID uint32
	reqPath    string
	respPath   string
	reqFile    *os.File
	respFile   *os.File
}

// Setup performs the full client-side handshake described in
// SPEC_FULL.md §13 (supplemented from original_source/client/api.c):
// it creates both per-session FIFOs, sends a SETUP frame naming them on
// the rendezvous pipe, then opens the response pipe for reading and the
// request pipe for writing — the mirror image of the worker's open
// order (spec.md Design Notes: "matching the client's open order
// (response read, then request write)").
func Setup(rendezvousPath, reqPath, respPath string) (*Client, error) {
	if err := mkfifoIfAbsent(reqPath); err != nil {
		return nil, fmt.Errorf("create request pipe %s: %w", reqPath, err)
	}
	if err := mkfifoIfAbsent(respPath); err != nil {
		return nil, fmt.Errorf("create response pipe %s: %w", respPath, err)
	}

	rv, err := os.OpenFile(rendezvousPath, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open rendezvous pipe %s: %w", rendezvousPath, err)
	}
	writeErr := frame.WriteSetup(rv, frame.SetupFrame{ReqPath: reqPath, RespPath: respPath})
	if closeErr := rv.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return nil, fmt.Errorf("send setup frame: %w", writeErr)
	}

	respFile, err := os.OpenFile(respPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open response pipe %s: %w", respPath, err)
	}
	reqFile, err := os.OpenFile(reqPath, os.O_WRONLY, 0)
	if err != nil {
		respFile.Close()
		return nil, fmt.Errorf("open request pipe %s: %w", reqPath, err)
	}

	assignedID, err := frame.ReadAssignedID(respFile)
	if err != nil {
		respFile.Close()
		reqFile.Close()
		return nil, fmt.Errorf("read assigned session id: %w", err)
	}

	return &Client{
		assignedID: assignedID,
		reqPath:    reqPath,
		respPath:   respPath,
		reqFile:    reqFile,
		respFile:   respFile,
	}, nil
}

func mkfifoIfAbsent(path string) error {
	err := unix.Mkfifo(path, 0o600)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return err
	}
	return nil
}

// AssignedID returns the session id the server assigned during Setup.
func (c *Client) AssignedID() uint32 { return c.assignedID }

// Create sends a CREATE request and reports whether the server accepted
// it.
func (c *Client) Create(eventID uint32, rows, cols uint64) error {
	if err := frame.WriteCreate(c.reqFile, frame.CreateRequest{EventID: eventID, Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("write create request: %w", err)
	}
	ok, err := frame.ReadStatus(c.respFile)
	if err != nil {
		return fmt.Errorf("read create status: %w", err)
	}
	if !ok {
		return fmt.Errorf("create event %d: %w", eventID, ErrOperationFailed)
	}
	return nil
}

// Reserve sends a RESERVE request and reports whether all seats were
// reserved.
func (c *Client) Reserve(eventID uint32, xs, ys []uint64) error {
	if err := frame.WriteReserve(c.reqFile, frame.ReserveRequest{EventID: eventID, Xs: xs, Ys: ys}); err != nil {
		return fmt.Errorf("write reserve request: %w", err)
	}
	ok, err := frame.ReadStatus(c.respFile)
	if err != nil {
		return fmt.Errorf("read reserve status: %w", err)
	}
	if !ok {
		return fmt.Errorf("reserve event %d: %w", eventID, ErrOperationFailed)
	}
	return nil
}

// Show sends a SHOW request and returns the event's dimensions and seat
// grid.
func (c *Client) Show(eventID uint32) (rows, cols uint64, seats []uint32, err error) {
	if err := frame.WriteShow(c.reqFile, frame.ShowRequest{EventID: eventID}); err != nil {
		return 0, 0, nil, fmt.Errorf("write show request: %w", err)
	}
	ok, err := frame.ReadStatus(c.respFile)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read show status: %w", err)
	}
	if !ok {
		return 0, 0, nil, fmt.Errorf("show event %d: %w", eventID, ErrOperationFailed)
	}
	rows, cols, seats, err = frame.ReadShowPayload(c.respFile)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read show payload: %w", err)
	}
	return rows, cols, seats, nil
}

// List sends a LIST request and returns every known event id.
func (c *Client) List() ([]uint32, error) {
	if err := frame.WriteList(c.reqFile); err != nil {
		return nil, fmt.Errorf("write list request: %w", err)
	}
	ok, err := frame.ReadStatus(c.respFile)
	if err != nil {
		return nil, fmt.Errorf("read list status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("list events: %w", ErrOperationFailed)
	}
	ids, err := frame.ReadListPayload(c.respFile)
	if err != nil {
		return nil, fmt.Errorf("read list payload: %w", err)
	}
	return ids, nil
}

// Quit sends a QUIT request and closes both pipes. The session is
// unusable afterward.
func (c *Client) Quit() error {
	err := frame.WriteQuit(c.reqFile)
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close closes both pipes without sending QUIT, for abrupt
// disconnects. Idempotent is not guaranteed; call at most once.
func (c *Client) Close() error {
	reqErr := c.reqFile.Close()
	respErr := c.respFile.Close()
	if reqErr != nil {
		return reqErr
	}
	return respErr
}
