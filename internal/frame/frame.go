// Package frame implements the fixed-layout binary wire protocol shared by
// the goems server and client: opcode framing, blocking read/write helpers
// that retry on short transfers and interrupted system calls, and the
// per-opcode request/response payload codecs. This is the only package that
// knows wire sizes; every other package exchanges Go values.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"syscall"
)

// PathLen is the fixed width, in bytes, of each null-padded path field in
// the setup frame.
const PathLen = 40

// Opcode identifies the kind of frame exchanged over the rendezvous or
// per-session pipes.
type Opcode uint32

// Recognized opcodes. Values below OpQuit are never valid on a session
// request pipe; OpSetup is only valid on the rendezvous pipe.
const (
	OpSetup   Opcode = 1
	OpQuit    Opcode = 2
	OpCreate  Opcode = 3
	OpReserve Opcode = 4
	OpShow    Opcode = 5
	OpList    Opcode = 6
)

func (o Opcode) String() string {
	switch o {
	case OpSetup:
		return "SETUP"
	case OpQuit:
		return "QUIT"
	case OpCreate:
		return "CREATE"
	case OpReserve:
		return "RESERVE"
	case OpShow:
		return "SHOW"
	case OpList:
		return "LIST"
	default:
		return fmt.Sprintf("opcode(%d)", uint32(o))
	}
}

// Valid reports whether o is one of the opcodes a session request pipe may
// carry (SETUP is rendezvous-only and is deliberately excluded).
func (o Opcode) Valid() bool {
	return o >= OpQuit && o <= OpList
}

// ErrPathTooLong indicates a path string does not fit in a PathLen-byte
// null-padded field.
var ErrPathTooLong = errors.New("frame: path exceeds PathLen-1 bytes")

// ProtocolError reports a malformed or out-of-range frame: an unknown
// opcode, a truncated frame, or an out-of-range count. Per the session
// dispatcher's failure semantics, a ProtocolError terminates only the
// offending session.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "frame: protocol error: " + e.Reason }

func newProtocolError(reason string) error { return &ProtocolError{Reason: reason} }

// ErrNoData is returned by ReadFull (and the decoders built on it) when a
// read call returns zero bytes with no error. Per spec.md §4.5 step 3,
// the rendezvous acceptor treats this as "no client yet" and loops back
// rather than treating it as a protocol violation; callers elsewhere may
// retry the same way.
var ErrNoData = errors.New("frame: no data available")

// nativeOrder is the host byte order used for every integer on the wire.
// The protocol is strictly host-local (spec.md note "Host endianness"):
// no cross-architecture normalization is performed.
var nativeOrder = binary.NativeEndian

// ReadFull reads exactly len(buf) bytes from r, looping over short reads
// and retrying on syscall.EINTR. It mirrors io.ReadFull's EOF semantics:
// end-of-stream before any byte is read returns io.EOF (the caller decides
// whether that means "stream closed" or, on the rendezvous pipe, "no
// client yet"); an error after some bytes were read returns
// io.ErrUnexpectedEOF. A read call that returns zero bytes and no error
// stops the loop with ErrNoData.
func ReadFull(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			if n == 0 && errors.Is(err, io.EOF) {
				return n, io.EOF
			}
			if n > 0 {
				return n, io.ErrUnexpectedEOF
			}
			return n, err
		}
		if m == 0 {
			// A read that returns neither an error nor any bytes: treated
			// as "nothing to read yet" rather than a hard failure.
			return n, ErrNoData
		}
	}
	return n, nil
}

// WriteFull writes all of buf to w, looping over short writes and
// retrying on syscall.EINTR.
func WriteFull(w io.Writer, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := w.Write(buf[n:])
		n += m
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}
	}
	return nil
}

// WriteUint32 writes v as a 4-byte host-order integer.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	nativeOrder.PutUint32(buf[:], v)
	return WriteFull(w, buf[:])
}

// ReadUint32 reads a 4-byte host-order integer.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	n, err := ReadFull(r, buf[:])
	if err != nil {
		return 0, err
	}
	if n != 4 {
		return 0, newProtocolError("truncated uint32")
	}
	return nativeOrder.Uint32(buf[:]), nil
}

// WriteInt32 writes v as a 4-byte host-order signed integer (used for
// status codes).
func WriteInt32(w io.Writer, v int32) error {
	return WriteUint32(w, uint32(v))
}

// ReadInt32 reads a 4-byte host-order signed integer.
func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

// WriteUint64 writes v as an 8-byte host-order integer, used for every
// "usize" (size_t-equivalent) field on the wire.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	nativeOrder.PutUint64(buf[:], v)
	return WriteFull(w, buf[:])
}

// ReadUint64 reads an 8-byte host-order integer.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	n, err := ReadFull(r, buf[:])
	if err != nil {
		return 0, err
	}
	if n != 8 {
		return 0, newProtocolError("truncated uint64")
	}
	return nativeOrder.Uint64(buf[:]), nil
}

// WritePath writes path as a PathLen-byte null-padded field.
func WritePath(w io.Writer, path string) error {
	if len(path) > PathLen-1 {
		return fmt.Errorf("%w: %q", ErrPathTooLong, path)
	}
	buf := make([]byte, PathLen)
	copy(buf, path)
	return WriteFull(w, buf)
}

// ReadPath reads a PathLen-byte null-padded field and returns the string
// up to the first null byte.
func ReadPath(r io.Reader) (string, error) {
	buf := make([]byte, PathLen)
	n, err := ReadFull(r, buf)
	if err != nil {
		return "", err
	}
	if n != PathLen {
		return "", newProtocolError("truncated path field")
	}
	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}
	return string(buf[:end]), nil
}

// -----------------------------------------------------------------------
// Setup frame (rendezvous pipe)
// -----------------------------------------------------------------------

// SetupFrame is the body of a SETUP frame (the leading opcode is handled
// by the caller since the acceptor must read it before it knows the frame
// is a setup frame at all).
type SetupFrame struct {
	ReqPath  string
	RespPath string
}

// WriteSetup writes the SETUP opcode followed by the setup body.
func WriteSetup(w io.Writer, f SetupFrame) error {
	if err := WriteUint32(w, uint32(OpSetup)); err != nil {
		return err
	}
	if err := WritePath(w, f.ReqPath); err != nil {
		return err
	}
	return WritePath(w, f.RespPath)
}

// ReadSetupBody reads the two path fields of a setup frame. The caller
// must have already consumed the leading opcode.
func ReadSetupBody(r io.Reader) (SetupFrame, error) {
	reqPath, err := ReadPath(r)
	if err != nil {
		return SetupFrame{}, err
	}
	respPath, err := ReadPath(r)
	if err != nil {
		return SetupFrame{}, err
	}
	return SetupFrame{ReqPath: reqPath, RespPath: respPath}, nil
}

// -----------------------------------------------------------------------
// Per-session requests (request pipe, client -> server)
// -----------------------------------------------------------------------

// CreateRequest is the body of a CREATE request.
type CreateRequest struct {
	EventID uint32
	Rows    uint64
	Cols    uint64
}

// WriteCreate writes a CREATE opcode and body.
func WriteCreate(w io.Writer, req CreateRequest) error {
	if err := WriteUint32(w, uint32(OpCreate)); err != nil {
		return err
	}
	if err := WriteUint32(w, req.EventID); err != nil {
		return err
	}
	if err := WriteUint64(w, req.Rows); err != nil {
		return err
	}
	return WriteUint64(w, req.Cols)
}

// ReadCreateBody reads a CREATE request body. The caller must have
// already consumed the leading opcode.
func ReadCreateBody(r io.Reader) (CreateRequest, error) {
	eventID, err := ReadUint32(r)
	if err != nil {
		return CreateRequest{}, err
	}
	rows, err := ReadUint64(r)
	if err != nil {
		return CreateRequest{}, err
	}
	cols, err := ReadUint64(r)
	if err != nil {
		return CreateRequest{}, err
	}
	return CreateRequest{EventID: eventID, Rows: rows, Cols: cols}, nil
}

// ReserveRequest is the body of a RESERVE request. Xs and Ys have equal
// length (the seat count N).
type ReserveRequest struct {
	EventID uint32
	Xs      []uint64
	Ys      []uint64
}

// WriteReserve writes a RESERVE opcode and body.
func WriteReserve(w io.Writer, req ReserveRequest) error {
	if len(req.Xs) != len(req.Ys) {
		return newProtocolError("reserve: xs/ys length mismatch")
	}
	if err := WriteUint32(w, uint32(OpReserve)); err != nil {
		return err
	}
	if err := WriteUint32(w, req.EventID); err != nil {
		return err
	}
	n := uint64(len(req.Xs))
	if err := WriteUint64(w, n); err != nil {
		return err
	}
	for _, x := range req.Xs {
		if err := WriteUint64(w, x); err != nil {
			return err
		}
	}
	for _, y := range req.Ys {
		if err := WriteUint64(w, y); err != nil {
			return err
		}
	}
	return nil
}

// ReadReserveBody reads a RESERVE request body. The caller must have
// already consumed the leading opcode.
func ReadReserveBody(r io.Reader) (ReserveRequest, error) {
	eventID, err := ReadUint32(r)
	if err != nil {
		return ReserveRequest{}, err
	}
	n, err := ReadUint64(r)
	if err != nil {
		return ReserveRequest{}, err
	}
	xs := make([]uint64, n)
	for i := range xs {
		if xs[i], err = ReadUint64(r); err != nil {
			return ReserveRequest{}, err
		}
	}
	ys := make([]uint64, n)
	for i := range ys {
		if ys[i], err = ReadUint64(r); err != nil {
			return ReserveRequest{}, err
		}
	}
	return ReserveRequest{EventID: eventID, Xs: xs, Ys: ys}, nil
}

// ShowRequest is the body of a SHOW request.
type ShowRequest struct {
	EventID uint32
}

// WriteShow writes a SHOW opcode and body.
func WriteShow(w io.Writer, req ShowRequest) error {
	if err := WriteUint32(w, uint32(OpShow)); err != nil {
		return err
	}
	return WriteUint32(w, req.EventID)
}

// ReadShowBody reads a SHOW request body. The caller must have already
// consumed the leading opcode.
func ReadShowBody(r io.Reader) (ShowRequest, error) {
	eventID, err := ReadUint32(r)
	if err != nil {
		return ShowRequest{}, err
	}
	return ShowRequest{EventID: eventID}, nil
}

// WriteQuit writes the QUIT opcode. QUIT has no body.
func WriteQuit(w io.Writer) error {
	return WriteUint32(w, uint32(OpQuit))
}

// WriteList writes the LIST opcode. LIST has no body.
func WriteList(w io.Writer) error {
	return WriteUint32(w, uint32(OpList))
}

// -----------------------------------------------------------------------
// Request sum type
// -----------------------------------------------------------------------

// Request is a decoded session request: exactly one of QuitRequest,
// CreateRequest, ReserveRequest, ShowRequest, or ListRequest. The
// dispatcher matches on the concrete type rather than switching on the
// raw opcode; Go does not check that type switch for exhaustiveness, so a
// type without a case reaches the dispatcher's default branch at run time.
type Request interface {
	isRequest()
}

// QuitRequest carries no payload.
type QuitRequest struct{}

// ListRequest carries no payload.
type ListRequest struct{}

func (QuitRequest) isRequest()    {}
func (ListRequest) isRequest()    {}
func (CreateRequest) isRequest()  {}
func (ReserveRequest) isRequest() {}
func (ShowRequest) isRequest()    {}

// ReadRequest reads one opcode and its body from a session request pipe
// and returns the decoded Request. It returns ErrNoData or io.EOF
// unwrapped (see ReadFull) only when the stream ends before any byte of
// the opcode, so the caller can distinguish "client closed the stream"
// from a truncated frame, which is reported as io.ErrUnexpectedEOF. An
// out-of-range opcode is a *ProtocolError; other read errors are
// returned as they are.
func ReadRequest(r io.Reader) (Request, error) {
	raw, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}
	op := Opcode(raw)
	if !op.Valid() {
		return nil, newProtocolError(fmt.Sprintf("opcode out of range: %d", raw))
	}
	var req Request
	switch op {
	case OpQuit:
		return QuitRequest{}, nil
	case OpCreate:
		req, err = ReadCreateBody(r)
	case OpReserve:
		req, err = ReadReserveBody(r)
	case OpShow:
		req, err = ReadShowBody(r)
	case OpList:
		return ListRequest{}, nil
	default:
		return nil, newProtocolError(fmt.Sprintf("opcode out of range: %d", raw))
	}
	if errors.Is(err, io.EOF) || errors.Is(err, ErrNoData) {
		// The stream ended after the opcode, before the body was complete.
		return nil, io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// -----------------------------------------------------------------------
// Responses (response pipe, server -> client)
// -----------------------------------------------------------------------

// statusOK and statusFailure are the two status values a response ever
// carries; CatalogError failures are surfaced as statusFailure, never as
// a distinct wire value.
const (
	statusOK      int32 = 0
	statusFailure int32 = 1
)

// WriteAssignedID writes the first frame a worker sends on a freshly
// opened response pipe: the session id assigned by the acceptor.
func WriteAssignedID(w io.Writer, id uint32) error {
	return WriteUint32(w, id)
}

// ReadAssignedID reads the session id a worker assigns on connect.
func ReadAssignedID(r io.Reader) (uint32, error) {
	return ReadUint32(r)
}

// WriteStatus writes a status response. ok=true writes status 0; ok=false
// writes status 1. CREATE and RESERVE responses are exactly this one frame.
func WriteStatus(w io.Writer, ok bool) error {
	if ok {
		return WriteInt32(w, statusOK)
	}
	return WriteInt32(w, statusFailure)
}

// ReadStatus reads a status response and reports whether it was success.
func ReadStatus(r io.Reader) (bool, error) {
	v, err := ReadInt32(r)
	if err != nil {
		return false, err
	}
	return v == statusOK, nil
}

// WriteShowPayload writes the success payload of a SHOW response: rows,
// cols, then the row-major seat grid. The caller must have already
// written a successful status via WriteStatus.
func WriteShowPayload(w io.Writer, rows, cols uint64, seats []uint32) error {
	if uint64(len(seats)) != rows*cols {
		return newProtocolError("show: seat count does not match rows*cols")
	}
	if err := WriteUint64(w, rows); err != nil {
		return err
	}
	if err := WriteUint64(w, cols); err != nil {
		return err
	}
	for _, seat := range seats {
		if err := WriteUint32(w, seat); err != nil {
			return err
		}
	}
	return nil
}

// ReadShowPayload reads the success payload of a SHOW response. The
// caller must have already read a successful status via ReadStatus.
func ReadShowPayload(r io.Reader) (rows, cols uint64, seats []uint32, err error) {
	if rows, err = ReadUint64(r); err != nil {
		return 0, 0, nil, err
	}
	if cols, err = ReadUint64(r); err != nil {
		return 0, 0, nil, err
	}
	seats = make([]uint32, rows*cols)
	for i := range seats {
		if seats[i], err = ReadUint32(r); err != nil {
			return 0, 0, nil, err
		}
	}
	return rows, cols, seats, nil
}

// WriteListPayload writes the success payload of a LIST response: the
// count, then the event ids. The caller must have already written a
// successful status via WriteStatus.
func WriteListPayload(w io.Writer, ids []uint32) error {
	if err := WriteUint64(w, uint64(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := WriteUint32(w, id); err != nil {
			return err
		}
	}
	return nil
}

// ReadListPayload reads the success payload of a LIST response. The
// caller must have already read a successful status via ReadStatus.
func ReadListPayload(r io.Reader) ([]uint32, error) {
	n, err := ReadUint64(r)
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, n)
	for i := range ids {
		if ids[i], err = ReadUint32(r); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
