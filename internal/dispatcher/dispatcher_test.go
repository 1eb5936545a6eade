package dispatcher_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"

	"github.com/dantte-lp/goems/internal/catalog"
	"github.com/dantte-lp/goems/internal/dispatcher"
	"github.com/dantte-lp/goems/internal/frame"
	"github.com/dantte-lp/goems/internal/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mkfifoT(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, unix.Mkfifo(path, 0600))
}

func newSession(t *testing.T, dir string, id uint32) *queue.Session {
	t.Helper()
	reqPath := filepath.Join(dir, "req")
	respPath := filepath.Join(dir, "resp")
	mkfifoT(t, reqPath)
	mkfifoT(t, respPath)
	return &queue.Session{ID: id, ReqPath: reqPath, RespPath: respPath}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openClientSide opens the response pipe for read then the request pipe
// for write, mirroring the worker's open order (spec.md Design Notes).
func openClientSide(t *testing.T, sess *queue.Session) (resp, req *os.File) {
	t.Helper()
	respFile, err := os.OpenFile(sess.RespPath, os.O_RDONLY, 0)
	require.NoError(t, err)
	reqFile, err := os.OpenFile(sess.ReqPath, os.O_WRONLY, 0)
	require.NoError(t, err)
	return respFile, reqFile
}

// TestCreateShowReserveRoundTrip exercises S1-S4 of spec.md §8
// end-to-end through the real worker loop and real named pipes.
func TestCreateShowReserveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sess := newSession(t, dir, 0)

	q := queue.New(1)
	cat := catalog.New(0)
	pool := dispatcher.New(q, cat, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- pool.RunWorker(ctx, 0) }()

	require.NoError(t, q.Enqueue(sess))

	respFile, reqFile := openClientSide(t, sess)
	defer respFile.Close()
	defer reqFile.Close()

	assignedID, err := frame.ReadAssignedID(respFile)
	require.NoError(t, err)
	require.Equal(t, uint32(0), assignedID)

	require.NoError(t, frame.WriteCreate(reqFile, frame.CreateRequest{EventID: 7, Rows: 2, Cols: 3}))
	ok, err := frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, frame.WriteShow(reqFile, frame.ShowRequest{EventID: 7}))
	ok, err = frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.True(t, ok)
	rows, cols, seats, err := frame.ReadShowPayload(respFile)
	require.NoError(t, err)
	require.Equal(t, uint64(2), rows)
	require.Equal(t, uint64(3), cols)
	require.Equal(t, []uint32{0, 0, 0, 0, 0, 0}, seats)

	require.NoError(t, frame.WriteReserve(reqFile, frame.ReserveRequest{
		EventID: 7,
		Xs:      []uint64{1, 2},
		Ys:      []uint64{1, 3},
	}))
	ok, err = frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, frame.WriteShow(reqFile, frame.ShowRequest{EventID: 7}))
	ok, err = frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.True(t, ok)
	_, _, seats, err = frame.ReadShowPayload(respFile)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), seats[1])
	nonzero := 0
	for _, s := range seats {
		if s != 0 {
			nonzero++
		}
	}
	assert.Equal(t, 2, nonzero)

	require.NoError(t, frame.WriteQuit(reqFile))

	q.Shutdown()
	cancel()

	select {
	case err := <-workerDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after shutdown")
	}
}

// TestReserveFailureLeavesGridUnchanged exercises S5 of spec.md §8.
func TestReserveFailureLeavesGridUnchanged(t *testing.T) {
	dir := t.TempDir()
	sess := newSession(t, dir, 0)

	q := queue.New(1)
	cat := catalog.New(0)
	pool := dispatcher.New(q, cat, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- pool.RunWorker(ctx, 0) }()

	require.NoError(t, q.Enqueue(sess))

	respFile, reqFile := openClientSide(t, sess)
	defer respFile.Close()
	defer reqFile.Close()

	_, err := frame.ReadAssignedID(respFile)
	require.NoError(t, err)

	require.NoError(t, frame.WriteCreate(reqFile, frame.CreateRequest{EventID: 7, Rows: 2, Cols: 3}))
	ok, err := frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, frame.WriteReserve(reqFile, frame.ReserveRequest{EventID: 7, Xs: []uint64{1, 2}, Ys: []uint64{1, 3}}))
	ok, err = frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, frame.WriteShow(reqFile, frame.ShowRequest{EventID: 7}))
	ok, err = frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.True(t, ok)
	_, _, before, err := frame.ReadShowPayload(respFile)
	require.NoError(t, err)

	require.NoError(t, frame.WriteReserve(reqFile, frame.ReserveRequest{EventID: 7, Xs: []uint64{1, 5}, Ys: []uint64{1, 1}}))
	ok, err = frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, frame.WriteShow(reqFile, frame.ShowRequest{EventID: 7}))
	ok, err = frame.ReadStatus(respFile)
	require.NoError(t, err)
	require.True(t, ok)
	_, _, after, err := frame.ReadShowPayload(respFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, frame.WriteQuit(reqFile))
	q.Shutdown()
	cancel()
	select {
	case <-workerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after shutdown")
	}
}

// TestListAcrossSessions exercises S6 of spec.md §8: a second,
// independent session observes events created by the first.
func TestListAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(2)
	cat := catalog.New(0)
	pool := dispatcher.New(q, cat, discardLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workersDone := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(id int) { workersDone <- pool.RunWorker(ctx, id) }(i)
	}

	s1dir := filepath.Join(dir, "s1")
	require.NoError(t, os.Mkdir(s1dir, 0o755))
	sess1 := newSession(t, s1dir, 0)
	require.NoError(t, q.Enqueue(sess1))
	resp1, req1 := openClientSide(t, sess1)
	_, err := frame.ReadAssignedID(resp1)
	require.NoError(t, err)
	require.NoError(t, frame.WriteCreate(req1, frame.CreateRequest{EventID: 7, Rows: 1, Cols: 1}))
	ok, err := frame.ReadStatus(resp1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, frame.WriteQuit(req1))
	req1.Close()
	resp1.Close()

	s2dir := filepath.Join(dir, "s2")
	require.NoError(t, os.Mkdir(s2dir, 0o755))
	sess2 := newSession(t, s2dir, 1)
	require.NoError(t, q.Enqueue(sess2))
	resp2, req2 := openClientSide(t, sess2)
	_, err = frame.ReadAssignedID(resp2)
	require.NoError(t, err)
	require.NoError(t, frame.WriteCreate(req2, frame.CreateRequest{EventID: 9, Rows: 1, Cols: 1}))
	ok, err = frame.ReadStatus(resp2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, frame.WriteList(req2))
	ok, err = frame.ReadStatus(resp2)
	require.NoError(t, err)
	require.True(t, ok)
	ids, err := frame.ReadListPayload(resp2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{7, 9}, ids)

	require.NoError(t, frame.WriteQuit(req2))
	req2.Close()
	resp2.Close()

	q.Shutdown()
	for i := 0; i < 2; i++ {
		select {
		case <-workersDone:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not exit after shutdown")
		}
	}
}
