package frame_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goems/internal/frame"
)

func TestSetupRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := frame.SetupFrame{ReqPath: "/tmp/r", RespPath: "/tmp/s"}
	require.NoError(t, frame.WriteSetup(&buf, in))

	op, err := frame.ReadUint32(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(frame.OpSetup), op)

	out, err := frame.ReadSetupBody(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWritePathTooLong(t *testing.T) {
	var buf bytes.Buffer
	long := make([]byte, frame.PathLen)
	for i := range long {
		long[i] = 'a'
	}
	err := frame.WritePath(&buf, string(long))
	assert.ErrorIs(t, err, frame.ErrPathTooLong)
}

func TestReadRequestCreate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteCreate(&buf, frame.CreateRequest{EventID: 7, Rows: 2, Cols: 3}))

	req, err := frame.ReadRequest(&buf)
	require.NoError(t, err)
	create, ok := req.(frame.CreateRequest)
	require.True(t, ok)
	assert.Equal(t, uint32(7), create.EventID)
	assert.Equal(t, uint64(2), create.Rows)
	assert.Equal(t, uint64(3), create.Cols)
}

func TestReadRequestReserve(t *testing.T) {
	var buf bytes.Buffer
	in := frame.ReserveRequest{EventID: 7, Xs: []uint64{1, 2}, Ys: []uint64{1, 3}}
	require.NoError(t, frame.WriteReserve(&buf, in))

	req, err := frame.ReadRequest(&buf)
	require.NoError(t, err)
	reserve, ok := req.(frame.ReserveRequest)
	require.True(t, ok)
	assert.Equal(t, in, reserve)
}

func TestReadRequestQuitAndList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteQuit(&buf))
	require.NoError(t, frame.WriteList(&buf))

	req, err := frame.ReadRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, frame.QuitRequest{}, req)

	req, err = frame.ReadRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, frame.ListRequest{}, req)
}

func TestReadRequestInvalidOpcode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteUint32(&buf, 99))

	_, err := frame.ReadRequest(&buf)
	var protoErr *frame.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestReadRequestTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteUint32(&buf, uint32(frame.OpCreate)))
	require.NoError(t, frame.WriteUint32(&buf, 7)) // event_id only, missing rows/cols

	_, err := frame.ReadRequest(&buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadRequestClosedStream(t *testing.T) {
	var buf bytes.Buffer
	_, err := frame.ReadRequest(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestShowPayloadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteStatus(&buf, true))
	require.NoError(t, frame.WriteShowPayload(&buf, 2, 3, []uint32{0, 0, 0, 5, 0, 0}))

	ok, err := frame.ReadStatus(&buf)
	require.NoError(t, err)
	require.True(t, ok)

	rows, cols, seats, err := frame.ReadShowPayload(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rows)
	assert.Equal(t, uint64(3), cols)
	assert.Equal(t, []uint32{0, 0, 0, 5, 0, 0}, seats)
}

func TestListPayloadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteStatus(&buf, true))
	require.NoError(t, frame.WriteListPayload(&buf, []uint32{7, 9}))

	ok, err := frame.ReadStatus(&buf)
	require.NoError(t, err)
	require.True(t, ok)

	ids, err := frame.ReadListPayload(&buf)
	require.NoError(t, err)
	assert.Equal(t, []uint32{7, 9}, ids)
}

func TestListPayloadEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, frame.WriteListPayload(&buf, nil))

	ids, err := frame.ReadListPayload(&buf)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
