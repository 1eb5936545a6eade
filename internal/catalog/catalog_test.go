package catalog_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goems/internal/catalog"
)

func TestCreateThenShowRoundTrip(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Create(7, 2, 3))

	rows, cols, seats, err := c.Show(7)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rows)
	assert.Equal(t, uint64(3), cols)
	assert.Equal(t, []uint32{0, 0, 0, 0, 0, 0}, seats)
}

func TestCreateDuplicateFails(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Create(7, 2, 3))
	err := c.Create(7, 1, 1)
	assert.ErrorIs(t, err, catalog.ErrEventExists)
}

func TestCreateInvalidDimensions(t *testing.T) {
	c := catalog.New(0)
	assert.ErrorIs(t, c.Create(1, 0, 3), catalog.ErrInvalidDimensions)
	assert.ErrorIs(t, c.Create(1, 3, 0), catalog.ErrInvalidDimensions)
}

func TestReserveSuccessAndShow(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Create(7, 2, 3))
	require.NoError(t, c.Reserve(7, []uint64{1, 2}, []uint64{1, 3}))

	_, _, seats, err := c.Show(7)
	require.NoError(t, err)

	nonzero := 0
	var resID uint32
	for _, s := range seats {
		if s != 0 {
			nonzero++
			if resID == 0 {
				resID = s
			} else {
				assert.Equal(t, resID, s)
			}
		}
	}
	assert.Equal(t, 2, nonzero)
	assert.Equal(t, uint32(1), seats[(1-1)*3+(1-1)])
	assert.Equal(t, uint32(1), seats[(2-1)*3+(3-1)])
}

func TestReserveNoPartialOnFailure(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Create(7, 2, 3))
	require.NoError(t, c.Reserve(7, []uint64{1, 2}, []uint64{1, 3}))

	_, _, before, err := c.Show(7)
	require.NoError(t, err)

	// Second seat out of bounds: row 5 on a 2-row grid (its column, 1,
	// is in range).
	err = c.Reserve(7, []uint64{1, 5}, []uint64{1, 1})
	assert.ErrorIs(t, err, catalog.ErrSeatOutOfBounds)

	_, _, after, err := c.Show(7)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReserveAlreadyTakenNoPartial(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Create(7, 2, 3))
	require.NoError(t, c.Reserve(7, []uint64{1, 2}, []uint64{1, 3}))

	_, _, before, err := c.Show(7)
	require.NoError(t, err)

	err = c.Reserve(7, []uint64{1, 1}, []uint64{2, 1})
	assert.ErrorIs(t, err, catalog.ErrSeatTaken)

	_, _, after, err := c.Show(7)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestShowUnknownEvent(t *testing.T) {
	c := catalog.New(0)
	_, _, _, err := c.Show(404)
	assert.ErrorIs(t, err, catalog.ErrEventNotFound)
}

func TestShowReturnsIndependentCopy(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Create(1, 1, 1))
	_, _, seats, err := c.Show(1)
	require.NoError(t, err)
	seats[0] = 99

	_, _, seats2, err := c.Show(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), seats2[0])
}

func TestListAfterCreates(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Create(7, 1, 1))
	require.NoError(t, c.Create(9, 1, 1))

	ids, err := c.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{7, 9}, ids)
}

func TestListEmpty(t *testing.T) {
	c := catalog.New(0)
	ids, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestConcurrentReserveDistinctEvents(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Create(1, 10, 10))
	require.NoError(t, c.Create(2, 10, 10))

	var wg sync.WaitGroup
	for _, id := range []uint32{1, 2} {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			assert.NoError(t, c.Reserve(id, []uint64{1}, []uint64{1}))
		}(id)
	}
	wg.Wait()

	for _, id := range []uint32{1, 2} {
		_, _, seats, err := c.Show(id)
		require.NoError(t, err)
		assert.NotEqual(t, uint32(0), seats[0])
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	c := catalog.New(0)
	require.NoError(t, c.Terminate())
	require.NoError(t, c.Terminate())

	_, err := c.List()
	assert.ErrorIs(t, err, catalog.ErrNotInit)
}
