// Package catalog implements the Event Catalog: the process-wide store of
// seated events the session dispatcher calls into. spec.md treats the
// catalog's internal data structures as an external collaborator and
// specifies only its operation contracts (init/terminate/create/reserve/
// show/list); this package provides the concrete in-memory implementation
// those contracts describe.
package catalog

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors returned by Catalog operations. Each one is surfaced by
// the dispatcher as a status=1 response; none of them terminate a
// session.
var (
	ErrEventExists       = errors.New("catalog: event already exists")
	ErrInvalidDimensions = errors.New("catalog: invalid rows/cols")
	ErrEventNotFound     = errors.New("catalog: event not found")
	ErrSeatOutOfBounds   = errors.New("catalog: seat index out of bounds")
	ErrSeatTaken         = errors.New("catalog: one or more requested seats are already reserved")
	ErrNotInit           = errors.New("catalog: not initialized")
)

// Facade is the operation contract spec.md §4.2 requires the dispatcher
// and acceptor to have available. It is defined here, at the point of
// implementation, rather than in the calling packages, since the calling
// packages only ever need to depend on the contract.
type Facade interface {
	Create(eventID uint32, rows, cols uint64) error
	Reserve(eventID uint32, xs, ys []uint64) error
	Show(eventID uint32) (rows, cols uint64, seats []uint32, err error)
	List() ([]uint32, error)
}

// event holds one seated grid. seats is row-major and seats are numbered
// from 1: seat (x, y) lives at (x-1)*cols+(y-1).
type event struct {
	rows, cols uint64
	seats      []uint32
}

// Catalog is the concrete, in-memory Facade implementation. A Catalog
// must be created with New and, once Terminate has been called, must not
// be reused.
type Catalog struct {
	mu          sync.Mutex
	events      map[uint32]*event
	nextResID   uint32
	accessDelay time.Duration
	terminated  bool
}

// New constructs and initializes a Catalog. accessDelay is applied,
// while the catalog's lock is held, inside Create, Reserve, Show and
// List (not Terminate) — the
// configurable "access delay" of spec.md's glossary, used to make
// catalog contention and the S7 backpressure scenario reproducible.
func New(accessDelay time.Duration) *Catalog {
	return &Catalog{
		events:      make(map[uint32]*event),
		accessDelay: accessDelay,
	}
}

// Terminate releases catalog resources. Idempotent.
func (c *Catalog) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
	c.terminated = true
	return nil
}

func (c *Catalog) delay() {
	if c.accessDelay > 0 {
		time.Sleep(c.accessDelay)
	}
}

// Create adds a new event with the given dimensions. Fails if the id is
// already in use or the dimensions are degenerate.
func (c *Catalog) Create(eventID uint32, rows, cols uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay()

	if c.terminated {
		return ErrNotInit
	}
	if rows == 0 || cols == 0 {
		return fmt.Errorf("create event %d: %w", eventID, ErrInvalidDimensions)
	}
	if _, exists := c.events[eventID]; exists {
		return fmt.Errorf("create event %d: %w", eventID, ErrEventExists)
	}
	c.events[eventID] = &event{
		rows:  rows,
		cols:  cols,
		seats: make([]uint32, rows*cols),
	}
	return nil
}

// Reserve atomically reserves the n seats named by corresponding xs/ys
// pairs under a single new reservation id, or changes nothing on
// failure: any out-of-bounds or already-taken seat fails the whole
// request before any seat is written. Rows and columns are numbered
// from 1.
func (c *Catalog) Reserve(eventID uint32, xs, ys []uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay()

	if c.terminated {
		return ErrNotInit
	}
	ev, ok := c.events[eventID]
	if !ok {
		return fmt.Errorf("reserve event %d: %w", eventID, ErrEventNotFound)
	}
	if len(xs) != len(ys) {
		return fmt.Errorf("reserve event %d: %w", eventID, ErrSeatOutOfBounds)
	}
	indices := make([]int, len(xs))
	for i := range xs {
		if xs[i] == 0 || xs[i] > ev.rows || ys[i] == 0 || ys[i] > ev.cols {
			return fmt.Errorf("reserve event %d seat (%d,%d): %w", eventID, xs[i], ys[i], ErrSeatOutOfBounds)
		}
		idx := int((xs[i]-1)*ev.cols + (ys[i] - 1))
		if ev.seats[idx] != 0 {
			return fmt.Errorf("reserve event %d seat (%d,%d): %w", eventID, xs[i], ys[i], ErrSeatTaken)
		}
		indices[i] = idx
	}
	c.nextResID++
	resID := c.nextResID
	for _, idx := range indices {
		ev.seats[idx] = resID
	}
	return nil
}

// Show returns the dimensions and seat grid of an event. The returned
// slice is a fresh copy owned entirely by the caller: unlike the C
// contract this is grounded on, Go has no manual ownership to transfer,
// so Show matches List's "caller-owned" guarantee rather than handing
// out a pointer valid only until the next mutating call — this removes
// the narrower C aliasing hazard without changing any observed value.
func (c *Catalog) Show(eventID uint32) (rows, cols uint64, seats []uint32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay()

	if c.terminated {
		return 0, 0, nil, ErrNotInit
	}
	ev, ok := c.events[eventID]
	if !ok {
		return 0, 0, nil, fmt.Errorf("show event %d: %w", eventID, ErrEventNotFound)
	}
	out := make([]uint32, len(ev.seats))
	copy(out, ev.seats)
	return ev.rows, ev.cols, out, nil
}

// List returns the ids of every known event, in no particular order. An
// empty catalog returns an empty, non-nil slice.
func (c *Catalog) List() ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay()

	if c.terminated {
		return nil, ErrNotInit
	}
	ids := make([]uint32, 0, len(c.events))
	for id := range c.events {
		ids = append(ids, id)
	}
	return ids, nil
}
