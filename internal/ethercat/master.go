// Package ethercat implements the cyclic EtherCAT master: a single goroutine
// that drives the process-data exchange at a fixed cadence and serializes
// asynchronous SetBit/GetBit requests from the rest of the program onto
// that cycle, the same owning-goroutine-plus-bounded-queue shape used by
// internal/motion's Client.
package ethercat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jaguerra767/control-components/internal/ctlerr"
	"github.com/jaguerra767/control-components/internal/logger"
)

// MaxCards and ImageLength are the fixed group limits this master
// negotiates to OP with: at most MaxCards sub-devices, each contributing
// to an ImageLength-byte process-data image.
const (
	MaxCards    = 16
	ImageLength = 64

	// DefaultCycle is the fixed cadence the cyclic loop is driven at.
	DefaultCycle = 2 * time.Millisecond
)

// State is the EtherCAT application-layer state machine the master steps
// through during shutdown.
type State int

const (
	StateInit State = iota
	StatePreOp
	StateSafeOp
	StateOp
)

// Transport is the PDU exchange the master drives every cycle. A real
// implementation performs the actual EtherCAT frame exchange over the
// configured network interface; tests substitute an in-memory fake.
type Transport interface {
	// TxRx exchanges one process-data frame, refreshing image in place.
	TxRx(image []byte) error
	// SetState requests a state-machine transition and blocks until it
	// completes or fails.
	SetState(s State) error
}

type setBitReq struct {
	card  int
	idx   uint
	value bool
	done  chan error
}

type getBitReq struct {
	card  int
	reply chan getBitResult
}

type getBitResult struct {
	value byte
	err   error
}

type command struct {
	set *setBitReq
	get *getBitReq
}

// CardLayout describes where a card's input and output bytes live in the
// shared process-data image.
type CardLayout struct {
	InputOffset  int
	OutputOffset int
}

// Master owns the process-data image and the cyclic PDU loop. All
// mutation of the image happens on the loop's own goroutine.
type Master struct {
	transport Transport
	layout    map[int]CardLayout
	cycle     time.Duration

	image    []byte
	commands chan command
	done     chan struct{}

	metrics Metrics
}

// Metrics receives optional instrumentation callbacks.
type Metrics interface {
	ObserveCycleDuration(d time.Duration)
	IncMissedDeadline()
}

type noopMetrics struct{}

func (noopMetrics) ObserveCycleDuration(time.Duration) {}
func (noopMetrics) IncMissedDeadline()                 {}

// Option configures a Master at construction time.
type Option func(*Master)

// WithCycle overrides DefaultCycle.
func WithCycle(d time.Duration) Option {
	return func(m *Master) { m.cycle = d }
}

// WithMetrics attaches a Metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(m *Master) { m.metrics = metrics }
}

// NewMaster constructs a Master over transport with the given card
// layout, brings the group through INIT -> PRE-OP -> OP, and starts the
// cyclic loop on a new goroutine.
func NewMaster(ctx context.Context, transport Transport, layout map[int]CardLayout, opts ...Option) (*Master, error) {
	if len(layout) > MaxCards {
		return nil, fmt.Errorf("ethercat: %d cards exceeds max of %d", len(layout), MaxCards)
	}
	for card, l := range layout {
		if l.InputOffset < 0 || l.InputOffset >= ImageLength || l.OutputOffset < 0 || l.OutputOffset >= ImageLength {
			return nil, fmt.Errorf("ethercat: card %d offsets (%d, %d) outside %d-byte image", card, l.InputOffset, l.OutputOffset, ImageLength)
		}
	}
	m := &Master{
		transport: transport,
		layout:    layout,
		cycle:     DefaultCycle,
		image:     make([]byte, ImageLength),
		commands:  make(chan command, 10),
		done:      make(chan struct{}),
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, s := range []State{StateInit, StatePreOp, StateOp} {
		if err := transport.SetState(s); err != nil {
			return nil, fmt.Errorf("ethercat: bring group to state %d: %w", s, err)
		}
	}

	go m.run(ctx)
	return m, nil
}

// run is the cyclic loop: refresh the image every m.cycle, then drain at
// most one pending command.
func (m *Master) run(ctx context.Context) {
	defer close(m.done)
	defer m.shutdown()

	ticker := time.NewTicker(m.cycle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := m.transport.TxRx(m.image); err != nil {
				logger.Error("ethercat cycle fatal error", "error", err)
				return
			}
			m.drainOne()
			elapsed := time.Since(start)
			m.metrics.ObserveCycleDuration(elapsed)
			if elapsed > m.cycle {
				m.metrics.IncMissedDeadline()
				logger.Warn("ethercat cycle exceeded deadline", "elapsed", elapsed, "cycle", m.cycle)
			}
		}
	}
}

func (m *Master) drainOne() {
	select {
	case cmd, ok := <-m.commands:
		if !ok {
			return
		}
		m.apply(cmd)
	default:
	}
}

func (m *Master) apply(cmd command) {
	switch {
	case cmd.set != nil:
		cmd.set.done <- m.applySetBit(cmd.set)
	case cmd.get != nil:
		value, err := m.applyGetBit(cmd.get)
		cmd.get.reply <- getBitResult{value: value, err: err}
	}
}

func (m *Master) applySetBit(req *setBitReq) error {
	layout, ok := m.layout[req.card]
	if !ok {
		return fmt.Errorf("ethercat: unknown card %d", req.card)
	}
	if req.idx > 7 {
		return fmt.Errorf("ethercat: bit index %d out of range", req.idx)
	}
	b := m.image[layout.OutputOffset]
	if req.value {
		b |= 1 << req.idx
	} else {
		b &^= 1 << req.idx
	}
	m.image[layout.OutputOffset] = b
	return nil
}

func (m *Master) applyGetBit(req *getBitReq) (byte, error) {
	layout, ok := m.layout[req.card]
	if !ok {
		return 0, fmt.Errorf("ethercat: unknown card %d", req.card)
	}
	return m.image[layout.InputOffset], nil
}

func (m *Master) shutdown() {
	for _, s := range []State{StateSafeOp, StatePreOp, StateInit} {
		if err := m.transport.SetState(s); err != nil {
			logger.Error("ethercat shutdown transition failed", "state", s, "error", err)
			return
		}
	}
}

// SetBit enqueues a bit-replace operation against card's output byte,
// applied on the next cycle's drain. It blocks until that cycle has
// applied it (or the master has shut down).
func (m *Master) SetBit(ctx context.Context, card int, idx uint, value bool) error {
	req := &setBitReq{card: card, idx: idx, value: value, done: make(chan error, 1)}
	logger.Debug("ethercat set bit enqueued", "request_id", uuid.New(), "card", card, "bit", idx, "value", value)
	select {
	case m.commands <- command{set: req}:
	case <-m.done:
		return ctlerr.ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-m.done:
		return ctlerr.ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetBit reads card's whole input byte, applied on the next cycle's
// drain.
func (m *Master) GetBit(ctx context.Context, card int) (byte, error) {
	req := &getBitReq{card: card, reply: make(chan getBitResult, 1)}
	logger.Debug("ethercat get bit enqueued", "request_id", uuid.New(), "card", card)
	select {
	case m.commands <- command{get: req}:
	case <-m.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.value, r.err
	case <-m.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
