// Package motion implements the single-writer, serialized TCP client for a
// motion controller, and the stateless device handles (digital/analog I/O,
// H-bridge, motor) that build command frames and dispatch them through it.
//
// Exactly one goroutine owns the socket. Every other caller communicates
// with it by sending a request on a bounded channel and waiting on a
// per-request reply channel — the same owning-goroutine-plus-bounded-queue
// shape used for the EtherCAT master (internal/ethercat) and the scale's
// blocking worker (internal/scale).
package motion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/jaguerra767/control-components/internal/ctlerr"
	"github.com/jaguerra767/control-components/internal/logger"
)

// minFrameSpacing is the minimum time between two frames written to the
// wire, imposed so a burst of callers cannot overrun the controller.
const minFrameSpacing = 5 * time.Millisecond

// readBufSize is the fixed window the client reads a reply into. The full
// buffer, untrimmed, is delivered to the caller.
const readBufSize = 100

// request is one unit of work handed to the serve loop: a frame to write,
// and a channel to deliver the resulting reply (or error) on.
type request struct {
	id    uuid.UUID
	frame []byte
	reply chan reply
}

type reply struct {
	data []byte
	err  error
}

// Client serializes all traffic to one motion controller over one TCP
// connection, pairing each request with its reply in FIFO order.
type Client struct {
	addr     string
	dialer   net.Dialer
	requests chan request
	done     chan struct{}

	metrics Metrics
}

// Metrics receives optional instrumentation callbacks. A nil-safe no-op
// implementation is used if none is supplied.
type Metrics interface {
	ObserveRequestDuration(d time.Duration)
	SetQueueDepth(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequestDuration(time.Duration) {}
func (noopMetrics) SetQueueDepth(int)                    {}

// Option configures a Client at construction time.
type Option func(*Client)

// WithMetrics attaches a Metrics sink to the client.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithQueueSize overrides the default bounded request-channel capacity.
func WithQueueSize(n int) Option {
	return func(c *Client) { c.requests = make(chan request, n) }
}

// NewClient constructs a Client for the controller at addr and starts its
// serve loop on a new goroutine. The loop blocks on the initial connect
// before accepting any request.
func NewClient(ctx context.Context, addr string, opts ...Option) *Client {
	c := &Client{
		addr:     addr,
		requests: make(chan request, 32),
		done:     make(chan struct{}),
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run(ctx)
	return c
}

// Send writes frame to the controller and waits for its reply, observing
// FIFO order with respect to every other call to Send whose enqueue has
// already completed. It returns ctlerr.ErrDisconnected if the serve loop
// exits before a reply arrives, or ctx.Err() if ctx is cancelled before
// the reply arrives, whether the request is still queued or already
// written to the wire.
func (c *Client) Send(ctx context.Context, frame []byte) ([]byte, error) {
	id := uuid.New()
	req := request{id: id, frame: frame, reply: make(chan reply, 1)}
	start := time.Now()

	select {
	case c.requests <- req:
	case <-c.done:
		return nil, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.metrics.SetQueueDepth(len(c.requests))
	logger.Debug("motion request enqueued", "request_id", id, "addr", c.addr)

	select {
	case r := <-req.reply:
		c.metrics.ObserveRequestDuration(time.Since(start))
		logger.Debug("motion request completed", "request_id", id, "err", r.err)
		return r.data, r.err
	case <-c.done:
		return nil, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run owns the TCP socket for the lifetime of the client: connect once,
// then serve requests strictly in order until a fatal socket error or the
// request channel is closed.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	conn, err := c.connect(ctx)
	if err != nil {
		logger.Error("motion client failed to connect", "addr", c.addr, "error", err)
		return
	}
	defer conn.Close()

	logger.Info("motion client connected", "addr", c.addr)

	var lastWrite time.Time
	buf := make([]byte, readBufSize)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-c.requests:
			if !ok {
				return
			}
			if since := time.Since(lastWrite); since < minFrameSpacing {
				time.Sleep(minFrameSpacing - since)
			}
			data, err := c.roundTrip(conn, req.frame, buf)
			lastWrite = time.Now()
			if err != nil {
				req.reply <- reply{err: err}
				logger.Error("motion client terminating serve loop", "addr", c.addr, "error", err)
				return
			}
			req.reply <- reply{data: data}
		}
	}
}

func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	return conn, nil
}

// roundTrip writes frame, reads one reply window, and returns a fresh copy
// of the whole readBufSize window: the bytes actually read, followed by
// zero padding. A read of zero bytes (peer closed the connection) is not
// fatal here: the reply is empty and the next write surfaces the error.
func (c *Client) roundTrip(conn net.Conn, frame []byte, buf []byte) ([]byte, error) {
	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	n, err := conn.Read(buf)
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		logger.Warn("motion client read 0 bytes, connection closed", "addr", c.addr)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	out := make([]byte, len(buf))
	copy(out, buf[:n])
	return out, nil
}
