// Package gantry implements Gantry: a single-axis mover that serializes
// GoTo/GetPosition through a request channel so concurrent callers
// cannot interleave commands to the same motor.
package gantry

import (
	"context"
	"time"

	"github.com/jaguerra767/control-components/internal/ctlerr"
)

// pollInterval is how often GoTo checks whether the motor has stopped
// moving.
const pollInterval = 250 * time.Millisecond

// motor is the capability a Gantry needs from its axis motor; satisfied
// by motion.Motor.
type motor interface {
	Enable(ctx context.Context) error
	AbsoluteMove(ctx context.Context, pos float64) error
	WaitForMove(ctx context.Context, interval time.Duration) error
	GetPosition(ctx context.Context) (float64, error)
}

type result struct {
	position float64
	err      error
}

type goToReq struct {
	position float64
	reply    chan result
}

type getPositionReq struct {
	reply chan result
}

type request struct {
	goTo        *goToReq
	getPosition *getPositionReq
}

// Gantry owns a single motor handle exclusively: no other caller may
// command that motor directly once a Gantry has been built over it.
type Gantry struct {
	m        motor
	requests chan request
	done     chan struct{}
}

// NewGantry enables the axis motor and starts the Gantry's serializing
// worker loop. The returned error is from the initial Enable.
func NewGantry(ctx context.Context, m motor) (*Gantry, error) {
	if err := m.Enable(ctx); err != nil {
		return nil, err
	}
	g := &Gantry{
		m:        m,
		requests: make(chan request, 10),
		done:     make(chan struct{}),
	}
	go g.run(ctx)
	return g, nil
}

func (g *Gantry) run(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-g.requests:
			if !ok {
				return
			}
			g.handle(ctx, req)
		}
	}
}

func (g *Gantry) handle(ctx context.Context, req request) {
	switch {
	case req.goTo != nil:
		pos, err := g.goTo(ctx, req.goTo.position)
		req.goTo.reply <- result{position: pos, err: err}
	case req.getPosition != nil:
		pos, err := g.m.GetPosition(ctx)
		req.getPosition.reply <- result{position: pos, err: err}
	}
}

func (g *Gantry) goTo(ctx context.Context, position float64) (float64, error) {
	if err := g.m.AbsoluteMove(ctx, position); err != nil {
		return 0, err
	}
	if err := g.m.WaitForMove(ctx, pollInterval); err != nil {
		return 0, err
	}
	return g.m.GetPosition(ctx)
}

// GoTo commands an absolute move to position, waits for the motor to
// stop moving, and returns the resulting position.
func (g *Gantry) GoTo(ctx context.Context, position float64) (float64, error) {
	reply := make(chan result, 1)
	select {
	case g.requests <- request{goTo: &goToReq{position: position, reply: reply}}:
	case <-g.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.position, r.err
	case <-g.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// GetPosition returns the current axis position.
func (g *Gantry) GetPosition(ctx context.Context) (float64, error) {
	reply := make(chan result, 1)
	select {
	case g.requests <- request{getPosition: &getPositionReq{reply: reply}}:
	case <-g.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.position, r.err
	case <-g.done:
		return 0, ctlerr.ErrDisconnected
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
