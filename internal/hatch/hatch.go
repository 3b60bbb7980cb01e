// Package hatch implements Hatch: a position-servo loop driven
// over an actuator.Actuator, ticking at a fixed cadence until a feedback
// threshold is reached or a soft timeout elapses.
package hatch

import (
	"context"
	"time"

	"github.com/jaguerra767/control-components/internal/actuator"
	"github.com/jaguerra767/control-components/internal/logger"
)

// tickInterval is the servo loop's polling cadence.
const tickInterval = 5 * time.Millisecond

// ReachedFn reports whether feedback has reached target for a given
// direction of travel.
type ReachedFn func(feedback, target int) bool

// ReachedOpening and ReachedClosing are the two ReachedFn shapes a
// position servo needs; exported so Sealer can reuse MoveTo for its own
// extend/retract endpoints.
func ReachedOpening(feedback, target int) bool { return feedback >= target }
func ReachedClosing(feedback, target int) bool { return feedback <= target }

// MoveTo drives act toward target along dir, polling feedback every
// tickInterval, until reached returns true or timeout elapses (a soft
// timeout: it is logged and the loop proceeds to de-energize regardless).
// Shared by Hatch's open/close and Sealer's extend/retract.
func MoveTo(ctx context.Context, act actuator.Actuator, target int, dir actuator.Dir, reached ReachedFn, timeout time.Duration) error {
	if err := act.Actuate(ctx, dir); err != nil {
		return err
	}
	defer func() {
		if err := act.Actuate(ctx, actuator.Off); err != nil {
			logger.Error("hatch: failed to de-energize actuator", "error", err)
		}
	}()

	start := time.Now()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			feedback, ok, err := act.GetFeedback(ctx)
			if err != nil {
				return err
			}
			if ok && reached(feedback, target) {
				return nil
			}
			if time.Since(start) >= timeout {
				logger.Warn("hatch: move timed out before reaching target", "target", target, "timeout", timeout)
				return nil
			}
		}
	}
}

// Hatch is a single-actuator position servo with configured fully-open
// and fully-closed setpoints.
type Hatch struct {
	act           actuator.Actuator
	openSetpoint  int
	closeSetpoint int
	timeout       time.Duration
}

// NewHatch builds a Hatch over act with its fully-open and fully-closed
// feedback setpoints. Moves give up (soft timeout) after timeout if the
// target is never reached.
func NewHatch(act actuator.Actuator, openSetpoint, closeSetpoint int, timeout time.Duration) *Hatch {
	return &Hatch{act: act, openSetpoint: openSetpoint, closeSetpoint: closeSetpoint, timeout: timeout}
}

// Open drives the hatch toward increasing feedback until setpoint is
// reached.
func (h *Hatch) Open(ctx context.Context, setpoint int) error {
	return MoveTo(ctx, h.act, setpoint, actuator.Pos, ReachedOpening, h.timeout)
}

// Close drives the hatch toward decreasing feedback until setpoint is
// reached.
func (h *Hatch) Close(ctx context.Context, setpoint int) error {
	return MoveTo(ctx, h.act, setpoint, actuator.Neg, ReachedClosing, h.timeout)
}

// OpenFull drives the hatch to its configured fully-open setpoint.
func (h *Hatch) OpenFull(ctx context.Context) error {
	return h.Open(ctx, h.openSetpoint)
}

// CloseFull drives the hatch to its configured fully-closed setpoint.
func (h *Hatch) CloseFull(ctx context.Context) error {
	return h.Close(ctx, h.closeSetpoint)
}

// TimedOpen actuates Pos for a fixed duration regardless of feedback.
func (h *Hatch) TimedOpen(ctx context.Context, d time.Duration) error {
	return timedActuate(ctx, h.act, actuator.Pos, d)
}

// TimedClose actuates Neg for a fixed duration regardless of feedback.
func (h *Hatch) TimedClose(ctx context.Context, d time.Duration) error {
	return timedActuate(ctx, h.act, actuator.Neg, d)
}

// GetPosition returns the hatch's current feedback reading.
func (h *Hatch) GetPosition(ctx context.Context) (int, bool, error) {
	return h.act.GetFeedback(ctx)
}

func timedActuate(ctx context.Context, act actuator.Actuator, dir actuator.Dir, d time.Duration) error {
	if err := act.Actuate(ctx, dir); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
	return act.Actuate(ctx, actuator.Off)
}
