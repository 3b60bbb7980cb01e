// Package sealer implements Sealer: an extend/retract position servo
// over a LinearActuator, plus a heater output and dwell timer for the
// heat-seal cycle between the two moves.
package sealer

import (
	"context"
	"time"

	"github.com/jaguerra767/control-components/internal/actuator"
	"github.com/jaguerra767/control-components/internal/hatch"
)

// heaterOutput is the capability the heater device handle needs to
// expose; satisfied by *motion.DigitalOutput.
type heaterOutput interface {
	Set(ctx context.Context, on bool) error
}

// Sealer drives an actuator between an extend setpoint (where sealing
// occurs) and a retract setpoint, dwelling with the heater on at the
// extend endpoint.
type Sealer struct {
	act     actuator.Actuator
	heater  heaterOutput
	extend  int
	retract int
	dwell   time.Duration
	timeout time.Duration
}

// NewSealer builds a Sealer. extend/retract are GetFeedback setpoints;
// dwell is how long the heater stays on once extended; timeout bounds
// each servo move (soft timeout, logged and proceeded past).
func NewSealer(act actuator.Actuator, heater heaterOutput, extend, retract int, dwell, timeout time.Duration) *Sealer {
	return &Sealer{act: act, heater: heater, extend: extend, retract: retract, dwell: dwell, timeout: timeout}
}

// Seal runs the full extend -> heat dwell -> retract cycle. If the
// actuator is already at an endpoint, that move is skipped.
func (s *Sealer) Seal(ctx context.Context) error {
	if err := s.moveToEndpointIfNeeded(ctx, s.extend, actuator.Pos, hatch.ReachedOpening); err != nil {
		return err
	}

	if err := s.heater.Set(ctx, true); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		_ = s.heater.Set(ctx, false)
		return ctx.Err()
	case <-time.After(s.dwell):
	}
	if err := s.heater.Set(ctx, false); err != nil {
		return err
	}

	return s.moveToEndpointIfNeeded(ctx, s.retract, actuator.Neg, hatch.ReachedClosing)
}

// TimedMoveSeal substitutes both moves with fixed-duration actuations
// instead of feedback-servoed ones, then runs the same heat dwell.
func (s *Sealer) TimedMoveSeal(ctx context.Context, moveDuration time.Duration) error {
	if err := s.timedActuate(ctx, actuator.Pos, moveDuration); err != nil {
		return err
	}

	if err := s.heater.Set(ctx, true); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		_ = s.heater.Set(ctx, false)
		return ctx.Err()
	case <-time.After(s.dwell):
	}
	if err := s.heater.Set(ctx, false); err != nil {
		return err
	}

	return s.timedActuate(ctx, actuator.Neg, moveDuration)
}

func (s *Sealer) moveToEndpointIfNeeded(ctx context.Context, target int, dir actuator.Dir, reached hatch.ReachedFn) error {
	feedback, ok, err := s.act.GetFeedback(ctx)
	if err != nil {
		return err
	}
	if ok && feedback == target {
		return nil
	}
	return hatch.MoveTo(ctx, s.act, target, dir, reached, s.timeout)
}

func (s *Sealer) timedActuate(ctx context.Context, dir actuator.Dir, d time.Duration) error {
	if err := s.act.Actuate(ctx, dir); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
	return s.act.Actuate(ctx, actuator.Off)
}
