// Package dispenser implements the weight-controlled dispense loop: a
// Motor driven by a proportional error signal derived from a filtered
// ScaleActor reading, with a sibling goroutine nudging velocity between
// control-loop ticks.
package dispenser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jaguerra767/control-components/internal/ctlerr"
	"github.com/jaguerra767/control-components/internal/filter"
	"github.com/jaguerra767/control-components/internal/logger"
)

// controlInterval is the main control loop's cadence; nudgeInterval is
// the sibling motor-speed updater's sub-cadence.
const (
	controlInterval    = 500 * time.Millisecond
	nudgeInterval      = 200 * time.Millisecond
	seedWindow         = 2 * time.Second
	checkWindowSamples = 15
	resumeMoveRevs     = 10.0
	dispenseBeginRevs  = 100.0
	nudgeMoveRevs      = 20.0
	minNudgeMagnitude  = 0.1
	pollInterval       = 250 * time.Millisecond
)

// motor is the capability a Dispenser needs from its axis motor;
// satisfied by motion.Motor.
type motor interface {
	SetVelocity(ctx context.Context, v float64) error
	RelativeMove(ctx context.Context, delta float64) error
	AbruptStop(ctx context.Context) error
	WaitForMove(ctx context.Context, interval time.Duration) error
}

// weightSource is the capability a Dispenser needs from the scale;
// satisfied by *scale.Actor.
type weightSource interface {
	GetWeight(ctx context.Context) (float64, error)
	GetMedianWeight(ctx context.Context, rateHz float64, duration time.Duration) (float64, error)
}

// latestSource serves a cached most-recent weight without blocking on a
// hardware read; satisfied by *scale.Stream. When present it replaces
// GetWeight for the control loop's per-tick sample, so a slow load-cell
// read never stalls the tick.
type latestSource interface {
	Latest() (float64, error)
}

// bagSensor reports whether a bag is present under the dispense nozzle;
// satisfied by motion.DigitalInput.
type bagSensor interface {
	Get(ctx context.Context) (bool, error)
}

// OutcomeKind classifies how a dispense run ended.
type OutcomeKind int

const (
	WeightAchieved OutcomeKind = iota
	Timeout
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case WeightAchieved:
		return "weight_achieved"
	case Timeout:
		return "timeout"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a dispense run.
type Outcome struct {
	Kind           OutcomeKind
	GramsDispensed float64
}

// WeightTarget dispenses until grams have left the scale, or timeout
// elapses.
type WeightTarget struct {
	Grams   float64
	Timeout time.Duration
}

// Setpoint selects weight-controlled or fixed-duration dispensing.
// Exactly one of Weight or Timed should be set.
type Setpoint struct {
	Weight *WeightTarget
	Timed  *time.Duration
}

// Params tunes the control loop.
type Params struct {
	MotorSpeed      float64
	SampleRate      float64
	CutoffFrequency float64
	CheckOffset     float64
	StopOffset      float64
	RetractBefore   *float64
	RetractAfter    *float64
}

// Metrics receives optional instrumentation callbacks.
type Metrics interface {
	IncOutcome(kind OutcomeKind)
	ObserveGramsDispensed(grams float64)
}

type noopMetrics struct{}

func (noopMetrics) IncOutcome(OutcomeKind)        {}
func (noopMetrics) ObserveGramsDispensed(float64) {}

// Dispenser composes a motor and a scale to run weight-controlled or
// timed dispense cycles.
type Dispenser struct {
	m       motor
	scale   weightSource
	stream  latestSource
	bag     bagSensor
	params  Params
	metrics Metrics
}

// Option configures a Dispenser at construction time.
type Option func(*Dispenser)

// WithMetrics attaches a Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(d *Dispenser) { d.metrics = m }
}

// WithWeightStream points the control loop's per-tick sample at a
// push-mode stream instead of the scale's blocking pull interface.
// Median sampling (seed weight, check confirmation) still goes through
// the pull interface, where blocking on a real read is wanted.
func WithWeightStream(s latestSource) Option {
	return func(d *Dispenser) { d.stream = s }
}

// WithBagSensor attaches a photoeye checked every control tick; a
// bag-absent reading aborts the run with ctlerr.ErrLostBag.
func WithBagSensor(s bagSensor) Option {
	return func(d *Dispenser) { d.bag = s }
}

// New builds a Dispenser over m and scale with the given tuning params.
func New(m motor, scale weightSource, params Params, opts ...Option) *Dispenser {
	d := &Dispenser{m: m, scale: scale, params: params, metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes setpoint to completion: shutdown (ctx cancellation), a
// motor or scale error, or a lost bag ends the run with Failed and returns
// the error; otherwise it ends with Timeout or WeightAchieved.
func (d *Dispenser) Run(ctx context.Context, setpoint Setpoint) (Outcome, error) {
	var outcome Outcome
	var err error
	switch {
	case setpoint.Weight != nil:
		outcome, err = d.runWeight(ctx, *setpoint.Weight)
	case setpoint.Timed != nil:
		outcome, err = d.runTimed(ctx, *setpoint.Timed)
	default:
		return Outcome{}, fmt.Errorf("dispenser: setpoint must specify Weight or Timed")
	}
	d.metrics.IncOutcome(outcome.Kind)
	d.metrics.ObserveGramsDispensed(outcome.GramsDispensed)
	return outcome, err
}

// retract pulls the auger back by the configured magnitude: the
// commanded move is the negation of revs, so a retract_before of 5
// means 5 revolutions away from the dispense direction.
func (d *Dispenser) retract(ctx context.Context, revs *float64) error {
	if revs == nil {
		return nil
	}
	if err := d.m.RelativeMove(ctx, -*revs); err != nil {
		return err
	}
	return d.m.WaitForMove(ctx, pollInterval)
}

func (d *Dispenser) runWeight(ctx context.Context, target WeightTarget) (Outcome, error) {
	initWeight, err := d.scale.GetMedianWeight(ctx, d.params.SampleRate, seedWindow)
	if err != nil {
		return Outcome{Kind: Failed}, err
	}
	targetWeight := initWeight - target.Grams
	f := filter.NewLowPassFilter(d.params.SampleRate, d.params.CutoffFrequency, initWeight)

	if err := d.m.SetVelocity(ctx, d.params.MotorSpeed); err != nil {
		return Outcome{Kind: Failed}, err
	}
	if err := d.retract(ctx, d.params.RetractBefore); err != nil {
		return Outcome{Kind: Failed}, err
	}
	if err := d.m.RelativeMove(ctx, dispenseBeginRevs); err != nil {
		return Outcome{Kind: Failed}, err
	}

	var dispenseComplete atomic.Bool
	var errMu sync.Mutex
	var currentError float64

	updaterCtx, cancelUpdater := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go d.runSpeedUpdater(updaterCtx, &wg, &dispenseComplete, &errMu, &currentError)
	defer wg.Wait()
	defer cancelUpdater()

	filtered := initWeight
	start := time.Now()
	ticker := time.NewTicker(controlInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dispenseComplete.Store(true)
			if err := d.m.AbruptStop(ctx); err != nil {
				logger.Error("dispenser: abrupt stop on shutdown failed", "error", err)
			}
			return Outcome{Kind: Failed, GramsDispensed: initWeight - filtered}, ctx.Err()
		case <-ticker.C:
			if time.Since(start) > target.Timeout {
				dispenseComplete.Store(true)
				if err := d.m.AbruptStop(ctx); err != nil {
					return Outcome{Kind: Failed, GramsDispensed: initWeight - filtered}, err
				}
				return Outcome{Kind: Timeout, GramsDispensed: initWeight - filtered}, nil
			}

			if d.bag != nil {
				present, err := d.bag.Get(ctx)
				if err == nil && !present {
					dispenseComplete.Store(true)
					_ = d.m.AbruptStop(ctx)
					return Outcome{Kind: Failed, GramsDispensed: initWeight - filtered}, ctlerr.ErrLostBag
				}
			}

			sample, err := d.sampleWeight(ctx)
			if err != nil {
				dispenseComplete.Store(true)
				_ = d.m.AbruptStop(ctx)
				return Outcome{Kind: Failed, GramsDispensed: initWeight - filtered}, err
			}
			filtered = f.Apply(sample)

			e := (filtered - targetWeight) / target.Grams
			errMu.Lock()
			currentError = e
			errMu.Unlock()

			if filtered >= targetWeight+d.params.CheckOffset {
				continue
			}

			if err := d.m.AbruptStop(ctx); err != nil {
				dispenseComplete.Store(true)
				return Outcome{Kind: Failed, GramsDispensed: initWeight - filtered}, err
			}
			checkDuration := time.Duration(checkWindowSamples / d.params.SampleRate * float64(time.Second))
			checkMedian, err := d.scale.GetMedianWeight(ctx, d.params.SampleRate, checkDuration)
			if err != nil {
				dispenseComplete.Store(true)
				return Outcome{Kind: Failed, GramsDispensed: initWeight - filtered}, err
			}

			if checkMedian < targetWeight+d.params.StopOffset {
				dispenseComplete.Store(true)
				if err := d.retract(ctx, d.params.RetractAfter); err != nil {
					return Outcome{Kind: Failed, GramsDispensed: initWeight - checkMedian}, err
				}
				return Outcome{Kind: WeightAchieved, GramsDispensed: initWeight - checkMedian}, nil
			}

			if err := d.m.RelativeMove(ctx, resumeMoveRevs); err != nil {
				dispenseComplete.Store(true)
				return Outcome{Kind: Failed, GramsDispensed: initWeight - filtered}, err
			}
		}
	}
}

// sampleWeight takes the control loop's per-tick weight estimate: the
// push-mode stream's cached latest when one is attached, else one pull
// through the scale actor.
func (d *Dispenser) sampleWeight(ctx context.Context) (float64, error) {
	if d.stream != nil {
		return d.stream.Latest()
	}
	return d.scale.GetWeight(ctx)
}

// runSpeedUpdater nudges velocity every nudgeInterval based on the
// current error the main control loop has published, stopping once the
// main loop marks the dispense complete.
func (d *Dispenser) runSpeedUpdater(ctx context.Context, wg *sync.WaitGroup, complete *atomic.Bool, errMu *sync.Mutex, currentError *float64) {
	defer wg.Done()
	ticker := time.NewTicker(nudgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if complete.Load() {
				return
			}
			errMu.Lock()
			e := *currentError
			errMu.Unlock()

			if e*d.params.MotorSpeed < minNudgeMagnitude {
				continue
			}
			v := e * d.params.MotorSpeed
			if v > d.params.MotorSpeed {
				v = d.params.MotorSpeed
			}
			if err := d.m.SetVelocity(ctx, v); err != nil {
				logger.Warn("dispenser: speed updater SetVelocity failed", "error", err)
				continue
			}
			if err := d.m.RelativeMove(ctx, nudgeMoveRevs); err != nil {
				logger.Warn("dispenser: speed updater RelativeMove failed", "error", err)
			}
		}
	}
}

func (d *Dispenser) runTimed(ctx context.Context, duration time.Duration) (Outcome, error) {
	if err := d.m.SetVelocity(ctx, d.params.MotorSpeed); err != nil {
		return Outcome{Kind: Failed}, err
	}
	if err := d.retract(ctx, d.params.RetractBefore); err != nil {
		return Outcome{Kind: Failed}, err
	}
	if err := d.m.RelativeMove(ctx, dispenseBeginRevs); err != nil {
		return Outcome{Kind: Failed}, err
	}

	var shutdown bool
	select {
	case <-ctx.Done():
		shutdown = true
	case <-time.After(duration):
	}

	if err := d.m.AbruptStop(ctx); err != nil {
		return Outcome{Kind: Failed}, err
	}
	if shutdown {
		return Outcome{Kind: Failed}, ctx.Err()
	}
	if err := d.retract(ctx, d.params.RetractAfter); err != nil {
		return Outcome{Kind: Failed}, err
	}
	return Outcome{Kind: WeightAchieved}, nil
}
