// Package actuator implements LinearActuator: a motion primitive built
// either on a single native H-bridge device or on a pair of relay-driven
// digital outputs, giving Hatch and Sealer a common
// {GetFeedback, Actuate} surface regardless of which hardware backs it.
package actuator

import (
	"context"

	"github.com/jaguerra767/control-components/internal/motion"
)

// Dir is a commanded actuation direction.
type Dir int

const (
	Off Dir = iota
	Pos
	Neg
)

// Actuator is the capability Hatch and Sealer depend on.
type Actuator interface {
	// GetFeedback returns the current position feedback, whether it was
	// available, and any read error.
	GetFeedback(ctx context.Context) (int, bool, error)
	Actuate(ctx context.Context, dir Dir) error
}

// hbridge is the capability a NativeHBridge device handle needs to
// expose; satisfied by motion.HBridge.
type hbridge interface {
	Set(ctx context.Context, dir motion.HBridgeDir) error
}

func (d Dir) toHBridgeDir() motion.HBridgeDir {
	switch d {
	case Pos:
		return motion.Pos
	case Neg:
		return motion.Neg
	default:
		return motion.Off
	}
}

// analogInput is the capability an analog feedback device handle needs
// to expose; satisfied by *motion.AnalogInput.
type analogInput interface {
	Get(ctx context.Context) (int64, error)
}

// digitalOutput is the capability a relay output device handle needs to
// expose; satisfied by *motion.DigitalOutput.
type digitalOutput interface {
	Set(ctx context.Context, on bool) error
}

// NativeHBridge drives a single HBridge device output, optionally paired
// with an analog feedback input. The bridge's power level is fixed at
// device-handle construction time.
type NativeHBridge struct {
	bridge   hbridge
	feedback analogInput
}

// NewNativeHBridge builds a NativeHBridge over bridge. feedback may be
// nil if this actuator has no position sensor.
func NewNativeHBridge(bridge hbridge, feedback analogInput) *NativeHBridge {
	return &NativeHBridge{bridge: bridge, feedback: feedback}
}

func (n *NativeHBridge) Actuate(ctx context.Context, dir Dir) error {
	return n.bridge.Set(ctx, dir.toHBridgeDir())
}

func (n *NativeHBridge) GetFeedback(ctx context.Context) (int, bool, error) {
	if n.feedback == nil {
		return 0, false, nil
	}
	v, err := n.feedback.Get(ctx)
	if err != nil {
		return 0, true, err
	}
	return int(v), true, nil
}

// RelayHBridge drives two digital outputs — forward and reverse relays
// — with zero, one, or two analog feedbacks averaged together.
type RelayHBridge struct {
	forward  digitalOutput
	reverse  digitalOutput
	feedback [2]analogInput
}

// NewRelayHBridge builds a RelayHBridge over the given forward/reverse
// relay outputs. feedback1 and feedback2 may be nil; if both are set,
// GetFeedback averages them (integer division).
func NewRelayHBridge(forward, reverse digitalOutput, feedback1, feedback2 analogInput) *RelayHBridge {
	return &RelayHBridge{forward: forward, reverse: reverse, feedback: [2]analogInput{feedback1, feedback2}}
}

// Actuate sets forward=true for Pos (reverse untouched), reverse=true
// for Neg (forward untouched), or both false for Off. Callers must
// never command Pos and Neg without an intervening Off.
func (r *RelayHBridge) Actuate(ctx context.Context, dir Dir) error {
	switch dir {
	case Pos:
		return r.forward.Set(ctx, true)
	case Neg:
		return r.reverse.Set(ctx, true)
	default:
		if err := r.forward.Set(ctx, false); err != nil {
			return err
		}
		return r.reverse.Set(ctx, false)
	}
}

func (r *RelayHBridge) GetFeedback(ctx context.Context) (int, bool, error) {
	var sum int64
	var count int
	for _, fb := range r.feedback {
		if fb == nil {
			continue
		}
		v, err := fb.Get(ctx)
		if err != nil {
			return 0, true, err
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, false, nil
	}
	return int(sum / int64(count)), true, nil
}
