package motion

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jaguerra767/control-components/internal/codec"
	"github.com/jaguerra767/control-components/internal/ctlerr"
)

// Status is the motor's reported state, decoded from a GS reply's status
// digit.
type Status int

const (
	Disabled Status = iota
	Enabling
	Faulted
	Ready
	Moving
)

func parseStatus(digit byte) (Status, error) {
	switch digit {
	case '0':
		return Disabled, nil
	case '1':
		return Enabling, nil
	case '2':
		return Faulted, nil
	case '3':
		return Ready, nil
	case '4':
		return Moving, nil
	default:
		return 0, ctlerr.ErrUnknownStatus
	}
}

// motor command opcodes, two ASCII letters each.
var (
	opEnable       = []byte("EN")
	opDisable      = []byte("DE")
	opAbsoluteMove = []byte("AM")
	opRelativeMove = []byte("RM")
	opJog          = []byte("JG")
	opAbruptStop   = []byte("AS")
	opStop         = []byte("ST")
	opSetPosition  = []byte("SP")
	opSetVelocity  = []byte("SV")
	opSetAccel     = []byte("SA")
	opSetDecel     = []byte("SD")
	opGetStatus    = []byte("GS")
	opGetPosition  = []byte("GP")
	opClearAlerts  = []byte("CA")
)

// Motor is a handle to a single stepper/servo axis on a motion controller.
// scale converts between user-level real units and the on-wire integer:
// on-wire = trunc(value * scale).
type Motor struct {
	client sender
	prefix [3]byte
	scale  float64
}

// NewMotor builds a handle for motor id on client. scale must be positive.
func NewMotor(client sender, id uint8, scale float64) (Motor, error) {
	if scale <= 0 {
		return Motor{}, fmt.Errorf("motor: scale must be positive, got %v", scale)
	}
	return Motor{client: client, prefix: codec.MakePrefix(codec.TypeMotor, id), scale: scale}, nil
}

func (m Motor) send(ctx context.Context, op []byte, arg []byte) ([]byte, error) {
	payload := make([]byte, 0, len(op)+len(arg))
	payload = append(payload, op...)
	payload = append(payload, arg...)
	return m.client.Send(ctx, codec.BuildFrame(m.prefix, payload))
}

func (m Motor) sendChecked(ctx context.Context, op []byte, arg []byte) error {
	r, err := m.send(ctx, op, arg)
	if err != nil {
		return err
	}
	return checkStatus(r)
}

func truncScaled(value, scale float64) int64 {
	return int64(value * scale)
}

// Enable sends EN, then polls GetStatus every 250ms until the status is
// no longer Enabling. Returns ctlerr.ErrMotorFaulted if the terminal
// status is Faulted.
func (m Motor) Enable(ctx context.Context) error {
	if err := m.sendChecked(ctx, opEnable, nil); err != nil {
		return err
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := m.GetStatus(ctx)
			if err != nil {
				return err
			}
			if status == Enabling {
				continue
			}
			if status == Faulted {
				return ctlerr.ErrMotorFaulted
			}
			return nil
		}
	}
}

// Disable sends DE.
func (m Motor) Disable(ctx context.Context) error {
	return m.sendChecked(ctx, opDisable, nil)
}

// AbsoluteMove commands the motor to pos (user units).
func (m Motor) AbsoluteMove(ctx context.Context, pos float64) error {
	if err := clampToScaleRange(pos, m.scale); err != nil {
		return err
	}
	return m.sendChecked(ctx, opAbsoluteMove, codec.EncodeSigned(truncScaled(pos, m.scale)))
}

// RelativeMove commands a relative move of delta (user units).
func (m Motor) RelativeMove(ctx context.Context, delta float64) error {
	if err := clampToScaleRange(delta, m.scale); err != nil {
		return err
	}
	return m.sendChecked(ctx, opRelativeMove, codec.EncodeSigned(truncScaled(delta, m.scale)))
}

// Jog commands a continuous jog at speed (user units/s).
func (m Motor) Jog(ctx context.Context, speed float64) error {
	if err := clampToScaleRange(speed, m.scale); err != nil {
		return err
	}
	return m.sendChecked(ctx, opJog, codec.EncodeSigned(truncScaled(speed, m.scale)))
}

// AbruptStop issues an immediate stop (AS).
func (m Motor) AbruptStop(ctx context.Context) error {
	return m.sendChecked(ctx, opAbruptStop, nil)
}

// Stop issues a controlled stop (ST).
func (m Motor) Stop(ctx context.Context) error {
	return m.sendChecked(ctx, opStop, nil)
}

// SetPosition overwrites the controller's notion of current position.
func (m Motor) SetPosition(ctx context.Context, pos float64) error {
	return m.sendChecked(ctx, opSetPosition, codec.EncodeSigned(int64(pos*m.scale)))
}

// SetVelocity sets the max velocity used by subsequent moves. Negative
// values are clamped to 0 before encoding.
func (m Motor) SetVelocity(ctx context.Context, v float64) error {
	if v < 0 {
		v = 0
	}
	return m.sendChecked(ctx, opSetVelocity, codec.EncodeSigned(truncScaled(v, m.scale)))
}

// SetAcceleration sets the acceleration used by subsequent moves.
func (m Motor) SetAcceleration(ctx context.Context, a float64) error {
	return m.sendChecked(ctx, opSetAccel, codec.EncodeSigned(truncScaled(a, m.scale)))
}

// SetDeceleration sets the deceleration used by subsequent moves.
func (m Motor) SetDeceleration(ctx context.Context, a float64) error {
	return m.sendChecked(ctx, opSetDecel, codec.EncodeSigned(truncScaled(a, m.scale)))
}

// GetStatus queries and decodes the motor's current status.
func (m Motor) GetStatus(ctx context.Context) (Status, error) {
	r, err := m.send(ctx, opGetStatus, nil)
	if err != nil {
		return 0, err
	}
	return parseStatus(codec.ReplyStatus(r))
}

// GetPosition queries the motor's current position, in user units.
func (m Motor) GetPosition(ctx context.Context) (float64, error) {
	r, err := m.send(ctx, opGetPosition, nil)
	if err != nil {
		return 0, err
	}
	return float64(codec.ParseSigned(codec.ReplyPayload(r))) / m.scale, nil
}

// ClearAlerts sends CA, clearing a Faulted status so a subsequent Enable
// may succeed.
func (m Motor) ClearAlerts(ctx context.Context) error {
	return m.sendChecked(ctx, opClearAlerts, nil)
}

// WaitForMove polls GetStatus every interval until the motor is no longer
// Moving.
func (m Motor) WaitForMove(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := m.GetStatus(ctx)
			if err != nil {
				return err
			}
			if status != Moving {
				return nil
			}
		}
	}
}

// clampToScaleRange rejects values whose scaled on-wire representation
// would not round-trip through int64, instead of silently wrapping.
func clampToScaleRange(value, scale float64) error {
	scaled := value * scale
	if math.IsInf(scaled, 0) || math.IsNaN(scaled) || scaled > math.MaxInt64 || scaled < math.MinInt64 {
		return fmt.Errorf("motor: value %v at scale %v out of representable range", value, scale)
	}
	return nil
}
