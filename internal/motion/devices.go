package motion

import (
	"context"
	"fmt"

	"github.com/jaguerra767/control-components/internal/codec"
	"github.com/jaguerra767/control-components/internal/ctlerr"
)

// sender is the capability every device handle needs: send a frame,
// get a reply. Client satisfies it; tests substitute a fake.
type sender interface {
	Send(ctx context.Context, frame []byte) ([]byte, error)
}

func checkStatus(reply []byte) error {
	if codec.ReplyStatus(reply) == codec.StatusError {
		return &ctlerr.ControllerRejected{Reply: reply}
	}
	return nil
}

// DigitalInput reads a single discrete input channel on a motion
// controller.
type DigitalInput struct {
	client sender
	prefix [3]byte
}

// NewDigitalInput builds a handle for input id on client.
func NewDigitalInput(client sender, id uint8) DigitalInput {
	return DigitalInput{client: client, prefix: codec.MakePrefix(codec.TypeInput, id)}
}

// Get returns true if the input reads logical 1.
func (d DigitalInput) Get(ctx context.Context) (bool, error) {
	frame := codec.BuildFrame(d.prefix, nil)
	r, err := d.client.Send(ctx, frame)
	if err != nil {
		return false, err
	}
	return codec.ParseSigned(codec.ReplyPayload(r)) == 1, nil
}

// AnalogInput reads a single analog input channel, returning its raw
// integer payload.
type AnalogInput struct {
	client sender
	prefix [3]byte
}

// NewAnalogInput builds a handle for input id on client.
func NewAnalogInput(client sender, id uint8) AnalogInput {
	return AnalogInput{client: client, prefix: codec.MakePrefix(codec.TypeInput, id)}
}

// Get returns the raw analog reading.
func (a AnalogInput) Get(ctx context.Context) (int64, error) {
	frame := codec.BuildFrame(a.prefix, nil)
	r, err := a.client.Send(ctx, frame)
	if err != nil {
		return 0, err
	}
	return codec.ParseSigned(codec.ReplyPayload(r)), nil
}

// onPayload is the maximum-positive payload used to energize a digital
// output relay.
var onPayload = []byte{'3', '2', '7', '0', '0'}

// DigitalOutput drives a single discrete output (typically a relay).
type DigitalOutput struct {
	client sender
	prefix [3]byte
}

// NewDigitalOutput builds a handle for output id on client.
func NewDigitalOutput(client sender, id uint8) DigitalOutput {
	return DigitalOutput{client: client, prefix: codec.MakePrefix(codec.TypeOutput, id)}
}

// Set energizes (true) or de-energizes (false) the output.
func (d DigitalOutput) Set(ctx context.Context, on bool) error {
	var payload []byte
	if on {
		payload = onPayload
	} else {
		payload = []byte{'0'}
	}
	r, err := d.client.Send(ctx, codec.BuildFrame(d.prefix, payload))
	if err != nil {
		return err
	}
	return checkStatus(r)
}

// HBridgeDir is a commanded H-bridge direction.
type HBridgeDir int

const (
	Off HBridgeDir = iota
	Pos
	Neg
)

// HBridge drives a single bidirectional output by signed power level.
type HBridge struct {
	client sender
	prefix [3]byte
	power  int64
}

// NewHBridge builds a handle for output id on client, commanding up to
// power (<= 32760) in either direction.
func NewHBridge(client sender, id uint8, power int64) HBridge {
	return HBridge{client: client, prefix: codec.MakePrefix(codec.TypeOutput, id), power: power}
}

// Set commands dir: Pos for +power, Neg for -power, Off for 0.
func (h HBridge) Set(ctx context.Context, dir HBridgeDir) error {
	var signed int64
	switch dir {
	case Pos:
		signed = h.power
	case Neg:
		signed = -h.power
	case Off:
		signed = 0
	default:
		return fmt.Errorf("hbridge: unknown direction %d", dir)
	}
	r, err := h.client.Send(ctx, codec.BuildFrame(h.prefix, codec.EncodeSigned(signed)))
	if err != nil {
		return err
	}
	return checkStatus(r)
}
