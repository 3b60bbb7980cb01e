package actuator

import (
	"context"
	"errors"
	"testing"

	"github.com/jaguerra767/control-components/internal/motion"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	calls []motion.HBridgeDir
	err   error
}

func (f *fakeBridge) Set(ctx context.Context, dir motion.HBridgeDir) error {
	f.calls = append(f.calls, dir)
	return f.err
}

type fakeAnalog struct {
	value int64
	err   error
}

func (f *fakeAnalog) Get(ctx context.Context) (int64, error) { return f.value, f.err }

type fakeDigitalOut struct {
	state bool
	err   error
}

func (f *fakeDigitalOut) Set(ctx context.Context, on bool) error {
	f.state = on
	return f.err
}

func TestNativeHBridgeActuateMapsDirections(t *testing.T) {
	bridge := &fakeBridge{}
	n := NewNativeHBridge(bridge, nil)

	require.NoError(t, n.Actuate(context.Background(), Pos))
	require.NoError(t, n.Actuate(context.Background(), Neg))
	require.NoError(t, n.Actuate(context.Background(), Off))

	require.Equal(t, []motion.HBridgeDir{motion.Pos, motion.Neg, motion.Off}, bridge.calls)
}

func TestNativeHBridgeGetFeedbackWithoutSensor(t *testing.T) {
	n := NewNativeHBridge(&fakeBridge{}, nil)
	v, ok, err := n.GetFeedback(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, v)
}

func TestNativeHBridgeGetFeedbackWithSensor(t *testing.T) {
	n := NewNativeHBridge(&fakeBridge{}, &fakeAnalog{value: 42})
	v, ok, err := n.GetFeedback(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestRelayHBridgeActuateLeavesOtherRelayUntouched(t *testing.T) {
	fwd := &fakeDigitalOut{}
	rev := &fakeDigitalOut{}
	r := NewRelayHBridge(fwd, rev, nil, nil)

	require.NoError(t, r.Actuate(context.Background(), Pos))
	require.True(t, fwd.state)
	require.False(t, rev.state)

	require.NoError(t, r.Actuate(context.Background(), Off))
	require.False(t, fwd.state)
	require.False(t, rev.state)
}

func TestRelayHBridgeGetFeedbackAveragesDualSensors(t *testing.T) {
	r := NewRelayHBridge(&fakeDigitalOut{}, &fakeDigitalOut{}, &fakeAnalog{value: 10}, &fakeAnalog{value: 21})
	v, ok, err := r.GetFeedback(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 15, v) // integer division of (10+21)/2
}

func TestRelayHBridgeGetFeedbackPropagatesError(t *testing.T) {
	r := NewRelayHBridge(&fakeDigitalOut{}, &fakeDigitalOut{}, &fakeAnalog{err: errors.New("boom")}, nil)
	_, _, err := r.GetFeedback(context.Background())
	require.Error(t, err)
}
