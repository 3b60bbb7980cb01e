package motion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaguerra767/control-components/internal/codec"
)

func TestDigitalInputGet(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{{codec.STX, 'I', '0', '1'}}}
	d := NewDigitalInput(s, 0)
	on, err := d.Get(context.Background())
	require.NoError(t, err)
	require.True(t, on)

	s2 := &scriptedSender{replies: [][]byte{{codec.STX, 'I', '0', '0'}}}
	d2 := NewDigitalInput(s2, 0)
	on2, err := d2.Get(context.Background())
	require.NoError(t, err)
	require.False(t, on2)
}

func TestAnalogInputGet(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{{codec.STX, 'I', '2', '1', '2', '3', '4'}}}
	a := NewAnalogInput(s, 2)
	v, err := a.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1234), v)
}

func TestDigitalOutputSetOnOff(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{
		{codec.STX, 'O', '1', codec.StatusOK},
		{codec.STX, 'O', '1', codec.StatusOK},
	}}
	d := NewDigitalOutput(s, 1)

	require.NoError(t, d.Set(context.Background(), true))
	require.Equal(t, []byte{codec.STX, 'O', '1', '3', '2', '7', '0', '0', codec.CR}, s.sent[0])

	require.NoError(t, d.Set(context.Background(), false))
	require.Equal(t, []byte{codec.STX, 'O', '1', '0', codec.CR}, s.sent[1])
}

func TestDigitalOutputRejected(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{{codec.STX, 'O', '1', codec.StatusError}}}
	d := NewDigitalOutput(s, 1)
	err := d.Set(context.Background(), true)
	require.Error(t, err)
}

func TestHBridgeDirections(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{
		{codec.STX, 'O', '3', codec.StatusOK},
		{codec.STX, 'O', '3', codec.StatusOK},
		{codec.STX, 'O', '3', codec.StatusOK},
	}}
	h := NewHBridge(s, 3, 20000)

	require.NoError(t, h.Set(context.Background(), Pos))
	require.Equal(t, []byte{codec.STX, 'O', '3', '2', '0', '0', '0', '0', codec.CR}, s.sent[0])

	require.NoError(t, h.Set(context.Background(), Neg))
	require.Equal(t, []byte{codec.STX, 'O', '3', '-', '2', '0', '0', '0', '0', codec.CR}, s.sent[1])

	require.NoError(t, h.Set(context.Background(), Off))
	require.Equal(t, []byte{codec.STX, 'O', '3', '0', codec.CR}, s.sent[2])
}
