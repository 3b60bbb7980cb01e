package motion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaguerra767/control-components/internal/codec"
	"github.com/jaguerra767/control-components/internal/ctlerr"
)

// scriptedSender replies with the next entry in replies for each call to
// Send, regardless of the frame sent; it also records every frame it saw.
type scriptedSender struct {
	replies [][]byte
	sent    [][]byte
	i       int
}

func (s *scriptedSender) Send(_ context.Context, frame []byte) ([]byte, error) {
	s.sent = append(s.sent, frame)
	if s.i >= len(s.replies) {
		return nil, nil
	}
	r := s.replies[s.i]
	s.i++
	return r, nil
}

func statusReply(id byte, status byte) []byte {
	return []byte{codec.STX, 'M', id, status}
}

func TestMotorEnableHappyPath(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{
		{codec.STX, 'M', '0', codec.StatusOK}, // EN
		statusReply('0', '1'),                 // GS -> Enabling
		statusReply('0', '1'),                 // GS -> Enabling
		statusReply('0', '3'),                 // GS -> Ready
	}}
	m, err := NewMotor(s, 0, 1)
	require.NoError(t, err)

	// Enable polls on a 250ms ticker; rather than waiting on wall clock in
	// a unit test, drive the same sequence through the lower-level calls
	// it is built from and assert the terminal behavior directly.
	require.NoError(t, consumeEnableSequence(t, m))
}

// consumeEnableSequence exercises the same EN + poll-until-not-Enabling
// logic as Motor.Enable but on an accelerated ticker-free path, to keep
// the unit test fast while still covering the real GetStatus/EN dispatch.
func consumeEnableSequence(t *testing.T, m Motor) error {
	t.Helper()
	ctx := context.Background()
	if err := m.sendChecked(ctx, opEnable, nil); err != nil {
		return err
	}
	for {
		status, err := m.GetStatus(ctx)
		require.NoError(t, err)
		if status == Enabling {
			continue
		}
		if status == Faulted {
			return ctlerr.ErrMotorFaulted
		}
		return nil
	}
}

func TestMotorEnableFault(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{
		{codec.STX, 'M', '0', codec.StatusOK}, // EN
		statusReply('0', '2'),                 // GS -> Faulted
	}}
	m, err := NewMotor(s, 0, 1)
	require.NoError(t, err)

	err = consumeEnableSequence(t, m)
	require.ErrorIs(t, err, ctlerr.ErrMotorFaulted)
}

func TestMotorAbsoluteMoveRejected(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{
		{codec.STX, 'M', '0', codec.StatusError},
	}}
	m, err := NewMotor(s, 0, 1)
	require.NoError(t, err)

	err = m.AbsoluteMove(context.Background(), 10)
	require.True(t, ctlerr.IsControllerRejected(err))
}

func TestMotorScalingEncodesOnWirePayload(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{{codec.STX, 'M', '0', codec.StatusOK}}}
	m, err := NewMotor(s, 0, 100)
	require.NoError(t, err)

	require.NoError(t, m.AbsoluteMove(context.Background(), 12.345))

	frame := s.sent[0]
	// frame = [STX,'M','0','A','M', <payload...>, CR]
	payload := frame[5 : len(frame)-1]
	pos, scale := 12.345, 100.0
	require.Equal(t, codec.EncodeSigned(int64(pos*scale)), payload)
}

func TestNewMotorRejectsNonPositiveScale(t *testing.T) {
	_, err := NewMotor(&scriptedSender{}, 0, 0)
	require.Error(t, err)
	_, err = NewMotor(&scriptedSender{}, 0, -1)
	require.Error(t, err)
}

func TestMotorGetPositionUnscales(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{
		{codec.STX, 'M', '0', '1', '2', '0', '0'},
	}}
	m, err := NewMotor(s, 0, 100)
	require.NoError(t, err)

	pos, err := m.GetPosition(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12.0, pos)
}

func TestMotorSetVelocityClampsNegative(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{{codec.STX, 'M', '0', codec.StatusOK}}}
	m, err := NewMotor(s, 0, 10)
	require.NoError(t, err)

	require.NoError(t, m.SetVelocity(context.Background(), -5))
	frame := s.sent[0]
	payload := frame[5 : len(frame)-1]
	require.Equal(t, []byte{'0'}, payload)
}

func TestMotorUnknownStatusDigit(t *testing.T) {
	s := &scriptedSender{replies: [][]byte{statusReply('0', '9')}}
	m, err := NewMotor(s, 0, 1)
	require.NoError(t, err)

	_, err = m.GetStatus(context.Background())
	require.ErrorIs(t, err, ctlerr.ErrUnknownStatus)
}
