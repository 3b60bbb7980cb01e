package sealer

import (
	"context"
	"testing"
	"time"

	"github.com/jaguerra767/control-components/internal/actuator"
	"github.com/stretchr/testify/require"
)

type fakeActuator struct {
	feedback int
	step     int
	actuated []actuator.Dir
}

func (f *fakeActuator) GetFeedback(ctx context.Context) (int, bool, error) {
	v := f.feedback
	if len(f.actuated) > 0 {
		switch f.actuated[len(f.actuated)-1] {
		case actuator.Pos:
			f.feedback += f.step
		case actuator.Neg:
			f.feedback -= f.step
		}
	}
	return v, true, nil
}

func (f *fakeActuator) Actuate(ctx context.Context, dir actuator.Dir) error {
	f.actuated = append(f.actuated, dir)
	return nil
}

type fakeHeater struct {
	states []bool
}

func (f *fakeHeater) Set(ctx context.Context, on bool) error {
	f.states = append(f.states, on)
	return nil
}

func TestSealerSealRunsFullCycle(t *testing.T) {
	act := &fakeActuator{feedback: 0, step: 5000}
	heater := &fakeHeater{}
	s := NewSealer(act, heater, 10000, 0, 5*time.Millisecond, time.Second)

	err := s.Seal(context.Background())
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, heater.states)
	require.Contains(t, act.actuated, actuator.Pos)
	require.Contains(t, act.actuated, actuator.Neg)
	require.Equal(t, actuator.Off, act.actuated[len(act.actuated)-1])
}

func TestSealerSealSkipsMoveAlreadyAtEndpoint(t *testing.T) {
	act := &fakeActuator{feedback: 10000, step: 5000}
	heater := &fakeHeater{}
	s := NewSealer(act, heater, 10000, 10000, time.Millisecond, time.Second)

	err := s.Seal(context.Background())
	require.NoError(t, err)
	require.Empty(t, act.actuated)
}

func TestSealerTimedMoveSealIgnoresFeedback(t *testing.T) {
	act := &fakeActuator{feedback: 0, step: 0}
	heater := &fakeHeater{}
	s := NewSealer(act, heater, 10000, 0, time.Millisecond, time.Second)

	err := s.TimedMoveSeal(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []actuator.Dir{actuator.Pos, actuator.Off, actuator.Neg, actuator.Off}, act.actuated)
}
