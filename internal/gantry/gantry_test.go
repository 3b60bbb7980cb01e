package gantry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeMotor struct {
	mu          sync.Mutex
	enabled     bool
	position    float64
	moving      bool
	enableErr   error
	moveErr     error
	calls       []string
	movingTicks int
}

func (f *fakeMotor) Enable(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = true
	return f.enableErr
}

func (f *fakeMotor) AbsoluteMove(ctx context.Context, pos float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "move")
	if f.moveErr != nil {
		return f.moveErr
	}
	f.position = pos
	f.moving = f.movingTicks > 0
	return nil
}

func (f *fakeMotor) WaitForMove(ctx context.Context, interval time.Duration) error {
	for {
		f.mu.Lock()
		if !f.moving {
			f.mu.Unlock()
			return nil
		}
		f.movingTicks--
		if f.movingTicks <= 0 {
			f.moving = false
		}
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeMotor) GetPosition(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func TestGantryEnablesOnConstruction(t *testing.T) {
	m := &fakeMotor{}
	_, err := NewGantry(context.Background(), m)
	require.NoError(t, err)
	require.True(t, m.enabled)
}

func TestGantryConstructionPropagatesEnableError(t *testing.T) {
	m := &fakeMotor{enableErr: errors.New("boom")}
	_, err := NewGantry(context.Background(), m)
	require.Error(t, err)
}

func TestGantryGoToReturnsFinalPosition(t *testing.T) {
	m := &fakeMotor{movingTicks: 2}
	g, err := NewGantry(context.Background(), m)
	require.NoError(t, err)

	pos, err := g.GoTo(context.Background(), 42.5)
	require.NoError(t, err)
	require.Equal(t, 42.5, pos)
}

func TestGantrySerializesConcurrentCallers(t *testing.T) {
	m := &fakeMotor{}
	g, err := NewGantry(context.Background(), m)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := g.GoTo(context.Background(), float64(n))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.calls, 10)
}

func TestGantryGetPosition(t *testing.T) {
	m := &fakeMotor{position: 7}
	g, err := NewGantry(context.Background(), m)
	require.NoError(t, err)

	pos, err := g.GetPosition(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7.0, pos)
}
