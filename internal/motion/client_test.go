package motion

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaguerra767/control-components/internal/codec"
)

// fakeController accepts one TCP connection and, for each frame it
// receives, looks up a scripted reply by the frame's 3-byte prefix+opcode
// key (or echoes a default "_" success reply).
type fakeController struct {
	ln net.Listener

	mu      sync.Mutex
	writes  [][]byte
	scripts map[string][]byte
}

func newFakeController(t *testing.T) *fakeController {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fc := &fakeController{ln: ln, scripts: map[string][]byte{}}
	go fc.accept()
	return fc
}

func (fc *fakeController) addr() string { return fc.ln.Addr().String() }

func (fc *fakeController) script(key string, reply []byte) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.scripts[key] = reply
}

func (fc *fakeController) recordedWrites() [][]byte {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	out := make([][]byte, len(fc.writes))
	copy(out, fc.writes)
	return out
}

func (fc *fakeController) accept() {
	conn, err := fc.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])

		fc.mu.Lock()
		fc.writes = append(fc.writes, frame)
		key := frameKey(frame)
		reply, ok := fc.scripts[key]
		fc.mu.Unlock()

		if !ok {
			reply = []byte{frame[0], frame[1], frame[2], codec.StatusOK}
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

func (fc *fakeController) close() { fc.ln.Close() }

// frameKey identifies a frame by its target (type+id) and, for motor
// frames, its two-letter opcode — enough to script distinct replies for
// EN vs GS on the same motor id.
func frameKey(frame []byte) string {
	if len(frame) >= 5 && frame[1] == codec.TypeMotor {
		return string(frame[1:5])
	}
	if len(frame) >= 3 {
		return string(frame[1:3])
	}
	return ""
}

func TestClientSendRoundTrip(t *testing.T) {
	fc := newFakeController(t)
	defer fc.close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c := NewClient(ctx, fc.addr(), WithQueueSize(4))

	frame := codec.BuildFrame(codec.MakePrefix(codec.TypeInput, 0), nil)
	reply, err := c.Send(ctx, frame)
	require.NoError(t, err)
	want := make([]byte, readBufSize)
	copy(want, []byte{codec.STX, codec.TypeInput, '0', codec.StatusOK})
	require.Equal(t, want, reply)
}

func TestClientFIFOOrdering(t *testing.T) {
	fc := newFakeController(t)
	defer fc.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := NewClient(ctx, fc.addr(), WithQueueSize(16))

	const n = 20
	results := make([][]byte, n)
	var wg sync.WaitGroup
	// Enqueue strictly sequentially (as the FIFO guarantee is scoped to
	// enqueue-completion order), but wait for replies concurrently.
	reqs := make([]chan struct{ data []byte }, n)
	for i := 0; i < n; i++ {
		i := i
		reqs[i] = make(chan struct{ data []byte }, 1)
		frame := codec.BuildFrame(codec.MakePrefix(codec.TypeInput, uint8(i%10)), nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := c.Send(ctx, frame)
			require.NoError(t, err)
			reqs[i] <- struct{ data []byte }{data}
		}()
		// Give the goroutine a moment to enqueue before starting the next,
		// approximating "sequentially enqueued" for this test's purposes.
		time.Sleep(time.Millisecond)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		r := <-reqs[i]
		results[i] = r.data
	}

	writes := fc.recordedWrites()
	require.Len(t, writes, n)
	for i := 0; i < n; i++ {
		require.Equal(t, byte('0'+i%10), writes[i][2], "wire order mismatch at %d", i)
		require.Equal(t, byte('0'+i%10), results[i][2], "reply order mismatch at %d", i)
	}
}

func TestClientDisconnectSurfacesToWaiters(t *testing.T) {
	fc := newFakeController(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := NewClient(ctx, fc.addr(), WithQueueSize(4))

	// Make sure the client has connected before we yank the listener.
	frame := codec.BuildFrame(codec.MakePrefix(codec.TypeInput, 0), nil)
	_, err := c.Send(ctx, frame)
	require.NoError(t, err)

	fc.close()
	// Cancelling the client's run context is the most direct way to force
	// the serve loop to exit and exercise the disconnected-waiter path.
	cancel()

	_, err = c.Send(context.Background(), frame)
	require.Error(t, err)
}
