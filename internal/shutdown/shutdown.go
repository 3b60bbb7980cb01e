// Package shutdown wires SIGINT/SIGTERM to a context cancellation, the
// same signal-then-cancel shape the CLI's start command uses to trigger
// graceful shutdown.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Context returns a context cancelled on the first SIGINT or SIGTERM,
// and a stop function that stops listening for signals (call it once
// the context is no longer needed, typically via defer).
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	stop := func() {
		signal.Stop(sigChan)
		cancel()
	}
	return ctx, stop
}
