package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals cancels ctx on the first SIGINT or SIGTERM. A second signal
// exits the process immediately with status 1.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
			signal.Stop(ch)
			return
		}
		<-ch
		os.Exit(1)
	}()

	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
