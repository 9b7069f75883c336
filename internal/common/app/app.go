package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsbench/tsbench/internal/common/logging"
)

// CreateContextWithShutdown returns a context that will report done when a SIGINT or SIGTERM is received.
// A second signal exits the process immediately.
func CreateContextWithShutdown() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-c:
			logging.Warnf("Received %s, stopping workers after their current operation", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		sig := <-c
		logging.Errorf("Received %s again, exiting", sig)
		os.Exit(1)
	}()
	return ctx
}
