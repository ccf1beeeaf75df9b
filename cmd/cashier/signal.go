package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cashier "github.com/mattkeenan/cashier/pkg"
)

// setupSignalContext returns a context that is cancelled when SIGINT or
// SIGTERM arrives. The returned stop function releases the signal handler.
func setupSignalContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			cashier.Logger().Sugar().Warnf("received signal %v, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
