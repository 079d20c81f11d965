package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// interruptContext is cancelled on the first SIGINT or SIGTERM, or when stop is called
func interruptContext(parent context.Context) (context.Context, func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM) // channel for interrupts from os

	doneCh := make(chan struct{})

	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-sigCh:
		case <-doneCh:
		}
		signal.Stop(sigCh)
		cancel()
	}()
	return ctx, func() { close(doneCh) }
}
