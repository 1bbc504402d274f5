package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"itemset-builder/internal/logger"
)

// setupSignalHandler returns a context cancelled on SIGTERM or SIGINT.
// A second signal forces exit.
func setupSignalHandler(parent context.Context, log *logger.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigCh:
			log.Warn("[Signal] Received signal, initiating graceful shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			log.Error("[Signal] Received second signal, forcing exit", "signal", sig.String())
			log.Sync()
			os.Exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}
}
