// Package main implements the tracker daemon: the DHT-replacement
// control plane that storage peers register with and gateways query
// for node discovery and chunk location.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hivechunk/core/internal/config"
	"github.com/hivechunk/core/internal/logging"
	"github.com/hivechunk/core/internal/peerdir"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logging.New("tracker")

	dir := peerdir.New(cfg.StaleTimeout)
	defer dir.Stop()

	dir.StartSweepLoop(cfg.StaleTimeout/2, func(evicted []string) {
		log.Infof("swept %d stale peers: %v", len(evicted), evicted)
	})

	limiter := peerdir.NewRateLimiter(peerdir.RateLimiterConfig{})
	srv := peerdir.NewServer(dir, limiter)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer listener.Close()

	httpServer := &http.Server{Handler: srv.Router()}

	log.Infof("tracker listening on %s (stale timeout %s)", listener.Addr(), cfg.StaleTimeout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-sigCh:
		log.Infof("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
	return nil
}
