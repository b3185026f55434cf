// Package main implements the gateway daemon: the HTTP entry point
// clients upload to and download from, orchestrating chunking,
// encryption, replication, and publication over a tracker and the
// storage peers it discovers.
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
	"github.com/hivechunk/core/internal/netclient"
	"github.com/hivechunk/core/pkg/gateway"
	"github.com/hivechunk/core/pkg/registry"
	"github.com/hivechunk/core/pkg/replication"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logging.New("gateway")

	if cfg.TrackerURL == "" {
		return fmt.Errorf("TRACKER_URL must be set")
	}

	client := netclient.New(cfg.TrackerURL, 30*time.Second)
	repl := replication.NewManager(client, cfg.ReplicationFactor)
	manifests := gateway.NewMemoryManifestStore()

	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}

	gw := gateway.New(cfg.ChunkSize, repl, client, manifests, reg)
	srv := gateway.NewServer(gw, cfg.ReplicationFactor)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer listener.Close()

	httpServer := &http.Server{Handler: srv.Router()}

	log.Infof("gateway listening on %s (tracker=%s, k=%d, chunk_size=%d)",
		listener.Addr(), cfg.TrackerURL, cfg.ReplicationFactor, cfg.ChunkSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(listener) }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		log.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

// openRegistry picks the ledger-backed registry when RegistryURL
// names a local file path, falling back to a pure in-memory registry
// for development when it is unset.
func openRegistry(cfg *config.Config) (registry.Registry, error) {
	if cfg.RegistryURL == "" {
		return registry.NewMemoryRegistry(), nil
	}
	return registry.OpenLedger(cfg.RegistryURL)
}
