// Package main implements the storage peer daemon: holds encrypted
// chunks on local disk, answers retrieval and PoR challenges, and
// registers itself with a tracker for discovery.
package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
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
	"github.com/hivechunk/core/internal/storagepeer"
	"github.com/hivechunk/core/pkg/chunkstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logging.New("storagepeer")

	peerID, err := peerIDFromDataDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to establish peer-id: %w", err)
	}

	store, err := chunkstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open chunk store at %s: %w", cfg.DataDir, err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer listener.Close()

	endpoint := fmt.Sprintf("http://%s", listener.Addr())

	var heartbeat *peerdir.HeartbeatClient
	if cfg.TrackerURL != "" {
		if err := registerWithTracker(cfg.TrackerURL, peerID, endpoint); err != nil {
			log.Warnf("initial registration with tracker failed: %v", err)
		}
		heartbeat = peerdir.NewHeartbeatClient(cfg.TrackerURL, peerID, endpoint)
	}

	announce := func(dig string) {
		if cfg.TrackerURL == "" {
			return
		}
		if err := announceChunk(cfg.TrackerURL, peerID, dig); err != nil {
			log.Warnf("failed to announce chunk %s: %v", dig, err)
		}
	}

	srv := storagepeer.NewServer(peerID, store, announce)
	httpServer := &http.Server{Handler: srv.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if heartbeat != nil {
		heartbeat.Start(ctx, 15*time.Second, func(err error) {
			log.Warnf("heartbeat failed: %v", err)
		})
		defer heartbeat.Stop()
	}

	log.Infof("storage peer %s listening on %s", peerID, listener.Addr())

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

// peerIDFromDataDir derives a stable peer-id for this process: a
// random 16-byte value generated once and cached under the data
// directory, so restarts keep the same identity the tracker and
// other peers already know.
func peerIDFromDataDir(dataDir string) (string, error) {
	path := dataDir + "/.peer_id"

	if data, err := os.ReadFile(path); err == nil {
		return string(bytes.TrimSpace(data)), nil
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", err
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := hex.EncodeToString(buf)

	if err := os.WriteFile(path, []byte(id), 0600); err != nil {
		return "", err
	}
	return id, nil
}

func registerWithTracker(trackerURL, peerID, endpoint string) error {
	body, _ := json.Marshal(map[string]string{"peer_id": peerID, "endpoint": endpoint})
	resp, err := http.Post(trackerURL+"/nodes/register", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}
	return nil
}

func announceChunk(trackerURL, peerID, digest string) error {
	body, _ := json.Marshal(map[string]string{"peer_id": peerID, "digest": digest})
	resp, err := http.Post(trackerURL+"/chunks/announce", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}
	return nil
}
