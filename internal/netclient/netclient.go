// Package netclient is the gateway's network-facing implementation of
// replication.StorageClient and gateway.ChunkClient: it speaks HTTP
// to the tracker (node directory) and to storage peers (chunk store),
// keeping every network call behind those two interfaces so a real
// transport can be swapped for a fake one in tests.
package netclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hivechunk/core/pkg/coreerr"
	"github.com/hivechunk/core/pkg/replication"
)

// Client talks to one tracker and any number of storage peers over
// plain HTTP. It implements both replication.StorageClient (used by
// the Replication Manager) and gateway.ChunkClient (used by the
// Gateway Orchestrator for fetch/prove).
type Client struct {
	trackerURL string
	http       *http.Client
}

// New builds a Client against trackerURL with the given per-request timeout.
func New(trackerURL string, timeout time.Duration) *Client {
	return &Client{
		trackerURL: trackerURL,
		http:       &http.Client{Timeout: timeout},
	}
}

type peerView struct {
	PeerID   string `json:"peer_id"`
	Endpoint string `json:"endpoint"`
	State    string `json:"state"`
}

// ActivePeers asks the tracker for every peer it currently considers live.
func (c *Client) ActivePeers(ctx context.Context) ([]replication.Candidate, error) {
	var body struct {
		Peers []peerView `json:"peers"`
	}
	if err := c.getJSON(ctx, c.trackerURL+"/nodes", &body); err != nil {
		return nil, err
	}
	return toCandidates(body.Peers), nil
}

// LookupNearest asks the tracker for up to k Live peers ordered by
// ascending XOR distance to digest.
func (c *Client) LookupNearest(ctx context.Context, digest string, k int) ([]replication.Candidate, error) {
	var body struct {
		Peers []peerView `json:"peers"`
	}
	url := fmt.Sprintf("%s/nodes/closest?target_hash=%s&k=%d", c.trackerURL, digest, k)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	return toCandidates(body.Peers), nil
}

// Locate asks the tracker which peers hold digest.
func (c *Client) Locate(ctx context.Context, digest string) ([]replication.Candidate, error) {
	var body struct {
		Peers []peerView `json:"peers"`
	}
	url := fmt.Sprintf("%s/chunks/%s/locations", c.trackerURL, digest)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	return toCandidates(body.Peers), nil
}

// Announce tells the tracker that peer now holds digest.
func (c *Client) Announce(ctx context.Context, peer replication.Candidate, digest string) error {
	reqBody, _ := json.Marshal(map[string]string{"peer_id": peer.PeerID, "digest": digest})
	return c.postJSON(ctx, c.trackerURL+"/chunks/announce", reqBody, nil)
}

// StoreChunk uploads blob to peer's own storage endpoint.
func (c *Client) StoreChunk(ctx context.Context, peer replication.Candidate, digest string, blob []byte) error {
	url := fmt.Sprintf("%s/chunks/%s", peer.Endpoint, digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(blob))
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, "failed to build store request", err).WithPeer(peer.PeerID)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportErr(err, peer.PeerID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return coreerr.New(coreerr.TransportError, fmt.Sprintf("store returned status %d", resp.StatusCode)).WithPeer(peer.PeerID).WithDigest(digest)
	}
	return nil
}

// FetchChunk retrieves the raw blob for digest from peer.
func (c *Client) FetchChunk(ctx context.Context, peer replication.Candidate, digest string) ([]byte, error) {
	url := fmt.Sprintf("%s/chunks/%s", peer.Endpoint, digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, "failed to build fetch request", err).WithPeer(peer.PeerID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err, peer.PeerID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, coreerr.New(coreerr.NotFound, "chunk not present on peer").WithPeer(peer.PeerID).WithDigest(digest)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, coreerr.New(coreerr.TransportError, fmt.Sprintf("fetch returned status %d", resp.StatusCode)).WithPeer(peer.PeerID).WithDigest(digest)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, "failed to read fetch response", err).WithPeer(peer.PeerID)
	}
	return blob, nil
}

// Prove challenges peer to prove possession of digest under nonce.
func (c *Client) Prove(ctx context.Context, peer replication.Candidate, digest string, nonce []byte) (string, error) {
	url := fmt.Sprintf("%s/chunks/%s/prove", peer.Endpoint, digest)
	reqBody, _ := json.Marshal(map[string]string{"nonce": hex.EncodeToString(nonce)})

	var body struct {
		Proof string `json:"proof"`
	}
	if err := c.postJSON(ctx, url, reqBody, &body); err != nil {
		return "", err
	}
	return body.Proof, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, "failed to build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportErr(err, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return coreerr.New(coreerr.TransportError, fmt.Sprintf("request to %s returned status %d", url, resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportErr(err, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return coreerr.New(coreerr.TransportError, fmt.Sprintf("request to %s returned status %d", url, resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func classifyTransportErr(err error, peerID string) error {
	kind := coreerr.TransportError
	if errors.Is(err, context.DeadlineExceeded) {
		kind = coreerr.Timeout
	}

	e := coreerr.Wrap(kind, "request failed", err)
	if peerID != "" {
		e = e.WithPeer(peerID)
	}
	return e
}

func toCandidates(peers []peerView) []replication.Candidate {
	out := make([]replication.Candidate, 0, len(peers))
	for _, p := range peers {
		if p.State != "" && p.State != "live" {
			continue
		}
		out = append(out, replication.Candidate{PeerID: p.PeerID, Endpoint: p.Endpoint})
	}
	return out
}
