package gateway

import (
	"bytes"
	"context"
	"testing"

	"github.com/hivechunk/core/pkg/coreerr"
	"github.com/hivechunk/core/pkg/digest"
	"github.com/hivechunk/core/pkg/por"
	"github.com/hivechunk/core/pkg/registry"
	"github.com/hivechunk/core/pkg/replication"
)

// fakeNetwork is an in-memory ChunkClient + replication.StorageClient
// standing in for a real peer network.
type fakeNetwork struct {
	peers     []replication.Candidate
	blobs     map[string]map[string][]byte // peer-id -> digest -> blob
	holders   map[string][]replication.Candidate
	downPeers map[string]bool
}

func newFakeNetwork(peerIDs ...string) *fakeNetwork {
	n := &fakeNetwork{
		blobs:     make(map[string]map[string][]byte),
		holders:   make(map[string][]replication.Candidate),
		downPeers: make(map[string]bool),
	}
	for _, id := range peerIDs {
		n.peers = append(n.peers, replication.Candidate{PeerID: id, Endpoint: "http://" + id})
		n.blobs[id] = make(map[string][]byte)
	}
	return n
}

func (n *fakeNetwork) ActivePeers(ctx context.Context) ([]replication.Candidate, error) {
	return n.peers, nil
}

// LookupNearest has no distance model in this fake; it reports no
// nearest candidates so the replication Manager falls back to
// ActivePeers, same as every test in this file expects.
func (n *fakeNetwork) LookupNearest(ctx context.Context, digest string, k int) ([]replication.Candidate, error) {
	return nil, nil
}

func (n *fakeNetwork) StoreChunk(ctx context.Context, peer replication.Candidate, digest string, blob []byte) error {
	if n.downPeers[peer.PeerID] {
		return coreerr.New(coreerr.TransportError, "peer unreachable").WithPeer(peer.PeerID)
	}
	n.blobs[peer.PeerID][digest] = blob
	return nil
}

func (n *fakeNetwork) Announce(ctx context.Context, peer replication.Candidate, digest string) error {
	n.holders[digest] = append(n.holders[digest], peer)
	return nil
}

func (n *fakeNetwork) Locate(ctx context.Context, digest string) ([]replication.Candidate, error) {
	return n.holders[digest], nil
}

func (n *fakeNetwork) FetchChunk(ctx context.Context, peer replication.Candidate, digest string) ([]byte, error) {
	if n.downPeers[peer.PeerID] {
		return nil, coreerr.New(coreerr.TransportError, "peer unreachable").WithPeer(peer.PeerID)
	}
	blob, ok := n.blobs[peer.PeerID][digest]
	if !ok {
		return nil, coreerr.New(coreerr.NotFound, "chunk not present on peer").WithPeer(peer.PeerID)
	}
	return blob, nil
}

func (n *fakeNetwork) Prove(ctx context.Context, peer replication.Candidate, digest string, nonce []byte) (string, error) {
	blob, ok := n.blobs[peer.PeerID][digest]
	if !ok {
		return "", coreerr.New(coreerr.NotFound, "chunk not present on peer")
	}
	return por.Prove(blob, nonce), nil
}

func newTestGateway(chunkSize uint32, k int, peerIDs ...string) (*Gateway, *fakeNetwork) {
	net := newFakeNetwork(peerIDs...)
	repl := replication.NewManager(net, k)
	manifests := NewMemoryManifestStore()
	reg := registry.NewMemoryRegistry()
	return New(chunkSize, repl, net, manifests, reg), net
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	gw, _ := newTestGateway(16, 2, "p1", "p2", "p3")

	data := bytes.Repeat([]byte{0x5A}, 100)
	result, err := gw.Upload(context.Background(), "report.bin", "application/octet-stream", data)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	got, manifest, err := gw.Download(context.Background(), result.FileID, result.Key)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
	}
	if manifest.Filename != "report.bin" {
		t.Fatalf("manifest filename = %s, want report.bin", manifest.Filename)
	}
}

func TestUploadFailsReplicationFailedWithoutPublishing(t *testing.T) {
	gw, net := newTestGateway(16, 3, "p1", "p2")
	net.downPeers["p1"] = true
	net.downPeers["p2"] = true

	_, err := gw.Upload(context.Background(), "f.bin", "", []byte("some data to chunk up"))
	if coreerr.KindOf(err) != coreerr.ReplicationFailed {
		t.Fatalf("expected ReplicationFailed, got %v", err)
	}
	if count, _ := gw.reg.Count(); count != 0 {
		t.Fatalf("expected nothing published, registry holds %d entries", count)
	}
}

func TestDownloadFailsOverToNextHolder(t *testing.T) {
	gw, net := newTestGateway(64, 2, "p1", "p2")

	data := []byte("small file that fits in one chunk")
	result, err := gw.Upload(context.Background(), "f.bin", "", data)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	net.downPeers["p1"] = true

	got, _, err := gw.Download(context.Background(), result.FileID, result.Key)
	if err != nil {
		t.Fatalf("Download should have failed over to p2, got error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("download mismatch after failover")
	}
}

func TestDownloadFallsBackToActivePeersWhenTrackerHasNoHolders(t *testing.T) {
	gw, net := newTestGateway(64, 1, "p1", "p2")

	data := []byte("file stored while the tracker looks empty")
	result, err := gw.Upload(context.Background(), "f.bin", "", data)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Simulate the tracker's chunk index losing every announcement
	// for this file while the blobs remain on their peers.
	net.holders = make(map[string][]replication.Candidate)

	got, _, err := gw.Download(context.Background(), result.FileID, result.Key)
	if err != nil {
		t.Fatalf("expected download to fall back to active peers, got error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("download mismatch after active-peer fallback")
	}
}

func TestDownloadWrongKeyFailsWithDecryptionFailed(t *testing.T) {
	gw, _ := newTestGateway(64, 2, "p1", "p2")

	data := []byte("confidential content")
	result, err := gw.Upload(context.Background(), "f.bin", "", data)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	wrongKey := bytes.Repeat([]byte{0x01}, 32)
	_, _, err = gw.Download(context.Background(), result.FileID, wrongKey)
	if coreerr.KindOf(err) != coreerr.DecryptionFailed {
		t.Fatalf("expected DecryptionFailed with wrong key, got %v", err)
	}
}

func TestVerifyReportsReplicaCounts(t *testing.T) {
	gw, _ := newTestGateway(64, 2, "p1", "p2", "p3")

	data := []byte("content to verify")
	result, err := gw.Upload(context.Background(), "f.bin", "", data)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	report, err := gw.Verify(context.Background(), result.FileID)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(report.Chunks) != 1 {
		t.Fatalf("expected 1 chunk in report, got %d", len(report.Chunks))
	}
	cv := report.Chunks[0]
	if !cv.MeetsK || cv.ReplicaCount < 2 {
		t.Fatalf("expected replication to meet k, got %+v", cv)
	}
	if !cv.ProofOK {
		t.Fatalf("expected proof-of-retrievability audit to pass")
	}
}

func TestDeleteTombstonesFile(t *testing.T) {
	gw, _ := newTestGateway(64, 2, "p1", "p2")

	data := []byte("to be deleted")
	result, err := gw.Upload(context.Background(), "f.bin", "", data)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if err := gw.Delete(result.FileID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, _, err := gw.Download(context.Background(), result.FileID, result.Key); coreerr.KindOf(err) != coreerr.NotFound {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestDeleteMissingFileFails(t *testing.T) {
	gw, _ := newTestGateway(64, 2, "p1")
	if err := gw.Delete("never-existed"); coreerr.KindOf(err) != coreerr.NotFound {
		t.Fatalf("expected NotFound deleting a missing file, got %v", err)
	}
}

func TestUploadRejectsEmptyContent(t *testing.T) {
	gw, _ := newTestGateway(64, 1, "p1")
	_, err := gw.Upload(context.Background(), "empty.bin", "", nil)
	if coreerr.KindOf(err) != coreerr.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestManifestDigestsAreContentAddressed(t *testing.T) {
	gw, net := newTestGateway(64, 1, "p1")

	data := []byte("addressable content")
	result, err := gw.Upload(context.Background(), "f.bin", "", data)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	for dig := range net.blobs["p1"] {
		blob := net.blobs["p1"][dig]
		if digest.SHA256(blob) != dig {
			t.Fatalf("stored blob does not hash to its own key")
		}
	}
	_ = result
}
