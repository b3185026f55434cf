package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"

	"github.com/hivechunk/core/pkg/chunker"
	"github.com/hivechunk/core/pkg/coreerr"
	"github.com/hivechunk/core/pkg/cryptochunk"
	"github.com/hivechunk/core/pkg/digest"
	"github.com/hivechunk/core/pkg/merkle"
	"github.com/hivechunk/core/pkg/por"
	"github.com/hivechunk/core/pkg/registry"
	"github.com/hivechunk/core/pkg/replication"
)

// Gateway is the upload/download orchestrator. It owns no network
// connections of its own; it drives a replication.Manager and a
// ChunkClient, and publishes completed uploads to a registry.Registry.
type Gateway struct {
	chunkSize uint32
	repl      *replication.Manager
	client    ChunkClient
	manifests ManifestStore
	reg       registry.Registry

	tombstoned map[string]bool
}

// New builds a Gateway. chunkSize is the plaintext split size used
// for every upload.
func New(chunkSize uint32, repl *replication.Manager, client ChunkClient, manifests ManifestStore, reg registry.Registry) *Gateway {
	return &Gateway{
		chunkSize:  chunkSize,
		repl:       repl,
		client:     client,
		manifests:  manifests,
		reg:        reg,
		tombstoned: make(map[string]bool),
	}
}

// UploadResult is returned by Upload: the published file-id and the
// encryption key the caller must retain to ever download the file
// again. The gateway never stores the key.
type UploadResult struct {
	FileID string
	Key    []byte
}

// Upload chunks, encrypts, and replicates data, then publishes its
// manifest. Per the no-partial-publication rule: if any chunk fails
// to reach the replication factor, Upload surfaces ReplicationFailed
// and publishes nothing — a file is either fully placed and
// published, or not published at all.
func (g *Gateway) Upload(ctx context.Context, filename, contentType string, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "cannot upload empty content")
	}

	key, err := cryptochunk.GenerateKey()
	if err != nil {
		return nil, err
	}

	plainChunks, err := chunker.Split(data, g.chunkSize)
	if err != nil {
		return nil, err
	}

	digests := make([]string, len(plainChunks))
	ciphertexts := make([][]byte, len(plainChunks))

	for i, c := range plainChunks {
		blob, err := cryptochunk.Encrypt(key, c.Data)
		if err != nil {
			return nil, err
		}
		ciphertexts[i] = blob
		digests[i] = digest.SHA256(blob)
	}

	for i, dig := range digests {
		if _, err := g.repl.Place(ctx, dig, ciphertexts[i]); err != nil {
			return nil, coreerr.Wrap(coreerr.ReplicationFailed, "failed to place chunk on any candidate peer", err).WithDigest(dig)
		}
		if _, meetsK, err := g.repl.Assess(ctx, dig); err == nil && !meetsK {
			return nil, coreerr.New(coreerr.ReplicationFailed, "chunk fell short of the replication factor").WithDigest(dig)
		}
	}

	tree, err := merkle.Build(digests)
	if err != nil {
		return nil, err
	}

	fileID, err := newFileID()
	if err != nil {
		return nil, err
	}

	m := Manifest{
		FileID:       fileID,
		Filename:     filename,
		ContentType:  contentType,
		Size:         uint64(len(data)),
		ChunkSize:    g.chunkSize,
		ChunkDigests: digests,
		MerkleRoot:   tree.Root(),
		CreatedAt:    time.Now().UTC(),
	}

	manifestDigest, err := g.manifests.Save(m)
	if err != nil {
		return nil, err
	}

	if err := g.reg.Publish(registry.Entry{
		FileID:     fileID,
		Manifest:   manifestDigest,
		MerkleRoot: tree.Root(),
	}); err != nil {
		return nil, err
	}

	return &UploadResult{FileID: fileID, Key: key}, nil
}

// Download reconstructs a previously uploaded file. It fails over to
// the next known holder of a chunk on transport failure, timeout, or
// digest mismatch; a key that fails to decrypt a chunk (after a
// digest match) is a fatal, surfaced DecryptionFailed — that can only
// mean the wrong key was supplied, not a bad peer.
func (g *Gateway) Download(ctx context.Context, fileID string, key []byte) ([]byte, Manifest, error) {
	m, err := g.loadManifest(fileID)
	if err != nil {
		return nil, Manifest{}, err
	}

	plainChunks := make([]chunker.Chunk, len(m.ChunkDigests))

	for i, dig := range m.ChunkDigests {
		blob, err := g.fetchWithFailover(ctx, dig)
		if err != nil {
			return nil, Manifest{}, err
		}

		plaintext, err := cryptochunk.Decrypt(key, blob)
		if err != nil {
			return nil, Manifest{}, err
		}

		plainChunks[i] = chunker.Chunk{Index: i, Data: plaintext}
	}

	data, err := chunker.Reassemble(plainChunks)
	if err != nil {
		return nil, Manifest{}, err
	}

	return data, m, nil
}

// fetchWithFailover retrieves the chunk for digest, trying each known
// holder in turn and never retrying one that already failed this call.
// If the tracker reports no holders at all, it falls back to probing
// every active peer directly: the tracker's chunk index can lag
// behind what peers actually hold, so an empty Locate result is not
// proof the chunk is gone.
func (g *Gateway) fetchWithFailover(ctx context.Context, dig string) ([]byte, error) {
	holders, err := g.client.Locate(ctx, dig)
	if err != nil {
		return nil, err
	}
	if len(holders) == 0 {
		holders, err = g.client.ActivePeers(ctx)
		if err != nil {
			return nil, err
		}
	}
	if len(holders) == 0 {
		return nil, coreerr.New(coreerr.Unretrievable, "no known holders for chunk").WithDigest(dig)
	}

	for _, peer := range holders {
		blob, err := g.client.FetchChunk(ctx, peer, dig)
		if err != nil {
			continue // transport/timeout failure: try the next holder
		}
		if digest.SHA256(blob) != dig {
			continue // digest mismatch: try the next holder, never surfaced
		}
		return blob, nil
	}

	return nil, coreerr.New(coreerr.Unretrievable, "no holder returned a valid copy of the chunk").WithDigest(dig)
}

// ChunkVerification is one chunk's audit result, as reported by Verify.
type ChunkVerification struct {
	Digest       string   `json:"digest"`
	ReplicaCount int      `json:"replica_count"`
	MeetsK       bool     `json:"meets_k"`
	Holders      []string `json:"holders"`
	ProofOK      bool     `json:"por_ok"`
}

// VerifyReport is the result of auditing every chunk of a file.
type VerifyReport struct {
	FileID string              `json:"file_id"`
	Chunks []ChunkVerification `json:"chunks"`
}

// Verify audits every chunk of fileID: its current replica count
// against the configured factor, and a liveness proof challenge
// against one of its holders.
func (g *Gateway) Verify(ctx context.Context, fileID string) (*VerifyReport, error) {
	m, err := g.loadManifest(fileID)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{FileID: fileID, Chunks: make([]ChunkVerification, len(m.ChunkDigests))}

	for i, dig := range m.ChunkDigests {
		count, meetsK, err := g.repl.Assess(ctx, dig)
		if err != nil {
			return nil, err
		}

		holders, err := g.client.Locate(ctx, dig)
		if err != nil {
			return nil, err
		}

		holderIDs := make([]string, len(holders))
		for j, h := range holders {
			holderIDs[j] = h.PeerID
		}

		proofOK := false
		if len(holders) > 0 {
			nonce := make([]byte, por.NonceSize)
			if _, err := rand.Read(nonce); err == nil {
				if response, err := g.client.Prove(ctx, holders[0], dig, nonce); err == nil {
					proofOK = por.AuditLiveness(response)
				}
			}
		}

		report.Chunks[i] = ChunkVerification{
			Digest:       dig,
			ReplicaCount: count,
			MeetsK:       meetsK,
			Holders:      holderIDs,
			ProofOK:      proofOK,
		}
	}

	return report, nil
}

// Delete tombstones fileID: subsequent Download/Verify/loadManifest
// calls report NotFound. The underlying registry entry is never
// physically removed — a ledger-backed registry is append-only by
// design — this only marks the file administratively gone.
func (g *Gateway) Delete(fileID string) error {
	if _, err := g.reg.Get(fileID); err != nil {
		return err
	}
	g.tombstoned[fileID] = true
	return nil
}

func (g *Gateway) loadManifest(fileID string) (Manifest, error) {
	if g.tombstoned[fileID] {
		return Manifest{}, coreerr.New(coreerr.NotFound, "file has been deleted").WithDigest(fileID)
	}

	entry, err := g.reg.Get(fileID)
	if err != nil {
		return Manifest{}, err
	}
	return g.manifests.Load(entry.Manifest)
}

func newFileID() (string, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", coreerr.Wrap(coreerr.InvalidInput, "failed to generate file-id", err)
	}
	return hex.EncodeToString(buf), nil
}
