package gateway

import (
	"context"

	"github.com/hivechunk/core/pkg/replication"
)

// ChunkClient is everything the Gateway needs from the peer network
// beyond placement: fetching a chunk back, and challenging a peer for
// proof of possession. StoreChunk/ActivePeers/Locate/Announce are
// inherited from replication.StorageClient so a single concrete
// implementation backs both the Replication Manager and the Gateway.
type ChunkClient interface {
	replication.StorageClient

	// FetchChunk retrieves the raw (still-encrypted) blob for digest
	// from peer. Transport failures and timeouts are expected to
	// happen against any one peer; the Gateway fails over to the
	// next holder rather than treating them as fatal.
	FetchChunk(ctx context.Context, peer replication.Candidate, digest string) ([]byte, error)

	// Prove challenges peer to prove possession of digest under
	// nonce, returning its proof response.
	Prove(ctx context.Context, peer replication.Candidate, digest string, nonce []byte) (string, error)
}
