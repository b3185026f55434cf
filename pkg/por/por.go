// Package por implements a Proof-of-Retrievability responder: a
// lightweight possession proof computed as BLAKE3(blob || nonce),
// used by a verifier to challenge a storage peer without transferring
// the whole chunk back. The proof hash is not the content-addressing
// digest (that stays SHA-256 everywhere else) — it is a fast,
// nonce-mixing path that runs on every audit, so BLAKE3's speed
// advantage over SHA-256 is the reason it backs this one primitive.
// Two audit modes build on it: "audit replica" compares against a
// verifier-held copy of the blob, "audit liveness" only checks that a
// well-formed proof arrived within the caller's deadline.
package por

import (
	"encoding/hex"

	"github.com/hivechunk/core/pkg/chunkstore"
	"github.com/hivechunk/core/pkg/coreerr"
	"github.com/hivechunk/core/pkg/digest"
)

// NonceSize is the expected byte length of a challenge nonce.
const NonceSize = 16

// Prove computes the proof response for blob under nonce.
func Prove(blob, nonce []byte) string {
	mixed := make([]byte, 0, len(blob)+len(nonce))
	mixed = append(mixed, blob...)
	mixed = append(mixed, nonce...)
	sum := digest.BLAKE3Bytes(mixed)
	return hex.EncodeToString(sum[:])
}

// Responder answers PoR challenges against a peer's local chunk store.
type Responder struct {
	store *chunkstore.Store
}

// NewResponder returns a Responder backed by store.
func NewResponder(store *chunkstore.Store) *Responder {
	return &Responder{store: store}
}

// Respond loads the blob for digest from local storage and returns
// its proof response for nonce. NotFound propagates from the store
// unchanged: a peer with no copy of the chunk cannot answer.
func (r *Responder) Respond(digest string, nonce []byte) (string, error) {
	if len(nonce) == 0 {
		return "", coreerr.New(coreerr.InvalidInput, "nonce must not be empty")
	}
	blob, err := r.store.Get(digest)
	if err != nil {
		return "", err
	}
	return Prove(blob, nonce), nil
}

// AuditReplica verifies a proof response against a verifier-held copy
// of the blob: the strongest audit mode, since the verifier can
// recompute the expected proof independently.
func AuditReplica(blob, nonce []byte, response string) bool {
	return Prove(blob, nonce) == response
}

// AuditLiveness accepts any well-formed, on-time response as evidence
// of possession when the verifier holds no copy of the blob to check
// against. "Well-formed" means a 64-character lowercase hex digest;
// "on-time" is enforced by the caller's context deadline, not here.
func AuditLiveness(response string) bool {
	if len(response) != digest.Size*2 {
		return false
	}
	for _, r := range response {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
