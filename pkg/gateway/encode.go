package gateway

import (
	"encoding/json"

	"github.com/hivechunk/core/pkg/coreerr"
)

// encodeManifest produces the deterministic byte encoding a
// Manifest's own content digest is computed over. JSON field order
// follows struct field order, which is fixed, so the same Manifest
// value always encodes to the same bytes.
func encodeManifest(m Manifest) ([]byte, error) {
	blob, err := json.Marshal(m)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidInput, "failed to encode manifest", err)
	}
	return blob, nil
}
