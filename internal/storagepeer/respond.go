package storagepeer

import (
	"encoding/json"
	"net/http"

	"github.com/hivechunk/core/pkg/coreerr"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Digest  string `json:"digest,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := coreerr.KindOf(err)
	status := statusForKind(kind)

	body := errorBody{Kind: string(kind), Message: err.Error()}
	if ce, ok := err.(*coreerr.Error); ok {
		body.Digest = ce.Digest
	}

	writeJSON(w, status, body)
}

func statusForKind(kind coreerr.Kind) int {
	switch kind {
	case coreerr.InvalidInput:
		return http.StatusBadRequest
	case coreerr.DigestMismatch:
		return http.StatusConflict
	case coreerr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
