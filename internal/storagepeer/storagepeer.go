// Package storagepeer implements the storage peer's HTTP surface: a
// thin REST shell over a content-addressed chunk store and its PoR
// responder, with the base64-in-JSON body traded for a raw
// application/octet-stream request/response, so chunk bytes travel
// over the wire without a text encoding layer in between.
package storagepeer

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hivechunk/core/internal/metrics"
	"github.com/hivechunk/core/pkg/chunkstore"
	"github.com/hivechunk/core/pkg/coreerr"
	"github.com/hivechunk/core/pkg/digest"
	"github.com/hivechunk/core/pkg/por"
)

// Server exposes a chunk store and its PoR responder over HTTP:
// POST/GET/DELETE /chunks/{digest}, POST /chunks/{digest}/prove,
// GET /chunks, GET /health.
type Server struct {
	peerID    string
	store     *chunkstore.Store
	responder *por.Responder
	onStore   func(dig string) // optional: announce to the tracker after a successful store
}

// NewServer builds a Server backed by store. onStore, if non-nil, is
// invoked after a successful Put of a chunk the store did not already
// hold, so the caller can announce the new chunk to the tracker; a
// failure to announce does not undo the local store.
func NewServer(peerID string, store *chunkstore.Store, onStore func(dig string)) *Server {
	return &Server{
		peerID:    peerID,
		store:     store,
		responder: por.NewResponder(store),
		onStore:   onStore,
	}
}

// Router returns the configured mux.Router ready to serve.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/chunks", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/chunks/{digest}", s.handleStore).Methods(http.MethodPost)
	r.HandleFunc("/chunks/{digest}", s.handleRetrieve).Methods(http.MethodGet)
	r.HandleFunc("/chunks/{digest}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/chunks/{digest}/prove", s.handleProve).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Use(metrics.Middleware("storagepeer"))
	return r
}

// handleStore stores the raw request body under the digest named in
// the path, verifying it actually hashes to that digest before
// accepting it.
func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	dig := mux.Vars(r)["digest"]

	blob, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, coreerr.New(coreerr.InvalidInput, "failed to read request body"))
		return
	}

	if digest.SHA256(blob) != dig {
		writeError(w, coreerr.New(coreerr.DigestMismatch, "uploaded data does not hash to the named digest").WithDigest(dig))
		return
	}

	alreadyExists := s.store.Has(dig)
	if err := s.store.Put(dig, blob); err != nil {
		writeError(w, err)
		return
	}

	if !alreadyExists && s.onStore != nil {
		s.onStore(dig)
	}

	status := "stored"
	if alreadyExists {
		status = "already_exists"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"digest":     dig,
		"size_bytes": len(blob),
		"peer_id":    s.peerID,
	})
}

// handleRetrieve streams the raw chunk back as application/octet-stream.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	dig := mux.Vars(r)["digest"]

	blob, err := s.store.Get(dig)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Chunk-Digest", dig)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	dig := mux.Vars(r)["digest"]

	if !s.store.Has(dig) {
		writeError(w, coreerr.New(coreerr.NotFound, "chunk not found").WithDigest(dig))
		return
	}
	if err := s.store.Delete(dig); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "digest": dig})
}

type proveRequest struct {
	Nonce string `json:"nonce"` // hex-encoded challenge nonce
}

func (s *Server) handleProve(w http.ResponseWriter, r *http.Request) {
	dig := mux.Vars(r)["digest"]

	var req proveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, coreerr.New(coreerr.InvalidInput, "malformed request body"))
		return
	}

	nonce, err := hex.DecodeString(req.Nonce)
	if err != nil {
		writeError(w, coreerr.New(coreerr.InvalidInput, "nonce must be hex-encoded"))
		return
	}

	proof, err := s.responder.Respond(dig, nonce)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"digest":  dig,
		"nonce":   req.Nonce,
		"proof":   proof,
		"peer_id": s.peerID,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	digests, err := s.store.List()
	if err != nil {
		writeError(w, err)
		return
	}

	stats := s.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"peer_id":     s.peerID,
		"chunks":      digests,
		"total_count": stats.ChunkCount,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"service":       "hivechunk-storage-peer",
		"peer_id":       s.peerID,
		"stored_chunks": stats.ChunkCount,
	})
}
