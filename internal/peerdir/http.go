package peerdir

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hivechunk/core/internal/metrics"
	"github.com/hivechunk/core/pkg/coreerr"
)

// Server exposes a Directory over HTTP: the tracker's control plane.
// Routes mirror the original node-registration/heartbeat/chunk-
// location API: POST /nodes/register, POST /nodes/heartbeat, GET
// /nodes, GET /nodes/closest, POST /chunks/announce, GET
// /chunks/{digest}/locations, GET /health.
type Server struct {
	dir     *Directory
	limiter *RateLimiter
}

// NewServer builds a tracker Server bound to dir. limiter may be nil
// to disable rate limiting.
func NewServer(dir *Directory, limiter *RateLimiter) *Server {
	return &Server{dir: dir, limiter: limiter}
}

// Router returns the configured mux.Router ready to serve.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/nodes/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/nodes/heartbeat", s.handleHeartbeat).Methods(http.MethodPost)
	r.HandleFunc("/nodes", s.handleListNodes).Methods(http.MethodGet)
	r.HandleFunc("/nodes/closest", s.handleClosest).Methods(http.MethodGet)
	r.HandleFunc("/chunks/announce", s.handleAnnounce).Methods(http.MethodPost)
	r.HandleFunc("/chunks/{digest}/locations", s.handleLocations).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.Use(metrics.Middleware("tracker"))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}
	return r
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, coreerr.New(coreerr.InvalidInput, "malformed request body"))
		return
	}

	p, err := s.dir.Register(req.PeerID, req.Endpoint)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RegisterResponse{
		PeerID:   p.PeerID,
		State:    p.State.String(),
		LastSeen: p.LastSeen,
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, coreerr.New(coreerr.InvalidInput, "malformed request body"))
		return
	}

	if err := s.dir.Heartbeat(req.PeerID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "peer_id": req.PeerID})
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NodesResponse{Peers: PeerViews(s.dir.ActivePeers())})
}

func (s *Server) handleClosest(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target_hash")
	if target == "" {
		writeError(w, coreerr.New(coreerr.InvalidInput, "target_hash query parameter is required"))
		return
	}

	k := 3
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			writeError(w, coreerr.New(coreerr.InvalidInput, "k must be a positive integer"))
			return
		}
		k = parsed
	}

	nearest := s.dir.LookupNearest(NewNodeID(target), k)
	writeJSON(w, http.StatusOK, ClosestResponse{Peers: PeerViews(nearest)})
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req AnnounceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, coreerr.New(coreerr.InvalidInput, "malformed request body"))
		return
	}

	if err := s.dir.Announce(req.PeerID, req.Digest); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"peer_id": req.PeerID,
		"digest":  req.Digest,
	})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	digest := mux.Vars(r)["digest"]
	writeJSON(w, http.StatusOK, LocationsResponse{
		Digest: digest,
		Peers:  PeerViews(s.dir.Locate(digest)),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "hivechunk-tracker",
		"active_nodes":   len(s.dir.ActivePeers()),
		"tracked_chunks": s.dir.ChunkCount(),
	})
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	PeerID  string `json:"peer_id,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := coreerr.KindOf(err)
	status := statusForKind(kind)

	body := errorBody{Kind: string(kind), Message: err.Error()}
	if ce, ok := err.(*coreerr.Error); ok {
		body.PeerID = ce.PeerID
	}

	writeJSON(w, status, body)
}

func statusForKind(kind coreerr.Kind) int {
	switch kind {
	case coreerr.InvalidInput:
		return http.StatusBadRequest
	case coreerr.UnknownPeer, coreerr.NotFound:
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
