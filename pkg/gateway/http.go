package gateway

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hivechunk/core/internal/metrics"
	"github.com/hivechunk/core/pkg/coreerr"
)

// Server exposes a Gateway over HTTP: POST /upload, GET
// /download/{file_id}, GET /files, GET /files/{file_id}/verify,
// DELETE /files/{file_id}, GET /health.
type Server struct {
	gw *Gateway
	k  int
}

// NewServer builds a Server bound to gw. k is surfaced in the upload
// response as the configured replication factor.
func NewServer(gw *Gateway, replicationFactor int) *Server {
	return &Server{gw: gw, k: replicationFactor}
}

// Router returns the configured mux.Router ready to serve.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/download/{file_id}", s.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	r.HandleFunc("/files/{file_id}/verify", s.handleVerify).Methods(http.MethodGet)
	r.HandleFunc("/files/{file_id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Use(metrics.Middleware("gateway"))
	return r
}

type uploadResponse struct {
	FileID            string   `json:"file_id"`
	Filename          string   `json:"filename"`
	EncryptionKey     string   `json:"encryption_key"`
	MerkleRoot        string   `json:"merkle_root"`
	ChunkCount        int      `json:"chunk_count"`
	ChunkDigests      []string `json:"chunk_digests"`
	ReplicationFactor int      `json:"replication_factor"`
	Message           string   `json:"message"`
}

// handleUpload reads the uploaded file (see readUploadedFile),
// uploads it, and returns the file-id and hex-encoded
// encryption key the caller must retain to ever download it again.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, filename, contentType, err := readUploadedFile(r)
	if err != nil {
		writeError(w, coreerr.New(coreerr.InvalidInput, err.Error()))
		return
	}

	result, err := s.gw.Upload(r.Context(), filename, contentType, data)
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := s.gw.loadManifest(result.FileID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		FileID:            result.FileID,
		Filename:          m.Filename,
		EncryptionKey:     hex.EncodeToString(result.Key),
		MerkleRoot:        m.MerkleRoot,
		ChunkCount:        len(m.ChunkDigests),
		ChunkDigests:      m.ChunkDigests,
		ReplicationFactor: s.k,
		Message:           "file uploaded and distributed successfully",
	})
}

// readUploadedFile accepts either a multipart/form-data body, taking
// its first part whatever that part's field name, or a raw request
// body, matching whichever content-type the client sent.
func readUploadedFile(r *http.Request) (data []byte, filename, contentType string, err error) {
	mediaType, params, parseErr := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if parseErr == nil && mediaType == "multipart/form-data" {
		mr := multipart.NewReader(r.Body, params["boundary"])
		part, perr := mr.NextPart()
		if perr != nil {
			return nil, "", "", fmt.Errorf("missing file part: %w", perr)
		}
		defer part.Close()

		body, rerr := io.ReadAll(part)
		if rerr != nil {
			return nil, "", "", fmt.Errorf("failed to read file part: %w", rerr)
		}
		return body, part.FileName(), part.Header.Get("Content-Type"), nil
	}

	body, rerr := io.ReadAll(r.Body)
	if rerr != nil {
		return nil, "", "", fmt.Errorf("failed to read request body: %w", rerr)
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.bin"
	}
	return body, name, r.Header.Get("Content-Type"), nil
}

// handleDownload streams the reassembled, decrypted file back to the
// caller. The hex-encoded encryption key returned by upload must be
// supplied as the "key" query parameter.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]

	keyHex := r.URL.Query().Get("key")
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		writeError(w, coreerr.New(coreerr.InvalidKey, "key query parameter must be hex-encoded"))
		return
	}

	data, m, err := s.gw.Download(r.Context(), fileID, key)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, m.Filename))
	w.Header().Set("X-File-Id", fileID)
	w.Header().Set("X-Chunk-Count", fmt.Sprintf("%d", len(m.ChunkDigests)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type fileSummary struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	MerkleRoot string `json:"merkle_root"`
	ChunkCount int    `json:"chunk_count"`
}

type fileListResponse struct {
	TotalFiles int           `json:"total_files"`
	Files      []fileSummary `json:"files"`
}

// handleListFiles enumerates every file currently published in the
// registry, skipping tombstoned entries.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	count, err := s.gw.reg.Count()
	if err != nil {
		writeError(w, err)
		return
	}

	files := make([]fileSummary, 0, count)
	for i := 0; i < count; i++ {
		fileID, err := s.gw.reg.IDByIndex(i)
		if err != nil {
			writeError(w, err)
			return
		}
		if s.gw.tombstoned[fileID] {
			continue
		}

		m, err := s.gw.loadManifest(fileID)
		if err != nil {
			continue
		}
		files = append(files, fileSummary{
			FileID:     fileID,
			Filename:   m.Filename,
			MerkleRoot: m.MerkleRoot,
			ChunkCount: len(m.ChunkDigests),
		})
	}

	writeJSON(w, http.StatusOK, fileListResponse{TotalFiles: len(files), Files: files})
}

// handleVerify runs a Proof-of-Retrievability audit over every chunk
// of a file and reports per-chunk replica counts and liveness proofs.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]

	report, err := s.gw.Verify(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleDelete tombstones a file. The underlying registry entry is
// never physically removed.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["file_id"]

	if err := s.gw.Delete(fileID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status             string `json:"status"`
	Service            string `json:"service"`
	ActiveStoragePeers int    `json:"active_storage_peers"`
	TotalFiles         int    `json:"total_files"`
}

// handleHealth reports liveness plus a cheap snapshot of how many
// storage peers and published files the gateway currently sees.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	peers, err := s.gw.client.ActivePeers(r.Context())
	activePeers := 0
	if err == nil {
		activePeers = len(peers)
	}

	totalFiles, err := s.gw.reg.Count()
	if err != nil {
		totalFiles = 0
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "ok",
		Service:            "hivechunk-gateway",
		ActiveStoragePeers: activePeers,
		TotalFiles:         totalFiles,
	})
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Digest  string `json:"digest,omitempty"`
	PeerID  string `json:"peer_id,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := coreerr.KindOf(err)
	status := statusForKind(kind)

	body := errorBody{Kind: string(kind), Message: err.Error()}
	if ce, ok := err.(*coreerr.Error); ok {
		body.Digest = ce.Digest
		body.PeerID = ce.PeerID
	}

	writeJSON(w, status, body)
}

func statusForKind(kind coreerr.Kind) int {
	switch kind {
	case coreerr.InvalidInput, coreerr.InvalidKey:
		return http.StatusBadRequest
	case coreerr.DecryptionFailed:
		return http.StatusUnprocessableEntity
	case coreerr.NotFound, coreerr.UnknownPeer:
		return http.StatusNotFound
	case coreerr.NoReplicas, coreerr.ReplicationFailed, coreerr.Unretrievable:
		return http.StatusServiceUnavailable
	case coreerr.Timeout:
		return http.StatusGatewayTimeout
	case coreerr.TransportError:
		return http.StatusBadGateway
	case coreerr.DigestMismatch, coreerr.IntegrityFailed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
