package peerdir

import "time"

// The types below are the JSON wire bodies for the tracker's
// control-plane HTTP API. They replace the signed CBOR presence/
// handle/provide records this package used to exchange over a
// custom frame protocol: the tracker's contract is plain JSON over
// HTTP, so these are just structs with json tags, not signed records.

// RegisterRequest is the body of POST /nodes/register.
type RegisterRequest struct {
	PeerID   string `json:"peer_id"`
	Endpoint string `json:"endpoint"`
}

// RegisterResponse is the response to POST /nodes/register.
type RegisterResponse struct {
	PeerID   string    `json:"peer_id"`
	State    string    `json:"state"`
	LastSeen time.Time `json:"last_seen"`
}

// HeartbeatRequest is the body of POST /nodes/heartbeat.
type HeartbeatRequest struct {
	PeerID string `json:"peer_id"`
}

// AnnounceRequest is the body of POST /chunks/announce.
type AnnounceRequest struct {
	PeerID string `json:"peer_id"`
	Digest string `json:"digest"`
}

// PeerView is the JSON projection of a Peer returned by the tracker's
// read endpoints. It deliberately omits internal-only fields (the
// XOR keyspace position is an implementation detail, not part of the
// public contract).
type PeerView struct {
	PeerID   string    `json:"peer_id"`
	Endpoint string    `json:"endpoint"`
	State    string    `json:"state"`
	LastSeen time.Time `json:"last_seen"`
}

func toPeerView(p *Peer) PeerView {
	return PeerView{
		PeerID:   p.PeerID,
		Endpoint: p.Endpoint,
		State:    p.State.String(),
		LastSeen: p.LastSeen,
	}
}

// NodesResponse is the body of GET /nodes.
type NodesResponse struct {
	Peers []PeerView `json:"peers"`
}

// ClosestRequest describes a nearest-peers lookup. GET /nodes/closest
// takes the same two values as the target_hash and k query
// parameters; it reads no request body.
type ClosestRequest struct {
	TargetHash string `json:"target_hash"` // arbitrary key, hashed the same way as a peer-id
	Count      int    `json:"count"`
}

// ClosestResponse is the response to GET /nodes/closest.
type ClosestResponse struct {
	Peers []PeerView `json:"peers"`
}

// LocationsResponse is the response to GET /chunks/{digest}/locations.
type LocationsResponse struct {
	Digest string     `json:"digest"`
	Peers  []PeerView `json:"peers"`
}

// PeerViews converts a slice of Peer to their JSON projection.
func PeerViews(peers []*Peer) []PeerView {
	views := make([]PeerView, len(peers))
	for i, p := range peers {
		views[i] = toPeerView(p)
	}
	return views
}
