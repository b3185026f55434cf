package peerdir

// nearestTo sorts peers by XOR distance to target and returns up to k
// of them, nearest first. This replaces the bucketed routing table
// the directory used to delegate to: with an unbounded flat peer
// table there is nothing to bucket, so ranking candidates is a direct
// sort rather than a bucket-radius search. Distance ties break by
// lexicographic order of peer-id, so the result is stably ordered
// even when two peers land equidistant from target.
func nearestTo(peers []*Peer, target NodeID, k int) []*Peer {
	if len(peers) == 0 {
		return nil
	}

	type distancePair struct {
		peer     *Peer
		distance NodeID
	}

	pairs := make([]distancePair, len(peers))
	for i, p := range peers {
		pairs[i] = distancePair{peer: p, distance: p.ID.Distance(target)}
	}

	less := func(a, b distancePair) bool {
		if a.distance != b.distance {
			return a.distance.Less(b.distance)
		}
		return a.peer.PeerID < b.peer.PeerID
	}

	for i := 1; i < len(pairs); i++ {
		key := pairs[i]
		j := i - 1
		for j >= 0 && less(key, pairs[j]) {
			pairs[j+1] = pairs[j]
			j--
		}
		pairs[j+1] = key
	}

	if k > len(pairs) || k < 0 {
		k = len(pairs)
	}

	result := make([]*Peer, k)
	for i := 0; i < k; i++ {
		result[i] = pairs[i].peer
	}
	return result
}
