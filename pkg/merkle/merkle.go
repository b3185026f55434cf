// Package merkle builds a binary tree over chunk digests with
// SHA-256(left||right) internal nodes, duplicating the last node at
// any odd-width level, and produces authentication paths that verify
// against the root independently of the tree.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/hivechunk/core/pkg/coreerr"
)

// Side indicates which side of the current hash a proof step's
// sibling sits on, when recombining toward the root.
type Side int

const (
	Left Side = iota
	Right
)

// Step is one entry of an authentication path: a sibling hash and
// the side it sits on relative to the hash being verified.
type Step struct {
	Sibling string
	Side    Side
}

// Tree is a binary Merkle tree built over hex-encoded SHA-256 leaf
// digests. Levels[0] holds the leaves; the final level holds the
// single root.
type Tree struct {
	Leaves []string
	Levels [][]string
}

func hashPair(left, right string) (string, error) {
	l, err := hex.DecodeString(left)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidInput, "left sibling is not valid hex", err)
	}
	r, err := hex.DecodeString(right)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidInput, "right sibling is not valid hex", err)
	}
	h := sha256.New()
	h.Write(l)
	h.Write(r)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Build constructs a Merkle tree from an ordered list of hex-encoded
// leaf digests. An empty list fails with InvalidInput.
func Build(leaves []string) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "cannot build merkle tree from zero leaves")
	}

	t := &Tree{
		Leaves: append([]string(nil), leaves...),
		Levels: [][]string{append([]string(nil), leaves...)},
	}

	current := t.Levels[0]
	for len(current) > 1 {
		next := make([]string, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			parent, err := hashPair(left, right)
			if err != nil {
				return nil, err
			}
			next = append(next, parent)
		}
		t.Levels = append(t.Levels, next)
		current = next
	}

	return t, nil
}

// Root returns the tree's root digest.
func (t *Tree) Root() string {
	return t.Levels[len(t.Levels)-1][0]
}

// Prove returns the authentication path for the leaf at index.
func (t *Tree) Prove(index int) ([]Step, error) {
	if index < 0 || index >= len(t.Leaves) {
		return nil, coreerr.New(coreerr.InvalidInput, "leaf index out of range")
	}

	var proof []Step
	idx := index

	for _, level := range t.Levels[:len(t.Levels)-1] {
		if idx%2 == 0 {
			siblingIdx := idx + 1
			if siblingIdx < len(level) {
				proof = append(proof, Step{Sibling: level[siblingIdx], Side: Right})
			} else {
				proof = append(proof, Step{Sibling: level[idx], Side: Right})
			}
		} else {
			proof = append(proof, Step{Sibling: level[idx-1], Side: Left})
		}
		idx /= 2
	}

	return proof, nil
}

// Verify recomputes the root from a leaf digest and its
// authentication path, and reports whether it matches expectedRoot.
func Verify(leaf string, proof []Step, expectedRoot string) bool {
	current := leaf
	for _, step := range proof {
		var combined string
		var err error
		if step.Side == Left {
			combined, err = hashPair(step.Sibling, current)
		} else {
			combined, err = hashPair(current, step.Sibling)
		}
		if err != nil {
			return false
		}
		current = combined
	}
	return current == expectedRoot
}
