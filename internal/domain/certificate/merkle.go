package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

var ErrNoLeaves = errors.New("merkle tree needs at least one leaf")

// canonical sorts map keys at every depth so equal data always hashes the same.
var canonical = sonic.ConfigStd

func CanonicalJSON(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	out, err := canonical.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	return out, nil
}

// HashData is the hex sha256 of the canonical JSON form.
func HashData(data map[string]any) (string, error) {
	raw, err := CanonicalJSON(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func hashPair(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}

// Tree keeps every level; levels[0] are the leaves, the last level is the root.
type Tree struct {
	levels [][]string
}

// BuildTree pairs nodes level by level, duplicating the last node of an odd level.
func BuildTree(leaves []string) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	levels := [][]string{append([]string(nil), leaves...)}
	for current := levels[0]; len(current) > 1; {
		next := make([]string, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			right := current[i]
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, hashPair(current[i], right))
		}
		levels = append(levels, next)
		current = next
	}
	return &Tree{levels: levels}, nil
}

func (t *Tree) Root() string {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

type ProofStep struct {
	Sibling string `json:"sibling"`
	Left    bool   `json:"left"`
}

// Proof returns the sibling path from leaf index to the root.
func (t *Tree) Proof(index int) ([]ProofStep, error) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("leaf index %d out of range", index)
	}
	var steps []ProofStep
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index
		}
		steps = append(steps, ProofStep{Sibling: level[sibling], Left: sibling < index})
		index /= 2
	}
	return steps, nil
}

func VerifyProof(leaf string, proof []ProofStep, root string) bool {
	current := leaf
	for _, step := range proof {
		if step.Left {
			current = hashPair(step.Sibling, current)
		} else {
			current = hashPair(current, step.Sibling)
		}
	}
	return current == root
}
