package shared

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// DefaultChunkByteSize is the size of a knowledge collection chunk.
const DefaultChunkByteSize = 32

// LeafHash returns the merkle leaf of chunk number chunkID:
// keccak256(chunk || uint256(chunkID)).
func LeafHash(chunk []byte, chunkID uint64) common.Hash {
	id := uint256.NewInt(chunkID).Bytes32()
	return crypto.Keccak256Hash(chunk, id[:])
}

// HashPair hashes two nodes in ascending byte order, so proofs carry no
// left/right flags.
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// ComputeRoot folds a sibling path over the leaf of chunk.
func ComputeRoot(chunk []byte, chunkID uint64, proof []common.Hash) common.Hash {
	node := LeafHash(chunk, chunkID)
	for _, sibling := range proof {
		node = HashPair(node, sibling)
	}
	return node
}

// SplitChunks cuts data into chunkByteSize pieces. The last one may be short.
func SplitChunks(data []byte, chunkByteSize uint64) [][]byte {
	if chunkByteSize == 0 {
		return nil
	}
	var chunks [][]byte
	for start := uint64(0); start < uint64(len(data)); start += chunkByteSize {
		end := min(start+chunkByteSize, uint64(len(data)))
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

// ChunkTree is a full in-memory sorted-pair merkle tree over chunk leaves.
// An odd node at the end of a layer is promoted unchanged.
type ChunkTree struct {
	chunks [][]byte
	layers [][]common.Hash
}

var ErrEmptyTree = errors.New("no chunks to build a tree from")

func NewChunkTree(chunks [][]byte) (*ChunkTree, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyTree
	}
	leaves := make([]common.Hash, len(chunks))
	for i, chunk := range chunks {
		leaves[i] = LeafHash(chunk, uint64(i))
	}
	layers := [][]common.Hash{leaves}
	for layer := leaves; len(layer) > 1; {
		next := make([]common.Hash, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])
				continue
			}
			next = append(next, HashPair(layer[i], layer[i+1]))
		}
		layers = append(layers, next)
		layer = next
	}
	return &ChunkTree{chunks: chunks, layers: layers}, nil
}

func (t *ChunkTree) Root() common.Hash {
	return t.layers[len(t.layers)-1][0]
}

func (t *ChunkTree) Chunk(id uint64) ([]byte, error) {
	if id >= uint64(len(t.chunks)) {
		return nil, fmt.Errorf("chunk %d out of range [0, %d)", id, len(t.chunks))
	}
	return t.chunks[id], nil
}

// Proof returns the sibling path of chunk id, bottom-up.
func (t *ChunkTree) Proof(id uint64) ([]common.Hash, error) {
	if id >= uint64(len(t.chunks)) {
		return nil, fmt.Errorf("chunk %d out of range [0, %d)", id, len(t.chunks))
	}
	var proof []common.Hash
	idx := id
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < uint64(len(layer)) {
			proof = append(proof, layer[sibling])
		}
		idx /= 2
	}
	return proof, nil
}
