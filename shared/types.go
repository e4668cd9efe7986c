package shared

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// NodeID identifies a node profile in the identity registry.
type NodeID uint64

func (n NodeID) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// ParseNodeID parses a decimal node id.
func ParseNodeID(s string) (NodeID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return NodeID(v), nil
}

// DelegatorKey is the storage key of a delegator: keccak256 of its address.
type DelegatorKey = common.Hash

func NewDelegatorKey(addr common.Address) DelegatorKey {
	return crypto.Keccak256Hash(addr.Bytes())
}

// Collection is the view of a knowledge collection consumed by the challenge
// engine and the proof verifier.
type Collection struct {
	ID          uint64
	MerkleRoot  common.Hash
	ByteSize    uint64
	EndEpoch    uint64
	TokenAmount *uint256.Int
}

// ActiveAt reports whether the collection can be challenged in epoch.
func (c Collection) ActiveAt(epoch uint64) bool {
	return c.EndEpoch >= epoch && c.ByteSize > 0
}

// ChunkCount returns the number of chunks of chunkByteSize the collection
// is split into. The last chunk may be partial.
func (c Collection) ChunkCount(chunkByteSize uint64) uint64 {
	if chunkByteSize == 0 {
		return 0
	}
	return (c.ByteSize + chunkByteSize - 1) / chunkByteSize
}
