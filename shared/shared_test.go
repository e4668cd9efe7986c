package shared

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spacemeshos/go-scale/tester"
	"github.com/stretchr/testify/require"
)

func TestChallengeCodec(t *testing.T) {
	c := &Challenge{
		KnowledgeCollectionID:  17,
		ChunkID:                3,
		CollectionRef:          common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Epoch:                  4,
		PeriodStartBlock:       1200,
		PeriodDurationInBlocks: 100,
		Solved:                 true,
	}
	data, err := EncodeChallenge(c)
	require.NoError(t, err)

	decoded, err := DecodeChallenge(data)
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestChallengeActiveAt(t *testing.T) {
	c := Challenge{PeriodStartBlock: 100, PeriodDurationInBlocks: 10}
	require.False(t, c.ActiveAt(99))
	require.True(t, c.ActiveAt(100))
	require.True(t, c.ActiveAt(109))
	require.False(t, c.ActiveAt(110))
}

func FuzzChallengeConsistency(f *testing.F) {
	f.Add([]byte("018912380012"))
	tester.FuzzConsistency[Challenge](f)
}

func FuzzChallengeSafety(f *testing.F) {
	f.Add([]byte("018912380012"))
	tester.FuzzSafety[Challenge](f)
}

func TestLeafHashEncodesChunkIDAsUint256(t *testing.T) {
	chunk := []byte("chunk")
	id := make([]byte, 32)
	id[31] = 5
	require.Equal(t, crypto.Keccak256Hash(chunk, id), LeafHash(chunk, 5))
}

func TestHashPairIsSymmetric(t *testing.T) {
	a := crypto.Keccak256Hash([]byte("a"))
	b := crypto.Keccak256Hash([]byte("b"))
	require.Equal(t, HashPair(a, b), HashPair(b, a))
}

func TestChunkTreeProofs(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 8, 13} {
		data := bytes.Repeat([]byte{0xab}, size*DefaultChunkByteSize-7)
		chunks := SplitChunks(data, DefaultChunkByteSize)
		require.Len(t, chunks, size)

		tree, err := NewChunkTree(chunks)
		require.NoError(t, err)
		for id := uint64(0); id < uint64(size); id++ {
			proof, err := tree.Proof(id)
			require.NoError(t, err)
			chunk, err := tree.Chunk(id)
			require.NoError(t, err)
			require.Equal(t, tree.Root(), ComputeRoot(chunk, id, proof), "size %d chunk %d", size, id)
		}
	}
}

func TestChunkTreeRejectsWrongChunk(t *testing.T) {
	chunks := SplitChunks([]byte("0123456789abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"), DefaultChunkByteSize)
	tree, err := NewChunkTree(chunks)
	require.NoError(t, err)

	proof, err := tree.Proof(1)
	require.NoError(t, err)
	require.NotEqual(t, tree.Root(), ComputeRoot(chunks[0], 1, proof))
	require.NotEqual(t, tree.Root(), ComputeRoot(chunks[1], 0, proof))

	_, err = tree.Proof(uint64(len(chunks)))
	require.Error(t, err)

	_, err = NewChunkTree(nil)
	require.ErrorIs(t, err, ErrEmptyTree)
}

func TestCollectionChunkCount(t *testing.T) {
	require.Equal(t, uint64(0), Collection{ByteSize: 0}.ChunkCount(32))
	require.Equal(t, uint64(1), Collection{ByteSize: 1}.ChunkCount(32))
	require.Equal(t, uint64(1), Collection{ByteSize: 32}.ChunkCount(32))
	require.Equal(t, uint64(2), Collection{ByteSize: 33}.ChunkCount(32))

	require.True(t, Collection{ByteSize: 1, EndEpoch: 5}.ActiveAt(5))
	require.False(t, Collection{ByteSize: 1, EndEpoch: 5}.ActiveAt(6))
	require.False(t, Collection{ByteSize: 0, EndEpoch: 5}.ActiveAt(1))
}

func TestMathHelpers(t *testing.T) {
	require.Equal(t, uint256.NewInt(3), AbsDiff(uint256.NewInt(5), uint256.NewInt(8)))
	require.Equal(t, uint256.NewInt(3), AbsDiff(uint256.NewInt(8), uint256.NewInt(5)))
	require.Equal(t, uint256.NewInt(5), Min(uint256.NewInt(5), uint256.NewInt(8)))
	require.Equal(t, uint256.NewInt(7), MulDiv(uint256.NewInt(15), uint256.NewInt(7), uint256.NewInt(15)))
	require.True(t, Copy(nil).IsZero())
}

func TestDelegatorKey(t *testing.T) {
	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")
	require.Equal(t, crypto.Keccak256Hash(addr.Bytes()), NewDelegatorKey(addr))
}
