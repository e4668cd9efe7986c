package sampling_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/sampling"
	"github.com/kcnet/incentives/sampling/mocks"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

var (
	operator = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	governor = common.HexToAddress("0x0000000000000000000000000000000000000b22")
	kcRef    = common.HexToAddress("0x0000000000000000000000000000000000000c33")
)

type harness struct {
	t      *testing.T
	ctx    context.Context
	store  *ledger.Store
	engine *sampling.Engine
	scorer *mocks.MockScorer

	block uint64
	epoch uint64

	collections map[uint64]shared.Collection
	trees       map[uint64]*shared.ChunkTree
	latest      uint64
}

func newHarness(t *testing.T, cfg sampling.Config) *harness {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	store, err := ledger.Open(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	h := &harness{
		t:           t,
		ctx:         ctx,
		store:       store,
		block:       1000,
		epoch:       1,
		collections: make(map[uint64]shared.Collection),
		trees:       make(map[uint64]*shared.ChunkTree),
	}

	ctrl := gomock.NewController(t)
	chain := mocks.NewMockChain(ctrl)
	chain.EXPECT().BlockNumber(gomock.Any()).DoAndReturn(func(context.Context) (uint64, error) {
		return h.block, nil
	}).AnyTimes()
	chain.EXPECT().CurrentEpoch(gomock.Any()).DoAndReturn(func(context.Context) (uint64, error) {
		return h.epoch, nil
	}).AnyTimes()
	chain.EXPECT().Entropy(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, block uint64) (common.Hash, error) {
		return crypto.Keccak256Hash([]byte("entropy"), uint256.NewInt(block).Bytes()), nil
	}).AnyTimes()

	collections := mocks.NewMockCollections(ctrl)
	collections.EXPECT().LatestID(gomock.Any()).DoAndReturn(func(context.Context) (uint64, error) {
		return h.latest, nil
	}).AnyTimes()
	collections.EXPECT().Collection(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id uint64) (shared.Collection, error) {
			c, ok := h.collections[id]
			if !ok {
				return shared.Collection{}, types.ErrCollectionNotFound
			}
			return c, nil
		}).AnyTimes()
	collections.EXPECT().Address().Return(kcRef).AnyTimes()

	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().IsOperationalKey(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ shared.NodeID, key common.Address) (bool, error) {
			return key == operator, nil
		}).AnyTimes()

	params := mocks.NewMockParams(ctrl)
	params.EXPECT().MinimumStake(gomock.Any()).Return(uint256.NewInt(100), nil).AnyTimes()
	params.EXPECT().IsGovernor(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, addr common.Address) (bool, error) {
			return addr == governor, nil
		}).AnyTimes()

	h.scorer = mocks.NewMockScorer(ctrl)
	h.engine, err = sampling.New(store, chain, collections, identity, params, h.scorer, sampling.WithConfig(cfg))
	require.NoError(t, err)
	require.NoError(t, h.engine.Init(ctx))
	return h
}

func testConfig() sampling.Config {
	cfg := sampling.DefaultConfig()
	cfg.ProofPeriodInBlocks = 100
	return cfg
}

// publish adds a collection of the given size expiring at endEpoch.
func (h *harness) publish(size int, endEpoch uint64) uint64 {
	h.latest++
	id := h.latest
	data := bytes.Repeat([]byte{byte(id)}, size)
	c := shared.Collection{ID: id, ByteSize: uint64(size), EndEpoch: endEpoch, TokenAmount: uint256.NewInt(1)}
	if size > 0 {
		tree, err := shared.NewChunkTree(shared.SplitChunks(data, shared.DefaultChunkByteSize))
		require.NoError(h.t, err)
		h.trees[id] = tree
		c.MerkleRoot = tree.Root()
	}
	h.collections[id] = c
	return id
}

func (h *harness) stake(node shared.NodeID, amount uint64) {
	require.NoError(h.t, h.store.Update(h.ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		return tx.IncreaseStake(h.epoch, node, shared.NewDelegatorKey(common.Address{byte(node)}), uint256.NewInt(amount))
	}))
}

func (h *harness) proofFor(c *shared.Challenge) ([]byte, []common.Hash) {
	tree := h.trees[c.KnowledgeCollectionID]
	chunk, err := tree.Chunk(c.ChunkID)
	require.NoError(h.t, err)
	proof, err := tree.Proof(c.ChunkID)
	require.NoError(h.t, err)
	return chunk, proof
}

func TestCreateChallenge(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32*10, 5)
	h.stake(1, 1000)

	c, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)
	require.Equal(t, uint64(1), c.KnowledgeCollectionID)
	require.Less(t, c.ChunkID, uint64(10))
	require.Equal(t, kcRef, c.CollectionRef)
	require.Equal(t, uint64(1), c.Epoch)
	require.Equal(t, uint64(1000), c.PeriodStartBlock)
	require.Equal(t, uint64(100), c.PeriodDurationInBlocks)
	require.False(t, c.Solved)

	stored, err := h.engine.NodeChallenge(h.ctx, 1)
	require.NoError(t, err)
	require.Equal(t, c, stored)

	require.NoError(t, h.store.View(h.ctx, func(r ledger.Reader) error {
		evs, err := r.Events(0, 0)
		require.NoError(t, err)
		last := evs[len(evs)-1]
		require.Equal(t, events.TypeChallengeSet, last.Type)
		require.Equal(t, "1", last.Attributes["node"])
		return nil
	}))
}

func TestCreateChallengeIsDeterministic(t *testing.T) {
	pick := func() *shared.Challenge {
		h := newHarness(t, testConfig())
		for i := 0; i < 20; i++ {
			h.publish(32*7, 9)
		}
		h.stake(3, 1000)
		h.block = 1042
		c, err := h.engine.CreateChallenge(h.ctx, 3, operator)
		require.NoError(t, err)
		return c
	}
	require.Equal(t, pick(), pick())
}

func TestOneChallengePerPeriod(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32*4, 5)
	h.stake(1, 1000)

	c, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)

	h.block = 1050
	_, err = h.engine.CreateChallenge(h.ctx, 1, operator)
	require.ErrorIs(t, err, types.ErrUnsolvedChallengeExists)
	require.Equal(t, types.KindSequencing, types.KindOf(err))

	h.scorer.EXPECT().NodeScore(gomock.Any(), gomock.Any(), shared.NodeID(1)).Return(uint256.NewInt(10), nil)
	chunk, proof := h.proofFor(c)
	_, err = h.engine.SubmitProof(h.ctx, 1, operator, chunk, proof)
	require.NoError(t, err)

	_, err = h.engine.CreateChallenge(h.ctx, 1, operator)
	require.ErrorIs(t, err, types.ErrChallengeSolvedInPeriod)

	// next period
	h.block = 1100
	next, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)
	require.Equal(t, uint64(1100), next.PeriodStartBlock)
	require.False(t, next.Solved)
}

func TestUnsolvedChallengeIsSupersededAfterPeriod(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32*4, 5)
	h.stake(1, 1000)

	_, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)

	// several periods later
	h.block = 1473
	c, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)
	require.Equal(t, uint64(1400), c.PeriodStartBlock)
}

func TestChallengeFindsSparseActiveCollection(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSearchTries = 3
	h := newHarness(t, cfg)
	h.epoch = 10
	var active uint64
	for i := 0; i < 200; i++ {
		if i == 137 {
			active = h.publish(64, 10)
			continue
		}
		if i%3 == 0 {
			h.publish(0, 50) // empty collections are never challenged
			continue
		}
		h.publish(64, 9)
	}
	h.stake(1, 1000)

	c, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)
	require.Equal(t, active, c.KnowledgeCollectionID)
	require.Less(t, c.ChunkID, uint64(2))
}

func TestChallengeWithoutCollections(t *testing.T) {
	h := newHarness(t, testConfig())
	h.stake(1, 1000)

	_, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.ErrorIs(t, err, types.ErrNoCollections)
	require.Equal(t, types.KindNotFound, types.KindOf(err))

	h.epoch = 3
	for i := 0; i < 10; i++ {
		h.publish(32, 2)
	}
	_, err = h.engine.CreateChallenge(h.ctx, 1, operator)
	require.ErrorIs(t, err, types.ErrNoActiveCollection)

	_, err = h.engine.NodeChallenge(h.ctx, 1)
	require.ErrorIs(t, err, types.ErrNoChallenge)
}

func TestChallengeRequiresOperatorAndStake(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32, 5)

	_, err := h.engine.CreateChallenge(h.ctx, 1, common.HexToAddress("0xdead"))
	require.ErrorIs(t, err, types.ErrNotOperationalKey)
	require.Equal(t, types.KindAuthorization, types.KindOf(err))

	h.stake(1, 99)
	_, err = h.engine.CreateChallenge(h.ctx, 1, operator)
	require.ErrorIs(t, err, types.ErrStakeBelowMinimum)

	h.stake(1, 1)
	_, err = h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)
}

func TestSubmitProofCreditsScore(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32*16, 5)
	h.stake(1, 1000)
	h.stake(2, 4000)

	score := new(uint256.Int).Mul(uint256.NewInt(2), shared.Scale18)
	h.scorer.EXPECT().NodeScore(gomock.Any(), gomock.Any(), gomock.Any()).Return(score, nil).Times(2)

	for _, node := range []shared.NodeID{1, 2} {
		c, err := h.engine.CreateChallenge(h.ctx, node, operator)
		require.NoError(t, err)
		chunk, proof := h.proofFor(c)
		added, err := h.engine.SubmitProof(h.ctx, node, operator, chunk, proof)
		require.NoError(t, err)
		require.Equal(t, score, added.ScoreAdded)
		require.Equal(t, score, added.NodeEpochScore)
	}

	require.NoError(t, h.store.View(h.ctx, func(r ledger.Reader) error {
		c, _, err := r.Challenge(1)
		require.NoError(t, err)
		require.True(t, c.Solved)

		count, err := r.EpochNodeValidProofsCount(1, 1)
		require.NoError(t, err)
		require.Equal(t, uint64(1), count)

		all, err := r.AllNodesEpochScore(1)
		require.NoError(t, err)
		require.Equal(t, new(uint256.Int).Mul(score, uint256.NewInt(2)), all)

		period, err := r.NodeProofPeriodScore(2, 1000)
		require.NoError(t, err)
		require.Equal(t, score, period)

		// score * 1e18 / stake
		perStake, err := r.NodeEpochScorePerStake(1, 1)
		require.NoError(t, err)
		require.Equal(t, shared.MulDiv(score, shared.Scale18, uint256.NewInt(1000)), perStake)
		perStake, err = r.NodeEpochScorePerStake(1, 2)
		require.NoError(t, err)
		require.Equal(t, shared.MulDiv(score, shared.Scale18, uint256.NewInt(4000)), perStake)
		return nil
	}))
}

func TestRejectedProofChangesNothing(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32*8, 5)
	h.stake(1, 1000)

	c, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)
	chunk, proof := h.proofFor(c)

	wrong := append([]byte{}, chunk...)
	wrong[0] ^= 0xff
	_, err = h.engine.SubmitProof(h.ctx, 1, operator, wrong, proof)
	var mismatch *types.MerkleRootMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, h.collections[c.KnowledgeCollectionID].MerkleRoot, mismatch.Expected)
	require.Equal(t, types.KindProof, types.KindOf(err))

	_, err = h.engine.SubmitProof(h.ctx, 1, operator, chunk, proof[:len(proof)-1])
	require.True(t, errors.As(err, &mismatch))

	require.NoError(t, h.store.View(h.ctx, func(r ledger.Reader) error {
		stored, _, err := r.Challenge(1)
		require.NoError(t, err)
		require.False(t, stored.Solved)
		s, err := r.NodeEpochScore(1, 1)
		require.NoError(t, err)
		require.True(t, s.IsZero())
		count, err := r.EpochNodeValidProofsCount(1, 1)
		require.NoError(t, err)
		require.Zero(t, count)
		return nil
	}))
}

func TestProofAfterPeriodIsRejected(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32*8, 5)
	h.stake(1, 1000)

	c, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)
	chunk, proof := h.proofFor(c)

	h.block = 1100
	_, err = h.engine.SubmitProof(h.ctx, 1, operator, chunk, proof)
	require.ErrorIs(t, err, types.ErrChallengeNoLongerActive)
}

func TestProofCannotBeSubmittedTwice(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32*8, 5)
	h.stake(1, 1000)

	c, err := h.engine.CreateChallenge(h.ctx, 1, operator)
	require.NoError(t, err)
	chunk, proof := h.proofFor(c)

	h.scorer.EXPECT().NodeScore(gomock.Any(), gomock.Any(), shared.NodeID(1)).Return(uint256.NewInt(7), nil).Times(1)
	_, err = h.engine.SubmitProof(h.ctx, 1, operator, chunk, proof)
	require.NoError(t, err)
	_, err = h.engine.SubmitProof(h.ctx, 1, operator, chunk, proof)
	require.ErrorIs(t, err, types.ErrChallengeAlreadySolved)

	_, err = h.engine.SubmitProof(h.ctx, 2, operator, chunk, proof)
	require.ErrorIs(t, err, types.ErrNoChallenge)
}

func TestScoreIsMonotonicWithinEpoch(t *testing.T) {
	h := newHarness(t, testConfig())
	h.publish(32*8, 5)
	h.stake(1, 1000)
	h.scorer.EXPECT().NodeScore(gomock.Any(), gomock.Any(), shared.NodeID(1)).Return(uint256.NewInt(5), nil).AnyTimes()

	previous := uint256.NewInt(0)
	for period := uint64(0); period < 5; period++ {
		h.block = 1000 + period*100 + 3
		c, err := h.engine.CreateChallenge(h.ctx, 1, operator)
		require.NoError(t, err)
		chunk, proof := h.proofFor(c)
		added, err := h.engine.SubmitProof(h.ctx, 1, operator, chunk, proof)
		require.NoError(t, err)
		require.True(t, previous.Lt(added.NodeEpochScore))
		previous = added.NodeEpochScore
	}
	require.Equal(t, uint256.NewInt(25), previous)
}

func TestProofPeriodParameters(t *testing.T) {
	h := newHarness(t, testConfig())

	status, err := h.engine.ProofPeriodStatus(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), status.StartBlock)
	require.True(t, status.IsValid)

	h.block = 1100
	status, err = h.engine.ProofPeriodStatus(h.ctx)
	require.NoError(t, err)
	require.False(t, status.IsValid)

	err = h.engine.SetProofingPeriodDuration(h.ctx, operator, 50)
	require.ErrorIs(t, err, types.ErrNotGovernor)
	require.NoError(t, h.engine.SetProofingPeriodDuration(h.ctx, governor, 50))

	d, err := h.engine.ActiveProofingPeriodDuration(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(100), d)

	h.epoch = 2
	d, err = h.engine.ActiveProofingPeriodDuration(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(50), d)

	start, err := h.engine.HistoricalProofPeriodStart(h.ctx, 1000, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(900), start)
}
