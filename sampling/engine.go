package sampling

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/proofperiod"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

// Engine creates challenges and verifies proofs against them.
type Engine struct {
	store       *ledger.Store
	chain       Chain
	collections Collections
	identity    Identity
	params      Params
	scorer      Scorer
	cfg         Config
}

type engineOptions struct {
	cfg Config
}

// OptionFunc configures an Engine.
type OptionFunc func(*engineOptions) error

// WithConfig replaces the default sampling configuration.
func WithConfig(cfg Config) OptionFunc {
	return func(o *engineOptions) error {
		if cfg.ChunkByteSize == 0 {
			return fmt.Errorf("%w: chunk byte size", types.ErrZeroAmount)
		}
		o.cfg = cfg
		return nil
	}
}

// New returns an Engine recording challenges and proofs in store.
func New(
	store *ledger.Store,
	chain Chain,
	collections Collections,
	identity Identity,
	params Params,
	scorer Scorer,
	opts ...OptionFunc,
) (*Engine, error) {
	options := &engineOptions{cfg: DefaultConfig()}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return &Engine{
		store:       store,
		chain:       chain,
		collections: collections,
		identity:    identity,
		params:      params,
		scorer:      scorer,
		cfg:         options.cfg,
	}, nil
}

// Init seeds the proof period schedule on an empty ledger.
func (e *Engine) Init(ctx context.Context) error {
	epoch, block, err := e.position(ctx)
	if err != nil {
		return err
	}
	return e.store.Update(ctx, ledger.RoleParameters, func(tx *ledger.Tx) error {
		ok, err := proofperiod.Initialized(tx)
		if err != nil || ok {
			return err
		}
		logging.FromContext(ctx).Info("initialising proof period schedule",
			zap.Uint64("epoch", epoch),
			zap.Uint64("block", block),
			zap.Uint64("duration", e.cfg.ProofPeriodInBlocks),
		)
		return proofperiod.Init(tx, epoch, block, e.cfg.ProofPeriodInBlocks)
	})
}

func (e *Engine) position(ctx context.Context) (epoch, block uint64, err error) {
	epoch, err = e.chain.CurrentEpoch(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reading current epoch: %w", err)
	}
	block, err = e.chain.BlockNumber(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reading block number: %w", err)
	}
	return epoch, block, nil
}

func (e *Engine) authorizeOperational(ctx context.Context, node shared.NodeID, caller common.Address) error {
	ok, err := e.identity.IsOperationalKey(ctx, node, caller)
	if err != nil {
		return fmt.Errorf("checking operational key: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s for node %s", types.ErrNotOperationalKey, caller.Hex(), node)
	}
	return nil
}

// CreateChallenge opens a challenge for node in the current proof period.
func (e *Engine) CreateChallenge(ctx context.Context, node shared.NodeID, caller common.Address) (*shared.Challenge, error) {
	logger := logging.FromContext(ctx).With(zap.Stringer("node", node))
	if err := e.authorizeOperational(ctx, node, caller); err != nil {
		return nil, err
	}
	minStake, err := e.params.MinimumStake(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading minimum stake: %w", err)
	}
	epoch, block, err := e.position(ctx)
	if err != nil {
		return nil, err
	}

	var challenge *shared.Challenge
	err = e.store.Update(ctx, ledger.RoleChallenge, func(tx *ledger.Tx) error {
		stake, err := tx.NodeStake(node)
		if err != nil {
			return err
		}
		if stake.Lt(minStake) {
			return fmt.Errorf("%w: %s < %s", types.ErrStakeBelowMinimum, stake.Dec(), minStake.Dec())
		}

		start, err := proofperiod.UpdateAndGetActiveStart(tx, epoch, block)
		if err != nil {
			return err
		}
		duration, err := proofperiod.DurationAt(tx, epoch)
		if err != nil {
			return err
		}

		current, exists, err := tx.Challenge(node)
		if err != nil {
			return err
		}
		if exists && current.ActiveAt(block) {
			if !current.Solved {
				return types.ErrUnsolvedChallengeExists
			}
			return types.ErrChallengeSolvedInPeriod
		}

		seed, err := e.seed(ctx, node, caller, start)
		if err != nil {
			return err
		}
		collection, seed, err := e.pickCollection(ctx, epoch, seed)
		if err != nil {
			return err
		}
		challenge = &shared.Challenge{
			KnowledgeCollectionID:  collection.ID,
			ChunkID:                pickChunk(seed, collection, e.cfg.ChunkByteSize),
			CollectionRef:          e.collections.Address(),
			Epoch:                  epoch,
			PeriodStartBlock:       start,
			PeriodDurationInBlocks: duration,
		}
		if err := tx.SetChallenge(node, challenge); err != nil {
			return err
		}
		return tx.Emit(events.ChallengeSet{Node: node, Challenge: *challenge})
	})
	if err != nil {
		challengesTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}
	challengesTotal.WithLabelValues("created").Inc()
	logger.Debug("challenge created", zap.Object("challenge", challenge))
	return challenge, nil
}

// seed is fixed for a node within one proof period and unknown before the
// period starts.
func (e *Engine) seed(ctx context.Context, node shared.NodeID, caller common.Address, start uint64) (common.Hash, error) {
	entropy, err := e.chain.Entropy(ctx, start)
	if err != nil {
		return common.Hash{}, fmt.Errorf("reading entropy of block %d: %w", start, err)
	}
	return crypto.Keccak256Hash(
		entropy[:],
		binary.BigEndian.AppendUint64(nil, uint64(node)),
		caller[:],
		binary.BigEndian.AppendUint64(nil, start),
	), nil
}

// pickCollection probes random ids first and falls back to a bounded
// sequential scan, so heavily expired id ranges still resolve.
func (e *Engine) pickCollection(ctx context.Context, epoch uint64, seed common.Hash) (shared.Collection, common.Hash, error) {
	latest, err := e.collections.LatestID(ctx)
	if err != nil {
		return shared.Collection{}, seed, fmt.Errorf("reading latest collection id: %w", err)
	}
	if latest == 0 {
		return shared.Collection{}, seed, types.ErrNoCollections
	}

	var id uint64
	for try := 0; try < e.cfg.MaxSearchTries; try++ {
		id = indexFromSeed(seed, latest) + 1
		c, err := e.collections.Collection(ctx, id)
		if err != nil {
			return shared.Collection{}, seed, fmt.Errorf("reading collection %d: %w", id, err)
		}
		if c.ActiveAt(epoch) {
			return c, seed, nil
		}
		seed = crypto.Keccak256Hash(seed[:])
	}

	if id == 0 {
		id = indexFromSeed(seed, latest) + 1
	}
	scan := min(uint64(max(e.cfg.ScanLimit, 0)), latest)
	for i := uint64(0); i < scan; i++ {
		candidate := (id-1+i)%latest + 1
		c, err := e.collections.Collection(ctx, candidate)
		if err != nil {
			return shared.Collection{}, seed, fmt.Errorf("reading collection %d: %w", candidate, err)
		}
		if c.ActiveAt(epoch) {
			return c, seed, nil
		}
	}
	return shared.Collection{}, seed, fmt.Errorf("%w: epoch %d, latest id %d", types.ErrNoActiveCollection, epoch, latest)
}

func indexFromSeed(seed common.Hash, n uint64) uint64 {
	v := new(uint256.Int).SetBytes(seed[:])
	return v.Mod(v, uint256.NewInt(n)).Uint64()
}

func pickChunk(seed common.Hash, c shared.Collection, chunkByteSize uint64) uint64 {
	chunkSeed := crypto.Keccak256Hash(seed[:], binary.BigEndian.AppendUint64(nil, c.ID))
	return indexFromSeed(chunkSeed, c.ChunkCount(chunkByteSize))
}

// SubmitProof verifies chunk against the node's open challenge. On success
// the challenge is solved and the node is credited with its current score.
func (e *Engine) SubmitProof(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
	chunk []byte,
	proof []common.Hash,
) (*events.ScoreAdded, error) {
	logger := logging.FromContext(ctx).With(zap.Stringer("node", node))
	if err := e.authorizeOperational(ctx, node, caller); err != nil {
		return nil, err
	}
	epoch, block, err := e.position(ctx)
	if err != nil {
		return nil, err
	}

	var added *events.ScoreAdded
	err = e.store.Update(ctx, ledger.RoleProof, func(tx *ledger.Tx) error {
		challenge, exists, err := tx.Challenge(node)
		if err != nil {
			return err
		}
		if !exists {
			return types.ErrNoChallenge
		}
		start, err := proofperiod.UpdateAndGetActiveStart(tx, epoch, block)
		if err != nil {
			return err
		}
		if challenge.PeriodStartBlock != start || !challenge.ActiveAt(block) {
			return types.ErrChallengeNoLongerActive
		}
		if challenge.Solved {
			return types.ErrChallengeAlreadySolved
		}

		collection, err := e.collections.Collection(ctx, challenge.KnowledgeCollectionID)
		if err != nil {
			return fmt.Errorf("reading collection %d: %w", challenge.KnowledgeCollectionID, err)
		}
		computed := shared.ComputeRoot(chunk, challenge.ChunkID, proof)
		if computed != collection.MerkleRoot {
			return &types.MerkleRootMismatchError{Computed: computed, Expected: collection.MerkleRoot}
		}

		challenge.Solved = true
		if err := tx.SetChallenge(node, challenge); err != nil {
			return err
		}
		if _, err := tx.IncrementValidProofs(epoch, node); err != nil {
			return err
		}
		added, err = e.credit(ctx, tx, epoch, node, start)
		if err != nil {
			return err
		}
		return tx.Emit(*added)
	})
	if err != nil {
		proofsTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}
	proofsTotal.WithLabelValues("accepted").Inc()
	logger.Debug("proof accepted",
		zap.Uint64("epoch", epoch),
		zap.Stringer("score", added.ScoreAdded),
		zap.Stringer("node_epoch_score", added.NodeEpochScore),
	)
	return added, nil
}

// credit adds the node's score to every accumulator and moves the node's
// score-per-stake by score / stake.
func (e *Engine) credit(
	ctx context.Context,
	tx *ledger.Tx,
	epoch uint64,
	node shared.NodeID,
	periodStart uint64,
) (*events.ScoreAdded, error) {
	score, err := e.scorer.NodeScore(ctx, tx, node)
	if err != nil {
		return nil, fmt.Errorf("calculating node score: %w", err)
	}
	nodeTotal, err := tx.AddNodeEpochScore(epoch, node, score)
	if err != nil {
		return nil, err
	}
	periodTotal, err := tx.AddNodeProofPeriodScore(epoch, node, periodStart, score)
	if err != nil {
		return nil, err
	}
	allTotal, err := tx.AddAllNodesEpochScore(epoch, score)
	if err != nil {
		return nil, err
	}

	stake, err := tx.NodeStake(node)
	if err != nil {
		return nil, err
	}
	perStake, err := tx.NodeEpochScorePerStake(epoch, node)
	if err != nil {
		return nil, err
	}
	if !stake.IsZero() && !score.IsZero() {
		increment := shared.MulDiv(score, shared.Scale18, stake)
		if perStake, err = tx.AddNodeEpochScorePerStake(epoch, node, increment); err != nil {
			return nil, err
		}
	}
	scoreAddedTotal.Add(float64(new(uint256.Int).Div(score, uint256.NewInt(1e9)).Uint64()) / 1e9)

	return &events.ScoreAdded{
		Epoch:              epoch,
		Node:               node,
		PeriodStartBlock:   periodStart,
		ScoreAdded:         score,
		NodeEpochScore:     nodeTotal,
		ProofPeriodScore:   periodTotal,
		AllNodesEpochScore: allTotal,
		ScorePerStake:      perStake,
	}, nil
}

// NodeChallenge returns the node's stored challenge.
func (e *Engine) NodeChallenge(ctx context.Context, node shared.NodeID) (*shared.Challenge, error) {
	var challenge *shared.Challenge
	err := e.store.View(ctx, func(r ledger.Reader) error {
		c, exists, err := r.Challenge(node)
		if err != nil {
			return err
		}
		if !exists {
			return types.ErrNoChallenge
		}
		challenge = c
		return nil
	})
	return challenge, err
}

// ProofPeriodStatus reports the stored period and whether it still covers
// the current block.
func (e *Engine) ProofPeriodStatus(ctx context.Context) (proofperiod.Status, error) {
	epoch, block, err := e.position(ctx)
	if err != nil {
		return proofperiod.Status{}, err
	}
	var status proofperiod.Status
	err = e.store.View(ctx, func(r ledger.Reader) error {
		status, err = proofperiod.CurrentStatus(r, epoch, block)
		return err
	})
	return status, err
}

func (e *Engine) ActiveProofingPeriodDuration(ctx context.Context) (uint64, error) {
	epoch, err := e.chain.CurrentEpoch(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading current epoch: %w", err)
	}
	var duration uint64
	err = e.store.View(ctx, func(r ledger.Reader) error {
		duration, err = proofperiod.DurationAt(r, epoch)
		return err
	})
	return duration, err
}

// SetProofingPeriodDuration schedules a new duration for the next epoch.
func (e *Engine) SetProofingPeriodDuration(ctx context.Context, caller common.Address, duration uint64) error {
	ok, err := e.params.IsGovernor(ctx, caller)
	if err != nil {
		return fmt.Errorf("checking governor: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrNotGovernor, caller.Hex())
	}
	epoch, err := e.chain.CurrentEpoch(ctx)
	if err != nil {
		return fmt.Errorf("reading current epoch: %w", err)
	}
	return e.store.Update(ctx, ledger.RoleParameters, func(tx *ledger.Tx) error {
		return proofperiod.SetDuration(tx, epoch, duration)
	})
}

// HistoricalProofPeriodStart returns the period start offset periods before start.
func (e *Engine) HistoricalProofPeriodStart(ctx context.Context, start, offset uint64) (uint64, error) {
	epoch, err := e.chain.CurrentEpoch(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading current epoch: %w", err)
	}
	var historical uint64
	err = e.store.View(ctx, func(r ledger.Reader) error {
		historical, err = proofperiod.HistoricalStart(r, epoch, start, offset)
		return err
	})
	return historical, err
}

// NodeScore estimates the score node would earn for a proof now.
func (e *Engine) NodeScore(ctx context.Context, node shared.NodeID) (*uint256.Int, error) {
	var score *uint256.Int
	err := e.store.View(ctx, func(r ledger.Reader) error {
		var err error
		score, err = e.scorer.NodeScore(ctx, r, node)
		return err
	})
	return score, err
}
