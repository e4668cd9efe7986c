package devnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/sampling"
	"github.com/kcnet/incentives/score"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/staking"
	"github.com/kcnet/incentives/types"
)

var ErrBlockNotProduced = errors.New("block not produced yet")

var (
	_ sampling.Chain       = (*Network)(nil)
	_ sampling.Collections = (*Network)(nil)
	_ sampling.Identity    = (*Network)(nil)
	_ sampling.Params      = (*Network)(nil)
	_ score.Epochs         = (*Network)(nil)
	_ score.Params         = (*Network)(nil)
	_ score.Asks           = (*Network)(nil)
	_ score.Publishing     = (*Network)(nil)
	_ staking.Chain        = (*Network)(nil)
	_ staking.Identity     = (*Network)(nil)
	_ staking.Custody      = (*Network)(nil)
	_ staking.RewardPool   = (*Network)(nil)
)

type node struct {
	ask         *uint256.Int
	admin       map[common.Address]bool
	operational map[common.Address]bool
}

type published struct {
	shared.Collection
	tree *shared.ChunkTree
}

// Network is a single-process chain with a shared lock. Time only moves
// through Produce.
type Network struct {
	mu sync.RWMutex

	logger        *zap.Logger
	chunkSize     uint64
	genesis       common.Hash
	genesisTime   uint64
	blockSeconds  uint64
	epochLength   uint64
	autoFinalize  bool
	stakeCap      *uint256.Int
	minimumStake  *uint256.Int
	networkPrice  *uint256.Int
	address       common.Address
	governors     map[common.Address]bool
	nodes         map[shared.NodeID]*node
	height        uint64
	lastFinalized uint64

	collections []published
	produced    map[uint64]map[shared.NodeID]*uint256.Int
	total       map[uint64]*uint256.Int

	balances map[common.Address]*uint256.Int
	escrow   *uint256.Int
}

type networkOptions struct {
	logger    *zap.Logger
	chunkSize uint64
}

type OptionFunc func(*networkOptions) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(o *networkOptions) error {
		o.logger = logger
		return nil
	}
}

// WithChunkByteSize sets the chunk size collections are split into. It
// must match the challenge engine's.
func WithChunkByteSize(size uint64) OptionFunc {
	return func(o *networkOptions) error {
		if size == 0 {
			return fmt.Errorf("%w: chunk byte size", types.ErrZeroAmount)
		}
		o.chunkSize = size
		return nil
	}
}

func New(params Params, opts ...OptionFunc) (*Network, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	options := &networkOptions{logger: zap.NewNop(), chunkSize: shared.DefaultChunkByteSize}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	n := &Network{
		logger:       options.logger,
		chunkSize:    options.chunkSize,
		genesis:      crypto.Keccak256Hash([]byte(params.Seed)),
		genesisTime:  params.GenesisTime,
		blockSeconds: uint64(params.BlockTime.Duration / time.Second),
		epochLength:  params.EpochLengthBlocks,
		autoFinalize: params.AutoFinalize,
		stakeCap:     params.StakeCap.Value(),
		minimumStake: params.MinimumStake.Value(),
		networkPrice: params.NetworkPrice.Value(),
		address:      common.HexToAddress(params.CollectionsAddress),
		governors:    make(map[common.Address]bool),
		nodes:        make(map[shared.NodeID]*node),
		produced:     make(map[uint64]map[shared.NodeID]*uint256.Int),
		total:        make(map[uint64]*uint256.Int),
		balances:     make(map[common.Address]*uint256.Int),
		escrow:       shared.Zero(),
	}
	governors, _ := parseAddresses("governors", params.Governors)
	for _, g := range governors {
		n.governors[g] = true
	}
	for addr, amount := range params.Accounts {
		n.balances[common.HexToAddress(addr)] = amount.Value()
	}
	for _, np := range params.Nodes {
		admins, _ := parseAddresses("admin_keys", np.AdminKeys)
		operational, _ := parseAddresses("operational_keys", np.OperationalKeys)
		nd := &node{
			ask:         np.Ask.Value(),
			admin:       make(map[common.Address]bool),
			operational: make(map[common.Address]bool),
		}
		for _, k := range admins {
			nd.admin[k] = true
		}
		for _, k := range operational {
			nd.operational[k] = true
		}
		n.nodes[np.ID] = nd
	}
	blockHeight.Set(0)
	return n, nil
}

func (n *Network) epochAt(height uint64) uint64 {
	return height/n.epochLength + 1
}

// Produce appends blocks and returns the new height. With auto finalize,
// crossing an epoch boundary finalizes every earlier epoch.
func (n *Network) Produce(blocks uint64) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	before := n.epochAt(n.height)
	n.height += blocks
	after := n.epochAt(n.height)
	if after != before {
		n.logger.Info("epoch started", zap.Uint64("epoch", after), zap.Uint64("height", n.height))
		if n.autoFinalize {
			n.finalizeLocked(after - 1)
		}
	}
	blockHeight.Set(float64(n.height))
	return n.height
}

func (n *Network) finalizeLocked(epoch uint64) {
	if epoch > n.lastFinalized {
		n.lastFinalized = epoch
		finalizedEpoch.Set(float64(epoch))
	}
}

func (n *Network) BlockNumber(context.Context) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.height, nil
}

func (n *Network) CurrentEpoch(context.Context) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.epochAt(n.height), nil
}

func (n *Network) LastFinalizedEpoch(context.Context) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastFinalized, nil
}

// Now is the timestamp of the latest block.
func (n *Network) Now(context.Context) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.genesisTime + n.height*n.blockSeconds, nil
}

func (n *Network) EpochStartTime(_ context.Context, epoch uint64) (uint64, error) {
	if epoch == 0 {
		return 0, fmt.Errorf("epoch numbering starts at 1")
	}
	return n.genesisTime + (epoch-1)*n.epochLength*n.blockSeconds, nil
}

// Entropy is the hash chain value of block. Future blocks have none.
func (n *Network) Entropy(_ context.Context, block uint64) (common.Hash, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if block > n.height {
		return common.Hash{}, fmt.Errorf("%w: %d > %d", ErrBlockNotProduced, block, n.height)
	}
	return crypto.Keccak256Hash(n.genesis[:], binary.BigEndian.AppendUint64(nil, block)), nil
}

func (n *Network) node(id shared.NodeID) (*node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	nd, ok := n.nodes[id]
	return nd, ok
}

func (n *Network) ProfileExists(_ context.Context, id shared.NodeID) (bool, error) {
	_, ok := n.node(id)
	return ok, nil
}

func (n *Network) IsAdminKey(_ context.Context, id shared.NodeID, key common.Address) (bool, error) {
	nd, ok := n.node(id)
	return ok && nd.admin[key], nil
}

// IsOperationalKey accepts admin keys too.
func (n *Network) IsOperationalKey(_ context.Context, id shared.NodeID, key common.Address) (bool, error) {
	nd, ok := n.node(id)
	return ok && (nd.operational[key] || nd.admin[key]), nil
}

func (n *Network) IsGovernor(_ context.Context, addr common.Address) (bool, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.governors[addr], nil
}

func (n *Network) MinimumStake(context.Context) (*uint256.Int, error) {
	return shared.Copy(n.minimumStake), nil
}

func (n *Network) StakeCap(context.Context) (*uint256.Int, error) {
	return shared.Copy(n.stakeCap), nil
}

func (n *Network) NetworkPrice(context.Context) (*uint256.Int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return shared.Copy(n.networkPrice), nil
}

func (n *Network) NodeAsk(_ context.Context, id shared.NodeID) (*uint256.Int, error) {
	nd, ok := n.node(id)
	if !ok {
		return nil, fmt.Errorf("%w: node %s", types.ErrProfileNotFound, id)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return shared.Copy(nd.ask), nil
}

// SetNodeAsk changes the ask a node advertises.
func (n *Network) SetNodeAsk(id shared.NodeID, ask *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	nd, ok := n.nodes[id]
	if !ok {
		return fmt.Errorf("%w: node %s", types.ErrProfileNotFound, id)
	}
	nd.ask = shared.Copy(ask)
	return nil
}

func (n *Network) Address() common.Address {
	return n.address
}
