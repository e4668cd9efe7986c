package staking

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

// Engine settles delegated stake and rewards.
type Engine struct {
	store    *ledger.Store
	chain    Chain
	identity Identity
	custody  Custody
	pool     RewardPool
	cfg      Config
}

type engineOptions struct {
	cfg Config
}

// OptionFunc configures an Engine.
type OptionFunc func(*engineOptions) error

// WithConfig replaces the default staking configuration.
func WithConfig(cfg Config) OptionFunc {
	return func(o *engineOptions) error {
		if cfg.WithdrawalDelay < 0 || cfg.OperatorFeeDelay < 0 {
			return fmt.Errorf("negative delay in staking config")
		}
		o.cfg = cfg
		return nil
	}
}

// New returns an Engine keeping its books in store.
func New(
	store *ledger.Store,
	chain Chain,
	identity Identity,
	custody Custody,
	pool RewardPool,
	opts ...OptionFunc,
) (*Engine, error) {
	options := &engineOptions{cfg: DefaultConfig()}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return &Engine{
		store:    store,
		chain:    chain,
		identity: identity,
		custody:  custody,
		pool:     pool,
		cfg:      options.cfg,
	}, nil
}

type epochs struct {
	current       uint64
	lastFinalized uint64
}

// epochs reads the epoch clock. Nothing can be settled before epoch 1.
func (e *Engine) epochs(ctx context.Context) (epochs, error) {
	current, err := e.chain.CurrentEpoch(ctx)
	if err != nil {
		return epochs{}, fmt.Errorf("reading current epoch: %w", err)
	}
	if current == 0 {
		return epochs{}, types.ErrEpochNotStarted
	}
	finalized, err := e.chain.LastFinalizedEpoch(ctx)
	if err != nil {
		return epochs{}, fmt.Errorf("reading last finalized epoch: %w", err)
	}
	return epochs{current: current, lastFinalized: finalized}, nil
}

// claimable reports whether rewards of epoch may be claimed.
func (ep epochs) claimable(epoch uint64) bool {
	return epoch <= ep.lastFinalized && epoch < ep.current
}

// lastClaimable is the newest epoch whose rewards may be claimed. It trails
// the current epoch by more than one while finalization lags.
func (ep epochs) lastClaimable() uint64 {
	return min(ep.lastFinalized, ep.current-1)
}

func (e *Engine) requireProfile(ctx context.Context, node shared.NodeID) error {
	ok, err := e.identity.ProfileExists(ctx, node)
	if err != nil {
		return fmt.Errorf("checking profile: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: node %s", types.ErrProfileNotFound, node)
	}
	return nil
}

func (e *Engine) requireAdmin(ctx context.Context, node shared.NodeID, caller common.Address) error {
	ok, err := e.identity.IsAdminKey(ctx, node, caller)
	if err != nil {
		return fmt.Errorf("checking admin key: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s for node %s", types.ErrNotAdminKey, caller.Hex(), node)
	}
	return nil
}

func requirePositive(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return types.ErrZeroAmount
	}
	return nil
}

// settle brings the delegator's score for epoch up to the node's current
// score-per-stake. It must run before the stake base changes.
func settle(tx *ledger.Tx, epoch uint64, node shared.NodeID, d shared.DelegatorKey) (*uint256.Int, error) {
	perStake, err := tx.NodeEpochScorePerStake(epoch, node)
	if err != nil {
		return nil, err
	}
	last, err := tx.DelegatorLastSettledScorePerStake(epoch, node, d)
	if err != nil {
		return nil, err
	}
	if !last.Lt(perStake) {
		return tx.DelegatorEpochScore(epoch, node, d)
	}
	base, err := tx.DelegatorStakeBase(node, d)
	if err != nil {
		return nil, err
	}
	earned := shared.MulDiv(base, new(uint256.Int).Sub(perStake, last), shared.Scale18)
	total, err := tx.DelegatorEpochScore(epoch, node, d)
	if err != nil {
		return nil, err
	}
	if !earned.IsZero() {
		if total, err = tx.AddDelegatorEpochScore(epoch, node, d, earned); err != nil {
			return nil, err
		}
	}
	if err := tx.SetDelegatorLastSettledScorePerStake(epoch, node, d, perStake); err != nil {
		return nil, err
	}
	return total, tx.Emit(events.DelegatorScoreSettled{
		Epoch:         epoch,
		Node:          node,
		Delegator:     d,
		Earned:        earned,
		Total:         total,
		ScorePerStake: perStake,
	})
}

// settleOpen settles every epoch after lastClaimed up to current. Epochs
// that ended without being claimed keep the base they were earned on.
func settleOpen(tx *ledger.Tx, current, lastClaimed uint64, node shared.NodeID, d shared.DelegatorKey) error {
	for epoch := lastClaimed + 1; epoch <= current; epoch++ {
		if _, err := settle(tx, epoch, node, d); err != nil {
			return err
		}
	}
	return nil
}

// catchUp marks epochs without stake as claimed. A delegator whose stake
// and rolling rewards are gone owes nothing for epochs after the last one
// they held stake in.
func catchUp(tx *ledger.Tx, ep epochs, node shared.NodeID, d shared.DelegatorKey, info *ledger.DelegatorInfo) error {
	last := ep.lastClaimable()
	if info.LastClaimedEpoch >= last {
		return nil
	}
	if !shared.Copy(info.RollingRewards).IsZero() || info.LastClaimedEpoch < info.LastStakeHeldEpoch {
		return nil
	}
	base, err := tx.DelegatorStakeBase(node, d)
	if err != nil || !base.IsZero() {
		return err
	}
	info.LastClaimedEpoch = last
	return tx.SetDelegatorInfo(ep.current, node, d, info)
}

// claimedThroughPrevious loads the delegator's record and fails unless
// every claimable epoch has been claimed.
func claimedThroughPrevious(
	tx *ledger.Tx,
	ep epochs,
	node shared.NodeID,
	d shared.DelegatorKey,
) (*ledger.DelegatorInfo, error) {
	info, ok, err := tx.DelegatorInfo(node, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: node %s", types.ErrDelegatorNotFound, node)
	}
	if err := catchUp(tx, ep, node, d, info); err != nil {
		return nil, err
	}
	last := ep.lastClaimable()
	switch {
	case info.LastClaimedEpoch >= last:
		return info, nil
	case info.LastClaimedEpoch+1 == last:
		return nil, fmt.Errorf("%w: epoch %d", types.ErrClaimPreviousEpoch, last)
	default:
		return nil, fmt.Errorf("%w: last claimed %d, claimable through %d",
			types.ErrClaimAllPreviousEpochs, info.LastClaimedEpoch, last)
	}
}

// addStake credits amount to the delegator's stake base on node. A first
// delegation starts the delegator's claim history at the current epoch.
func addStake(tx *ledger.Tx, ep epochs, node shared.NodeID, d shared.DelegatorKey, amount *uint256.Int) error {
	info, ok, err := tx.DelegatorInfo(node, d)
	if err != nil {
		return err
	}
	if ok {
		if info, err = claimedThroughPrevious(tx, ep, node, d); err != nil {
			return err
		}
	} else {
		info = &ledger.DelegatorInfo{LastClaimedEpoch: ep.current - 1, RollingRewards: shared.Zero()}
	}
	if err := settleOpen(tx, ep.current, info.LastClaimedEpoch, node, d); err != nil {
		return err
	}
	if err := tx.IncreaseStake(ep.current, node, d, amount); err != nil {
		return err
	}
	info.LastStakeHeldEpoch = ep.current
	if err := tx.SetDelegatorInfo(ep.current, node, d, info); err != nil {
		return err
	}

	_, exists, err := tx.NodeRecord(node)
	if err != nil || exists {
		return err
	}
	return tx.SetNodeRecord(node, &ledger.NodeRecord{FirstStakeEpoch: ep.current, FeeSettledThrough: ep.current - 1})
}

// removeStake debits amount from a delegator whose claims are caught up.
func removeStake(tx *ledger.Tx, ep epochs, node shared.NodeID, d shared.DelegatorKey, amount *uint256.Int) error {
	info, err := claimedThroughPrevious(tx, ep, node, d)
	if err != nil {
		return err
	}
	base, err := tx.DelegatorStakeBase(node, d)
	if err != nil {
		return err
	}
	if base.Lt(amount) {
		return fmt.Errorf("%w: %s > %s", types.ErrAmountExceedsStake, amount.Dec(), base.Dec())
	}
	if err := settleOpen(tx, ep.current, info.LastClaimedEpoch, node, d); err != nil {
		return err
	}
	if err := tx.DecreaseStake(ep.current, node, d, amount); err != nil {
		return err
	}
	info.LastStakeHeldEpoch = ep.current
	return tx.SetDelegatorInfo(ep.current, node, d, info)
}

// Stake moves amount from the delegator's account to node.
func (e *Engine) Stake(ctx context.Context, node shared.NodeID, delegator common.Address, amount *uint256.Int) error {
	err := e.stake(ctx, node, delegator, amount)
	observe("stake", err)
	return err
}

func (e *Engine) stake(ctx context.Context, node shared.NodeID, delegator common.Address, amount *uint256.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := e.requireProfile(ctx, node); err != nil {
		return err
	}
	ep, err := e.epochs(ctx)
	if err != nil {
		return err
	}
	d := shared.NewDelegatorKey(delegator)
	err = e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		if err := addStake(tx, ep, node, d, amount); err != nil {
			return err
		}
		base, err := tx.DelegatorStakeBase(node, d)
		if err != nil {
			return err
		}
		nodeStake, err := tx.NodeStake(node)
		if err != nil {
			return err
		}
		if err := tx.Emit(events.StakeIncreased{
			Node:      node,
			Delegator: delegator,
			Amount:    amount,
			StakeBase: base,
			NodeStake: nodeStake,
		}); err != nil {
			return err
		}
		if err := e.custody.Debit(ctx, delegator, amount); err != nil {
			return fmt.Errorf("debiting %s: %w", delegator.Hex(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("stake increased",
		zap.Stringer("node", node),
		zap.Stringer("delegator", delegator),
		zap.Stringer("amount", amount),
	)
	return nil
}

// Redelegate moves stake between nodes without touching custody. Claims on
// both nodes must be caught up.
func (e *Engine) Redelegate(
	ctx context.Context,
	from, to shared.NodeID,
	delegator common.Address,
	amount *uint256.Int,
) error {
	err := e.redelegate(ctx, from, to, delegator, amount)
	observe("redelegate", err)
	return err
}

func (e *Engine) redelegate(
	ctx context.Context,
	from, to shared.NodeID,
	delegator common.Address,
	amount *uint256.Int,
) error {
	if from == to {
		return types.ErrSameNode
	}
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := e.requireProfile(ctx, to); err != nil {
		return err
	}
	ep, err := e.epochs(ctx)
	if err != nil {
		return err
	}
	d := shared.NewDelegatorKey(delegator)
	return e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		if err := removeStake(tx, ep, from, d, amount); err != nil {
			return fmt.Errorf("node %s: %w", from, err)
		}
		if err := addStake(tx, ep, to, d, amount); err != nil {
			return fmt.Errorf("node %s: %w", to, err)
		}
		return tx.Emit(events.StakeRedelegated{From: from, To: to, Delegator: delegator, Amount: amount})
	})
}

// DelegatorState is a delegator's position on one node.
type DelegatorState struct {
	StakeBase          *uint256.Int              `json:"stakeBase"`
	LastClaimedEpoch   uint64                    `json:"lastClaimedEpoch"`
	LastStakeHeldEpoch uint64                    `json:"lastStakeHeldEpoch"`
	RollingRewards     *uint256.Int              `json:"rollingRewards"`
	Withdrawal         *ledger.WithdrawalRequest `json:"withdrawal,omitempty"`
}

// Delegator returns the delegator's position on node.
func (e *Engine) Delegator(ctx context.Context, node shared.NodeID, delegator common.Address) (*DelegatorState, error) {
	d := shared.NewDelegatorKey(delegator)
	var state *DelegatorState
	err := e.store.View(ctx, func(r ledger.Reader) error {
		info, ok, err := r.DelegatorInfo(node, d)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: node %s", types.ErrDelegatorNotFound, node)
		}
		base, err := r.DelegatorStakeBase(node, d)
		if err != nil {
			return err
		}
		req, _, err := r.WithdrawalRequest(node, d)
		if err != nil {
			return err
		}
		state = &DelegatorState{
			StakeBase:          base,
			LastClaimedEpoch:   info.LastClaimedEpoch,
			LastStakeHeldEpoch: info.LastStakeHeldEpoch,
			RollingRewards:     info.RollingRewards,
			Withdrawal:         req,
		}
		return nil
	})
	return state, err
}
