package staking

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

var maxFeeBps = uint256.NewInt(shared.MaxFeeBps)

// ClaimDelegatorRewards settles one epoch of the delegator's rewards on
// node. Epochs are claimed strictly in order. Claiming the last finalized
// epoch before the current one folds all rolling rewards into stake.
func (e *Engine) ClaimDelegatorRewards(
	ctx context.Context,
	node shared.NodeID,
	epoch uint64,
	delegator common.Address,
) (*events.DelegatorRewardsClaimed, error) {
	claimed, err := e.BatchClaimDelegatorRewards(ctx, node, []uint64{epoch}, delegator)
	if err != nil {
		return nil, err
	}
	return claimed[0], nil
}

// BatchClaimDelegatorRewards claims epochs in the given order as one unit:
// either every epoch is claimed or none is.
func (e *Engine) BatchClaimDelegatorRewards(
	ctx context.Context,
	node shared.NodeID,
	epochList []uint64,
	delegator common.Address,
) ([]*events.DelegatorRewardsClaimed, error) {
	claimed, err := e.batchClaim(ctx, node, epochList, delegator)
	observe("claim", err)
	return claimed, err
}

func (e *Engine) batchClaim(
	ctx context.Context,
	node shared.NodeID,
	epochList []uint64,
	delegator common.Address,
) ([]*events.DelegatorRewardsClaimed, error) {
	if len(epochList) == 0 {
		return nil, fmt.Errorf("%w: no epochs to claim", types.ErrZeroAmount)
	}
	ep, err := e.epochs(ctx)
	if err != nil {
		return nil, err
	}
	d := shared.NewDelegatorKey(delegator)
	var claimed []*events.DelegatorRewardsClaimed
	err = e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		claimed = claimed[:0]
		for _, epoch := range epochList {
			c, err := e.claim(ctx, tx, ep, node, epoch, d, delegator)
			if err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
			claimed = append(claimed, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	for _, c := range claimed {
		claimsTotal.WithLabelValues(strconv.FormatBool(c.Restaked)).Inc()
		logger.Info("delegator rewards claimed",
			zap.Stringer("node", node),
			zap.Uint64("epoch", c.Epoch),
			zap.Stringer("delegator", delegator),
			zap.Stringer("reward", c.Reward),
			zap.Bool("restaked", c.Restaked),
		)
	}
	return claimed, nil
}

func (e *Engine) claim(
	ctx context.Context,
	tx *ledger.Tx,
	ep epochs,
	node shared.NodeID,
	epoch uint64,
	d shared.DelegatorKey,
	delegator common.Address,
) (*events.DelegatorRewardsClaimed, error) {
	info, ok, err := tx.DelegatorInfo(node, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: node %s", types.ErrDelegatorNotFound, node)
	}
	if !ep.claimable(epoch) {
		return nil, types.ErrEpochNotFinalised
	}
	if epoch <= info.LastClaimedEpoch {
		return nil, types.ErrEpochAlreadyClaimed
	}
	if epoch > info.LastClaimedEpoch+1 {
		return nil, fmt.Errorf("%w: next claimable epoch is %d", types.ErrClaimOlderEpochsFirst, info.LastClaimedEpoch+1)
	}

	delegatorScore, err := settle(tx, epoch, node, d)
	if err != nil {
		return nil, err
	}
	nodeScore, err := tx.NodeEpochScore(epoch, node)
	if err != nil {
		return nil, err
	}
	reward := shared.Zero()
	if !delegatorScore.IsZero() && !nodeScore.IsZero() {
		rewards, err := e.nodeEpochRewards(ctx, tx, ep.current, node, epoch)
		if err != nil {
			return nil, err
		}
		reward = shared.MulDiv(delegatorScore, rewards.Net, nodeScore)
	}

	info.LastClaimedEpoch = epoch
	info.RollingRewards = new(uint256.Int).Add(shared.Copy(info.RollingRewards), reward)
	restaked := false
	if epoch == ep.lastClaimable() && !info.RollingRewards.IsZero() {
		rolling := info.RollingRewards
		info.RollingRewards = shared.Zero()
		// The fold lands in the current epoch, so the score of every later
		// epoch must be settled on the old base first.
		if err := settleOpen(tx, ep.current, epoch, node, d); err != nil {
			return nil, err
		}
		if err := tx.IncreaseStake(ep.current, node, d, rolling); err != nil {
			return nil, err
		}
		info.LastStakeHeldEpoch = ep.current
		restaked = true
	}
	if err := tx.SetDelegatorInfo(ep.current, node, d, info); err != nil {
		return nil, err
	}
	base, err := tx.DelegatorStakeBase(node, d)
	if err != nil {
		return nil, err
	}
	claimed := &events.DelegatorRewardsClaimed{
		Node:           node,
		Epoch:          epoch,
		Delegator:      delegator,
		Reward:         reward,
		RollingRewards: info.RollingRewards,
		StakeBase:      base,
		Restaked:       restaked,
	}
	return claimed, tx.Emit(*claimed)
}

// nodeEpochRewards returns the node's share of the epoch pool, computing
// and storing it on first use. The operator fee of the epoch is credited
// to the node's fee balance at that moment.
func (e *Engine) nodeEpochRewards(
	ctx context.Context,
	tx *ledger.Tx,
	current uint64,
	node shared.NodeID,
	epoch uint64,
) (*ledger.NodeEpochRewards, error) {
	rewards, exists, err := tx.NodeEpochRewards(node, epoch)
	if err != nil || exists {
		return rewards, err
	}

	nodeScore, err := tx.NodeEpochScore(epoch, node)
	if err != nil {
		return nil, err
	}
	allScore, err := tx.AllNodesEpochScore(epoch)
	if err != nil {
		return nil, err
	}
	gross := shared.Zero()
	if !nodeScore.IsZero() && !allScore.IsZero() {
		pool, err := e.pool.EpochPool(ctx, epoch)
		if err != nil {
			return nil, fmt.Errorf("reading reward pool of epoch %d: %w", epoch, err)
		}
		gross = shared.MulDiv(shared.Copy(pool), nodeScore, allScore)
	}
	feeBps, err := e.feeForEpoch(ctx, tx, node, epoch)
	if err != nil {
		return nil, err
	}
	fee := shared.MulDiv(gross, uint256.NewInt(uint64(feeBps)), maxFeeBps)
	rewards = &ledger.NodeEpochRewards{
		Gross:  gross,
		Fee:    fee,
		Net:    new(uint256.Int).Sub(gross, fee),
		FeeBps: feeBps,
	}
	if err := tx.SetNodeEpochRewards(node, epoch, rewards); err != nil {
		return nil, err
	}
	if !fee.IsZero() {
		if _, err := tx.AddOperatorFeeBalance(current, node, fee); err != nil {
			return nil, err
		}
	}
	if err := advanceFeeWatermark(tx, node, epoch); err != nil {
		return nil, err
	}
	return rewards, tx.Emit(events.NodeEpochRewardsSettled{
		Node:   node,
		Epoch:  epoch,
		Gross:  rewards.Gross,
		Fee:    rewards.Fee,
		Net:    rewards.Net,
		FeeBps: feeBps,
	})
}

// advanceFeeWatermark moves FeeSettledThrough over every contiguous epoch
// whose rewards are settled.
func advanceFeeWatermark(tx *ledger.Tx, node shared.NodeID, epoch uint64) error {
	rec, exists, err := tx.NodeRecord(node)
	if err != nil || !exists || rec.FeeSettledThrough+1 != epoch {
		return err
	}
	for {
		_, settled, err := tx.NodeEpochRewards(node, rec.FeeSettledThrough+1)
		if err != nil {
			return err
		}
		if !settled {
			break
		}
		rec.FeeSettledThrough++
	}
	return tx.SetNodeRecord(node, rec)
}

// SettleOperatorFee computes node rewards for a finalized epoch and credits
// the operator fee. Settling an already settled epoch returns the stored
// result.
func (e *Engine) SettleOperatorFee(ctx context.Context, node shared.NodeID, epoch uint64) (*ledger.NodeEpochRewards, error) {
	ep, err := e.epochs(ctx)
	if err != nil {
		return nil, err
	}
	if !ep.claimable(epoch) {
		observe("settle_fee", types.ErrEpochNotFinalised)
		return nil, types.ErrEpochNotFinalised
	}
	var rewards *ledger.NodeEpochRewards
	err = e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		rewards, err = e.nodeEpochRewards(ctx, tx, ep.current, node, epoch)
		return err
	})
	observe("settle_fee", err)
	return rewards, err
}
