package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

// Tx is a read-write view of the ledger bound to one Role. It is only valid
// inside the Update callback that created it.
type Tx struct {
	reader
	tr   *leveldb.Transaction
	role Role

	seq     uint64
	seqRead bool
	emitted []events.Event
	deltas  int
}

// Role returns the capability the transaction was opened with.
func (tx *Tx) Role() Role {
	return tx.role
}

func (tx *Tx) put(key, value []byte) error {
	if err := tx.tr.Put(key, value, nil); err != nil {
		return fmt.Errorf("writing %x: %w", key, err)
	}
	return nil
}

func (tx *Tx) putRecord(key []byte, v any) error {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	return tx.put(key, data)
}

func (tx *Tx) putU256(key []byte, v *uint256.Int) error {
	b := v.Bytes32()
	return tx.put(key, b[:])
}

func (tx *Tx) putU64(key []byte, v uint64) error {
	return tx.put(key, binary.BigEndian.AppendUint64(nil, v))
}

func (tx *Tx) nextSeq() (uint64, error) {
	if !tx.seqRead {
		seq, err := tx.u64(keySequence)
		if err != nil {
			return 0, err
		}
		tx.seq = seq
		tx.seqRead = true
	}
	tx.seq++
	return tx.seq, nil
}

func (tx *Tx) flush() error {
	if !tx.seqRead {
		return nil
	}
	return tx.putU64(keySequence, tx.seq)
}

func (tx *Tx) journal(d Delta) error {
	seq, err := tx.nextSeq()
	if err != nil {
		return err
	}
	d.Seq = seq
	tx.deltas++
	return tx.putRecord(deltaKey(d.Epoch, seq), &d)
}

// add increases the accumulator at key by v, journals the change and
// returns the new total.
func (tx *Tx) add(key []byte, v *uint256.Int, d Delta) (*uint256.Int, error) {
	current, err := tx.u256(key)
	if err != nil {
		return nil, err
	}
	total, overflow := new(uint256.Int).AddOverflow(current, v)
	if overflow {
		return nil, fmt.Errorf("%s overflow", d.Kind)
	}
	if err := tx.putU256(key, total); err != nil {
		return nil, err
	}
	d.Change = new(uint256.Int).Set(v)
	d.Total = total
	return total, tx.journal(d)
}

// sub decreases the accumulator at key by v. It fails when v exceeds the
// current value.
func (tx *Tx) sub(key []byte, v *uint256.Int, d Delta) (*uint256.Int, error) {
	current, err := tx.u256(key)
	if err != nil {
		return nil, err
	}
	if current.Lt(v) {
		return nil, fmt.Errorf("%w: %s %s < %s", types.ErrAmountExceedsStake, d.Kind, current.Dec(), v.Dec())
	}
	total := new(uint256.Int).Sub(current, v)
	if err := tx.putU256(key, total); err != nil {
		return nil, err
	}
	d.Change = new(uint256.Int).Set(v)
	d.Negative = true
	d.Total = total
	return total, tx.journal(d)
}

// Emit journals a notification and queues it for logging after commit.
func (tx *Tx) Emit(n events.Notification) error {
	ev := n.Event()
	seq, err := tx.nextSeq()
	if err != nil {
		return err
	}
	stored := storedEvent{Seq: seq, Type: ev.Type, Attributes: ev.SortedAttributes()}
	if err := tx.putRecord(eventKey(seq), &stored); err != nil {
		return err
	}
	tx.emitted = append(tx.emitted, *ev)
	return nil
}

func (tx *Tx) SetChallenge(node shared.NodeID, c *shared.Challenge) error {
	if err := tx.authorize(recChallenge); err != nil {
		return err
	}
	data, err := shared.EncodeChallenge(c)
	if err != nil {
		return err
	}
	return tx.put(challengeKey(node), data)
}

func (tx *Tx) SetActivePeriodStart(block uint64) error {
	if err := tx.authorize(recPeriodStart); err != nil {
		return err
	}
	return tx.putU64(keyPeriodStart, block)
}

func (tx *Tx) SetDurations(entries []DurationEntry) error {
	if err := tx.authorize(recDurations); err != nil {
		return err
	}
	return tx.putRecord(keyDurations, entries)
}

func (tx *Tx) AddNodeEpochScore(epoch uint64, node shared.NodeID, v *uint256.Int) (*uint256.Int, error) {
	if err := tx.authorize(recNodeEpochScore); err != nil {
		return nil, err
	}
	return tx.add(nodeEpochScoreKey(epoch, node), v, Delta{Epoch: epoch, Kind: DeltaNodeEpochScore, Node: node})
}

func (tx *Tx) AddAllNodesEpochScore(epoch uint64, v *uint256.Int) (*uint256.Int, error) {
	if err := tx.authorize(recAllNodesEpochScore); err != nil {
		return nil, err
	}
	return tx.add(allNodesEpochScoreKey(epoch), v, Delta{Epoch: epoch, Kind: DeltaAllNodesEpochScore})
}

func (tx *Tx) AddNodeProofPeriodScore(
	epoch uint64,
	node shared.NodeID,
	periodStart uint64,
	v *uint256.Int,
) (*uint256.Int, error) {
	if err := tx.authorize(recProofPeriodScore); err != nil {
		return nil, err
	}
	return tx.add(proofPeriodScoreKey(node, periodStart), v, Delta{Epoch: epoch, Kind: DeltaProofPeriodScore, Node: node})
}

func (tx *Tx) AddNodeEpochScorePerStake(epoch uint64, node shared.NodeID, v *uint256.Int) (*uint256.Int, error) {
	if err := tx.authorize(recScorePerStake); err != nil {
		return nil, err
	}
	return tx.add(scorePerStakeKey(epoch, node), v, Delta{Epoch: epoch, Kind: DeltaScorePerStake, Node: node})
}

func (tx *Tx) IncrementValidProofs(epoch uint64, node shared.NodeID) (uint64, error) {
	if err := tx.authorize(recValidProofs); err != nil {
		return 0, err
	}
	key := validProofsKey(epoch, node)
	count, err := tx.u64(key)
	if err != nil {
		return 0, err
	}
	count++
	if err := tx.putU64(key, count); err != nil {
		return 0, err
	}
	return count, tx.journal(Delta{
		Epoch:  epoch,
		Kind:   DeltaValidProofs,
		Node:   node,
		Change: uint256.NewInt(1),
		Total:  uint256.NewInt(count),
	})
}

func (tx *Tx) AddDelegatorEpochScore(
	epoch uint64,
	node shared.NodeID,
	d shared.DelegatorKey,
	v *uint256.Int,
) (*uint256.Int, error) {
	if err := tx.authorize(recDelegatorEpochScore); err != nil {
		return nil, err
	}
	return tx.add(delegatorScoreKey(epoch, node, d), v, Delta{
		Epoch:     epoch,
		Kind:      DeltaDelegatorEpochScore,
		Node:      node,
		Delegator: d,
	})
}

// SetDelegatorLastSettledScorePerStake moves a delegator checkpoint. The
// checkpoint follows a monotonic accumulator, so it never decreases.
func (tx *Tx) SetDelegatorLastSettledScorePerStake(
	epoch uint64,
	node shared.NodeID,
	d shared.DelegatorKey,
	v *uint256.Int,
) error {
	if err := tx.authorize(recDelegatorCheckpoint); err != nil {
		return err
	}
	key := delegatorCheckpointKey(epoch, node, d)
	current, err := tx.u256(key)
	if err != nil {
		return err
	}
	if v.Lt(current) {
		return fmt.Errorf("checkpoint for epoch %d node %s would move backwards", epoch, node)
	}
	if v.Eq(current) {
		return nil
	}
	if err := tx.putU256(key, v); err != nil {
		return err
	}
	return tx.journal(Delta{
		Epoch:     epoch,
		Kind:      DeltaDelegatorCheckpoint,
		Node:      node,
		Delegator: d,
		Change:    new(uint256.Int).Sub(v, current),
		Total:     new(uint256.Int).Set(v),
	})
}

// IncreaseStake adds amount to the delegator's stake base, the node stake
// and the total stake.
func (tx *Tx) IncreaseStake(epoch uint64, node shared.NodeID, d shared.DelegatorKey, amount *uint256.Int) error {
	if err := tx.authorize(recStake); err != nil {
		return err
	}
	if _, err := tx.add(stakeBaseKey(node, d), amount, Delta{
		Epoch: epoch, Kind: DeltaStakeBase, Node: node, Delegator: d,
	}); err != nil {
		return err
	}
	if _, err := tx.add(nodeStakeKey(node), amount, Delta{Epoch: epoch, Kind: DeltaNodeStake, Node: node}); err != nil {
		return err
	}
	_, err := tx.add(keyTotalStake, amount, Delta{Epoch: epoch, Kind: DeltaTotalStake})
	return err
}

// DecreaseStake is the inverse of IncreaseStake. It fails if amount exceeds
// the delegator's stake base.
func (tx *Tx) DecreaseStake(epoch uint64, node shared.NodeID, d shared.DelegatorKey, amount *uint256.Int) error {
	if err := tx.authorize(recStake); err != nil {
		return err
	}
	if _, err := tx.sub(stakeBaseKey(node, d), amount, Delta{
		Epoch: epoch, Kind: DeltaStakeBase, Node: node, Delegator: d,
	}); err != nil {
		return err
	}
	if _, err := tx.sub(nodeStakeKey(node), amount, Delta{Epoch: epoch, Kind: DeltaNodeStake, Node: node}); err != nil {
		return err
	}
	_, err := tx.sub(keyTotalStake, amount, Delta{Epoch: epoch, Kind: DeltaTotalStake})
	return err
}

// SetDelegatorInfo stores info and journals any change of rolling rewards.
func (tx *Tx) SetDelegatorInfo(epoch uint64, node shared.NodeID, d shared.DelegatorKey, info *DelegatorInfo) error {
	if err := tx.authorize(recDelegatorInfo); err != nil {
		return err
	}
	prev, _, err := tx.DelegatorInfo(node, d)
	if err != nil {
		return err
	}
	before := new(uint256.Int)
	if prev != nil {
		before = prev.RollingRewards
	}
	after := shared.Copy(info.RollingRewards)
	stored := *info
	stored.RollingRewards = after
	if err := tx.putRecord(delegatorInfoKey(node, d), &stored); err != nil {
		return err
	}
	if before.Eq(after) {
		return nil
	}
	return tx.journal(Delta{
		Epoch:     epoch,
		Kind:      DeltaRollingRewards,
		Node:      node,
		Delegator: d,
		Change:    shared.AbsDiff(before, after),
		Negative:  after.Lt(before),
		Total:     new(uint256.Int).Set(after),
	})
}

func (tx *Tx) SetOperatorFees(node shared.NodeID, fees []OperatorFee) error {
	if err := tx.authorize(recOperatorFees); err != nil {
		return err
	}
	return tx.putRecord(operatorFeesKey(node), fees)
}

func (tx *Tx) AddOperatorFeeBalance(epoch uint64, node shared.NodeID, v *uint256.Int) (*uint256.Int, error) {
	if err := tx.authorize(recOperatorFeeBalance); err != nil {
		return nil, err
	}
	return tx.add(feeBalanceKey(node), v, Delta{Epoch: epoch, Kind: DeltaOperatorFeeBalance, Node: node})
}

func (tx *Tx) SubOperatorFeeBalance(epoch uint64, node shared.NodeID, v *uint256.Int) (*uint256.Int, error) {
	if err := tx.authorize(recOperatorFeeBalance); err != nil {
		return nil, err
	}
	return tx.sub(feeBalanceKey(node), v, Delta{Epoch: epoch, Kind: DeltaOperatorFeeBalance, Node: node})
}

func (tx *Tx) AddOperatorFeesPaidOut(node shared.NodeID, v *uint256.Int) error {
	if err := tx.authorize(recOperatorFeeBalance); err != nil {
		return err
	}
	current, err := tx.u256(feesPaidOutKey(node))
	if err != nil {
		return err
	}
	return tx.putU256(feesPaidOutKey(node), new(uint256.Int).Add(current, v))
}

// SetNodeEpochRewards stores a node's rewards for an epoch. They are
// written once.
func (tx *Tx) SetNodeEpochRewards(node shared.NodeID, epoch uint64, r *NodeEpochRewards) error {
	if err := tx.authorize(recNodeEpochRewards); err != nil {
		return err
	}
	_, exists, err := tx.NodeEpochRewards(node, epoch)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("rewards of node %s for epoch %d already settled", node, epoch)
	}
	return tx.putRecord(nodeEpochRewardsKey(node, epoch), r)
}

func (tx *Tx) SetNodeRecord(node shared.NodeID, r *NodeRecord) error {
	if err := tx.authorize(recNodeRecord); err != nil {
		return err
	}
	return tx.putRecord(nodeRecordKey(node), r)
}

func (tx *Tx) SetWithdrawalRequest(node shared.NodeID, d shared.DelegatorKey, r *WithdrawalRequest) error {
	if err := tx.authorize(recWithdrawal); err != nil {
		return err
	}
	return tx.putRecord(withdrawalKey(node, d), r)
}

func (tx *Tx) DeleteWithdrawalRequest(node shared.NodeID, d shared.DelegatorKey) error {
	if err := tx.authorize(recWithdrawal); err != nil {
		return err
	}
	return tx.tr.Delete(withdrawalKey(node, d), nil)
}

func (tx *Tx) SetOperatorFeeWithdrawalRequest(node shared.NodeID, r *WithdrawalRequest) error {
	if err := tx.authorize(recOperatorFeeWithdrawal); err != nil {
		return err
	}
	return tx.putRecord(feeWithdrawalKey(node), r)
}

func (tx *Tx) DeleteOperatorFeeWithdrawalRequest(node shared.NodeID) error {
	if err := tx.authorize(recOperatorFeeWithdrawal); err != nil {
		return err
	}
	return tx.tr.Delete(feeWithdrawalKey(node), nil)
}
