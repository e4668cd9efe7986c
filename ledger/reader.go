package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/shared"
)

// Reader is the read side of the ledger, shared by transactions and
// snapshot views. Missing accumulators read as zero.
type Reader interface {
	Challenge(node shared.NodeID) (*shared.Challenge, bool, error)
	ActivePeriodStart() (uint64, error)
	Durations() ([]DurationEntry, error)

	NodeEpochScore(epoch uint64, node shared.NodeID) (*uint256.Int, error)
	AllNodesEpochScore(epoch uint64) (*uint256.Int, error)
	NodeProofPeriodScore(node shared.NodeID, periodStart uint64) (*uint256.Int, error)
	NodeEpochScorePerStake(epoch uint64, node shared.NodeID) (*uint256.Int, error)
	EpochNodeValidProofsCount(epoch uint64, node shared.NodeID) (uint64, error)

	DelegatorEpochScore(epoch uint64, node shared.NodeID, d shared.DelegatorKey) (*uint256.Int, error)
	DelegatorLastSettledScorePerStake(epoch uint64, node shared.NodeID, d shared.DelegatorKey) (*uint256.Int, error)
	DelegatorInfo(node shared.NodeID, d shared.DelegatorKey) (*DelegatorInfo, bool, error)

	DelegatorStakeBase(node shared.NodeID, d shared.DelegatorKey) (*uint256.Int, error)
	NodeStake(node shared.NodeID) (*uint256.Int, error)
	TotalStake() (*uint256.Int, error)

	OperatorFees(node shared.NodeID) ([]OperatorFee, error)
	OperatorFeeBalance(node shared.NodeID) (*uint256.Int, error)
	OperatorFeesPaidOut(node shared.NodeID) (*uint256.Int, error)
	NodeEpochRewards(node shared.NodeID, epoch uint64) (*NodeEpochRewards, bool, error)
	NodeRecord(node shared.NodeID) (*NodeRecord, bool, error)

	WithdrawalRequest(node shared.NodeID, d shared.DelegatorKey) (*WithdrawalRequest, bool, error)
	OperatorFeeWithdrawalRequest(node shared.NodeID) (*WithdrawalRequest, bool, error)

	Deltas(epoch uint64) ([]Delta, error)
	Events(from uint64, limit int) ([]events.Record, error)
}

type getter interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

type reader struct {
	db getter
}

var _ Reader = reader{}

// get returns nil without error for a missing key.
func (r reader) get(key []byte) ([]byte, error) {
	v, err := r.db.Get(key, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reading %x: %w", key, err)
	}
	return v, nil
}

func (r reader) u256(key []byte) (*uint256.Int, error) {
	v, err := r.get(key)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(v), nil
}

func (r reader) u64(key []byte) (uint64, error) {
	v, err := r.get(key)
	if err != nil || v == nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt counter at %x: %d bytes", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// decode reads an rlp record into out and reports whether it existed.
func (r reader) decode(key []byte, out any) (bool, error) {
	v, err := r.get(key)
	if err != nil || v == nil {
		return false, err
	}
	if err := rlp.DecodeBytes(v, out); err != nil {
		return false, fmt.Errorf("decoding record at %x: %w", key, err)
	}
	return true, nil
}

func (r reader) Challenge(node shared.NodeID) (*shared.Challenge, bool, error) {
	v, err := r.get(challengeKey(node))
	if err != nil || v == nil {
		return nil, false, err
	}
	c, err := shared.DecodeChallenge(v)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (r reader) ActivePeriodStart() (uint64, error) {
	return r.u64(keyPeriodStart)
}

func (r reader) Durations() ([]DurationEntry, error) {
	var entries []DurationEntry
	if _, err := r.decode(keyDurations, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r reader) NodeEpochScore(epoch uint64, node shared.NodeID) (*uint256.Int, error) {
	return r.u256(nodeEpochScoreKey(epoch, node))
}

func (r reader) AllNodesEpochScore(epoch uint64) (*uint256.Int, error) {
	return r.u256(allNodesEpochScoreKey(epoch))
}

func (r reader) NodeProofPeriodScore(node shared.NodeID, periodStart uint64) (*uint256.Int, error) {
	return r.u256(proofPeriodScoreKey(node, periodStart))
}

func (r reader) NodeEpochScorePerStake(epoch uint64, node shared.NodeID) (*uint256.Int, error) {
	return r.u256(scorePerStakeKey(epoch, node))
}

func (r reader) EpochNodeValidProofsCount(epoch uint64, node shared.NodeID) (uint64, error) {
	return r.u64(validProofsKey(epoch, node))
}

func (r reader) DelegatorEpochScore(epoch uint64, node shared.NodeID, d shared.DelegatorKey) (*uint256.Int, error) {
	return r.u256(delegatorScoreKey(epoch, node, d))
}

func (r reader) DelegatorLastSettledScorePerStake(
	epoch uint64,
	node shared.NodeID,
	d shared.DelegatorKey,
) (*uint256.Int, error) {
	return r.u256(delegatorCheckpointKey(epoch, node, d))
}

func (r reader) DelegatorInfo(node shared.NodeID, d shared.DelegatorKey) (*DelegatorInfo, bool, error) {
	info := &DelegatorInfo{}
	ok, err := r.decode(delegatorInfoKey(node, d), info)
	if err != nil || !ok {
		return nil, false, err
	}
	info.RollingRewards = shared.Copy(info.RollingRewards)
	return info, true, nil
}

func (r reader) DelegatorStakeBase(node shared.NodeID, d shared.DelegatorKey) (*uint256.Int, error) {
	return r.u256(stakeBaseKey(node, d))
}

func (r reader) NodeStake(node shared.NodeID) (*uint256.Int, error) {
	return r.u256(nodeStakeKey(node))
}

func (r reader) TotalStake() (*uint256.Int, error) {
	return r.u256(keyTotalStake)
}

func (r reader) OperatorFees(node shared.NodeID) ([]OperatorFee, error) {
	var fees []OperatorFee
	if _, err := r.decode(operatorFeesKey(node), &fees); err != nil {
		return nil, err
	}
	return fees, nil
}

func (r reader) OperatorFeeBalance(node shared.NodeID) (*uint256.Int, error) {
	return r.u256(feeBalanceKey(node))
}

func (r reader) OperatorFeesPaidOut(node shared.NodeID) (*uint256.Int, error) {
	return r.u256(feesPaidOutKey(node))
}

func (r reader) NodeEpochRewards(node shared.NodeID, epoch uint64) (*NodeEpochRewards, bool, error) {
	rewards := &NodeEpochRewards{}
	ok, err := r.decode(nodeEpochRewardsKey(node, epoch), rewards)
	if err != nil || !ok {
		return nil, false, err
	}
	rewards.Gross = shared.Copy(rewards.Gross)
	rewards.Fee = shared.Copy(rewards.Fee)
	rewards.Net = shared.Copy(rewards.Net)
	return rewards, true, nil
}

func (r reader) NodeRecord(node shared.NodeID) (*NodeRecord, bool, error) {
	rec := &NodeRecord{}
	ok, err := r.decode(nodeRecordKey(node), rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

func (r reader) WithdrawalRequest(node shared.NodeID, d shared.DelegatorKey) (*WithdrawalRequest, bool, error) {
	return r.withdrawal(withdrawalKey(node, d))
}

func (r reader) OperatorFeeWithdrawalRequest(node shared.NodeID) (*WithdrawalRequest, bool, error) {
	return r.withdrawal(feeWithdrawalKey(node))
}

func (r reader) withdrawal(key []byte) (*WithdrawalRequest, bool, error) {
	req := &WithdrawalRequest{}
	ok, err := r.decode(key, req)
	if err != nil || !ok {
		return nil, false, err
	}
	req.Amount = shared.Copy(req.Amount)
	return req, true, nil
}

// Deltas returns the journal rows of an epoch in sequence order.
func (r reader) Deltas(epoch uint64) ([]Delta, error) {
	iter := r.db.NewIterator(util.BytesPrefix(deltaEpochPrefix(epoch)), nil)
	defer iter.Release()

	var deltas []Delta
	for iter.Next() {
		var d Delta
		if err := rlp.DecodeBytes(iter.Value(), &d); err != nil {
			return nil, fmt.Errorf("decoding delta %x: %w", iter.Key(), err)
		}
		d.Change = shared.Copy(d.Change)
		d.Total = shared.Copy(d.Total)
		deltas = append(deltas, d)
	}
	return deltas, iter.Error()
}

// Events returns up to limit journaled events with sequence >= from.
func (r reader) Events(from uint64, limit int) ([]events.Record, error) {
	iter := r.db.NewIterator(&util.Range{Start: eventKey(from), Limit: util.BytesPrefix(prefixEvents).Limit}, nil)
	defer iter.Release()

	var records []events.Record
	for iter.Next() {
		if limit > 0 && len(records) >= limit {
			break
		}
		var stored storedEvent
		if err := rlp.DecodeBytes(iter.Value(), &stored); err != nil {
			return nil, fmt.Errorf("decoding event %x: %w", iter.Key(), err)
		}
		records = append(records, stored.record())
	}
	return records, iter.Error()
}
