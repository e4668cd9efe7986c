package ledger

import (
	"github.com/holiman/uint256"
	"go.uber.org/zap/zapcore"

	"github.com/kcnet/incentives/shared"
)

// DurationEntry is one step of the proof period duration schedule.
type DurationEntry struct {
	DurationInBlocks uint64 `json:"durationInBlocks"`
	EffectiveEpoch   uint64 `json:"effectiveEpoch"`
}

// DelegatorInfo tracks a delegator's claim progress on one node. Its
// presence means the delegator has staked on the node at least once.
type DelegatorInfo struct {
	LastClaimedEpoch   uint64
	LastStakeHeldEpoch uint64
	RollingRewards     *uint256.Int
}

func (d *DelegatorInfo) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("last_claimed_epoch", d.LastClaimedEpoch)
	enc.AddUint64("last_stake_held_epoch", d.LastStakeHeldEpoch)
	enc.AddString("rolling_rewards", shared.Copy(d.RollingRewards).Dec())
	return nil
}

// OperatorFee is an entry of a node's fee history. Only the last entry can
// be pending.
type OperatorFee struct {
	FeeBps        uint16 `json:"feeBps"`
	EffectiveDate uint64 `json:"effectiveDate"`
	Pending       bool   `json:"pending"`
}

// NodeEpochRewards is a node's share of an epoch reward pool, computed once.
type NodeEpochRewards struct {
	Gross  *uint256.Int `json:"gross"`
	Fee    *uint256.Int `json:"fee"`
	Net    *uint256.Int `json:"net"`
	FeeBps uint16       `json:"feeBps"`
}

// NodeRecord is created on the first stake a node receives.
type NodeRecord struct {
	FirstStakeEpoch   uint64 `json:"firstStakeEpoch"`
	FeeSettledThrough uint64 `json:"feeSettledThrough"`
}

// WithdrawalRequest is a pending withdrawal of delegator stake or of an
// operator fee balance.
type WithdrawalRequest struct {
	Amount      *uint256.Int `json:"amount"`
	RequestedAt uint64       `json:"requestedAt"`
	ReleaseAt   uint64       `json:"releaseAt"`
}

// DeltaKind names the accumulator a journal row changed.
type DeltaKind uint8

const (
	DeltaNodeEpochScore DeltaKind = iota + 1
	DeltaAllNodesEpochScore
	DeltaProofPeriodScore
	DeltaScorePerStake
	DeltaValidProofs
	DeltaDelegatorEpochScore
	DeltaDelegatorCheckpoint
	DeltaStakeBase
	DeltaNodeStake
	DeltaTotalStake
	DeltaRollingRewards
	DeltaOperatorFeeBalance
)

var deltaKindNames = map[DeltaKind]string{
	DeltaNodeEpochScore:      "node_epoch_score",
	DeltaAllNodesEpochScore:  "all_nodes_epoch_score",
	DeltaProofPeriodScore:    "proof_period_score",
	DeltaScorePerStake:       "score_per_stake",
	DeltaValidProofs:         "valid_proofs",
	DeltaDelegatorEpochScore: "delegator_epoch_score",
	DeltaDelegatorCheckpoint: "delegator_checkpoint",
	DeltaStakeBase:           "stake_base",
	DeltaNodeStake:           "node_stake",
	DeltaTotalStake:          "total_stake",
	DeltaRollingRewards:      "rolling_rewards",
	DeltaOperatorFeeBalance:  "operator_fee_balance",
}

func (k DeltaKind) String() string {
	if name, ok := deltaKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Delta is an append-only journal row. Change is the absolute difference;
// Negative marks a decrease. Total is the value after the change.
type Delta struct {
	Seq       uint64
	Epoch     uint64
	Kind      DeltaKind
	Node      shared.NodeID
	Delegator shared.DelegatorKey
	Change    *uint256.Int
	Negative  bool
	Total     *uint256.Int
}
