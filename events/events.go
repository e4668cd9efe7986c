package events

import (
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/shared"
)

const (
	TypeChallengeSet                          = "challenge.set"
	TypeScoreAdded                            = "score.added"
	TypeProofingPeriodDurationAdded           = "proof_period.duration_added"
	TypePendingProofingPeriodDurationReplaced = "proof_period.pending_duration_replaced"
	TypeStakeIncreased                        = "stake.increased"
	TypeStakeRedelegated                      = "stake.redelegated"
	TypeDelegatorScoreSettled                 = "delegator.score_settled"
	TypeDelegatorRewardsClaimed               = "delegator.rewards_claimed"
	TypeNodeEpochRewardsSettled               = "node.epoch_rewards_settled"
	TypeOperatorFeeAdded                      = "operator_fee.added"
	TypeOperatorFeeReplaced                   = "operator_fee.replaced"
	TypeOperatorFeeActivated                  = "operator_fee.activated"
	TypeOperatorFeeRestaked                   = "operator_fee.restaked"
	TypeWithdrawalRequested                   = "withdrawal.requested"
	TypeWithdrawalCancelled                   = "withdrawal.cancelled"
	TypeWithdrawalFinalized                   = "withdrawal.finalized"
	TypeOperatorFeeWithdrawalRequested        = "operator_fee_withdrawal.requested"
	TypeOperatorFeeWithdrawalCancelled        = "operator_fee_withdrawal.cancelled"
	TypeOperatorFeeWithdrawalFinalized        = "operator_fee_withdrawal.finalized"
)

// Event is the flat form of a notification.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Notification is implemented by every typed event.
type Notification interface {
	EventType() string
	Event() *Event
}

// Attribute is a single key/value pair of an encoded event.
type Attribute struct {
	Key   string
	Value string
}

// SortedAttributes returns the attributes ordered by key.
func (e *Event) SortedAttributes() []Attribute {
	attrs := make([]Attribute, 0, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs = append(attrs, Attribute{Key: k, Value: v})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	return attrs
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func amount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func addr(a common.Address) string { return a.Hex() }

type ChallengeSet struct {
	Node      shared.NodeID
	Challenge shared.Challenge
}

func (ChallengeSet) EventType() string { return TypeChallengeSet }

func (e ChallengeSet) Event() *Event {
	return &Event{
		Type: TypeChallengeSet,
		Attributes: map[string]string{
			"node":                   e.Node.String(),
			"knowledgeCollectionId":  u64(e.Challenge.KnowledgeCollectionID),
			"chunkId":                u64(e.Challenge.ChunkID),
			"collectionRef":          addr(e.Challenge.CollectionRef),
			"epoch":                  u64(e.Challenge.Epoch),
			"periodStartBlock":       u64(e.Challenge.PeriodStartBlock),
			"periodDurationInBlocks": u64(e.Challenge.PeriodDurationInBlocks),
			"solved":                 strconv.FormatBool(e.Challenge.Solved),
		},
	}
}

type ScoreAdded struct {
	Epoch              uint64
	Node               shared.NodeID
	PeriodStartBlock   uint64
	ScoreAdded         *uint256.Int
	NodeEpochScore     *uint256.Int
	ProofPeriodScore   *uint256.Int
	AllNodesEpochScore *uint256.Int
	ScorePerStake      *uint256.Int
}

func (ScoreAdded) EventType() string { return TypeScoreAdded }

func (e ScoreAdded) Event() *Event {
	return &Event{
		Type: TypeScoreAdded,
		Attributes: map[string]string{
			"epoch":              u64(e.Epoch),
			"node":               e.Node.String(),
			"periodStartBlock":   u64(e.PeriodStartBlock),
			"scoreAdded":         amount(e.ScoreAdded),
			"nodeEpochScore":     amount(e.NodeEpochScore),
			"proofPeriodScore":   amount(e.ProofPeriodScore),
			"allNodesEpochScore": amount(e.AllNodesEpochScore),
			"scorePerStake":      amount(e.ScorePerStake),
		},
	}
}

type ProofingPeriodDurationAdded struct {
	DurationInBlocks uint64
	EffectiveEpoch   uint64
}

func (ProofingPeriodDurationAdded) EventType() string { return TypeProofingPeriodDurationAdded }

func (e ProofingPeriodDurationAdded) Event() *Event {
	return &Event{
		Type: TypeProofingPeriodDurationAdded,
		Attributes: map[string]string{
			"durationInBlocks": u64(e.DurationInBlocks),
			"effectiveEpoch":   u64(e.EffectiveEpoch),
		},
	}
}

type PendingProofingPeriodDurationReplaced struct {
	OldDurationInBlocks uint64
	NewDurationInBlocks uint64
	EffectiveEpoch      uint64
}

func (PendingProofingPeriodDurationReplaced) EventType() string {
	return TypePendingProofingPeriodDurationReplaced
}

func (e PendingProofingPeriodDurationReplaced) Event() *Event {
	return &Event{
		Type: TypePendingProofingPeriodDurationReplaced,
		Attributes: map[string]string{
			"oldDurationInBlocks": u64(e.OldDurationInBlocks),
			"newDurationInBlocks": u64(e.NewDurationInBlocks),
			"effectiveEpoch":      u64(e.EffectiveEpoch),
		},
	}
}

// Record is a journaled event with its position in the ledger sequence.
type Record struct {
	Seq uint64 `json:"seq"`
	Event
}
