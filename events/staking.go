package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/shared"
)

type StakeIncreased struct {
	Node      shared.NodeID
	Delegator common.Address
	Amount    *uint256.Int
	StakeBase *uint256.Int
	NodeStake *uint256.Int
}

func (StakeIncreased) EventType() string { return TypeStakeIncreased }

func (e StakeIncreased) Event() *Event {
	return &Event{
		Type: TypeStakeIncreased,
		Attributes: map[string]string{
			"node":      e.Node.String(),
			"delegator": addr(e.Delegator),
			"amount":    amount(e.Amount),
			"stakeBase": amount(e.StakeBase),
			"nodeStake": amount(e.NodeStake),
		},
	}
}

type StakeRedelegated struct {
	From      shared.NodeID
	To        shared.NodeID
	Delegator common.Address
	Amount    *uint256.Int
}

func (StakeRedelegated) EventType() string { return TypeStakeRedelegated }

func (e StakeRedelegated) Event() *Event {
	return &Event{
		Type: TypeStakeRedelegated,
		Attributes: map[string]string{
			"from":      e.From.String(),
			"to":        e.To.String(),
			"delegator": addr(e.Delegator),
			"amount":    amount(e.Amount),
		},
	}
}

// DelegatorScoreSettled records a lazy settlement of a delegator's share of
// node score for one epoch.
type DelegatorScoreSettled struct {
	Epoch         uint64
	Node          shared.NodeID
	Delegator     shared.DelegatorKey
	Earned        *uint256.Int
	Total         *uint256.Int
	ScorePerStake *uint256.Int
}

func (DelegatorScoreSettled) EventType() string { return TypeDelegatorScoreSettled }

func (e DelegatorScoreSettled) Event() *Event {
	return &Event{
		Type: TypeDelegatorScoreSettled,
		Attributes: map[string]string{
			"epoch":         u64(e.Epoch),
			"node":          e.Node.String(),
			"delegatorKey":  e.Delegator.Hex(),
			"earned":        amount(e.Earned),
			"total":         amount(e.Total),
			"scorePerStake": amount(e.ScorePerStake),
		},
	}
}

type DelegatorRewardsClaimed struct {
	Node           shared.NodeID
	Epoch          uint64
	Delegator      common.Address
	Reward         *uint256.Int
	RollingRewards *uint256.Int
	StakeBase      *uint256.Int
	Restaked       bool
}

func (DelegatorRewardsClaimed) EventType() string { return TypeDelegatorRewardsClaimed }

func (e DelegatorRewardsClaimed) Event() *Event {
	return &Event{
		Type: TypeDelegatorRewardsClaimed,
		Attributes: map[string]string{
			"node":           e.Node.String(),
			"epoch":          u64(e.Epoch),
			"delegator":      addr(e.Delegator),
			"reward":         amount(e.Reward),
			"rollingRewards": amount(e.RollingRewards),
			"stakeBase":      amount(e.StakeBase),
			"restaked":       strconv.FormatBool(e.Restaked),
		},
	}
}

type NodeEpochRewardsSettled struct {
	Node   shared.NodeID
	Epoch  uint64
	Gross  *uint256.Int
	Fee    *uint256.Int
	Net    *uint256.Int
	FeeBps uint16
}

func (NodeEpochRewardsSettled) EventType() string { return TypeNodeEpochRewardsSettled }

func (e NodeEpochRewardsSettled) Event() *Event {
	return &Event{
		Type: TypeNodeEpochRewardsSettled,
		Attributes: map[string]string{
			"node":   e.Node.String(),
			"epoch":  u64(e.Epoch),
			"gross":  amount(e.Gross),
			"fee":    amount(e.Fee),
			"net":    amount(e.Net),
			"feeBps": u64(uint64(e.FeeBps)),
		},
	}
}

type OperatorFeeAdded struct {
	Node          shared.NodeID
	FeeBps        uint16
	EffectiveDate uint64
}

func (OperatorFeeAdded) EventType() string { return TypeOperatorFeeAdded }

func (e OperatorFeeAdded) Event() *Event {
	return &Event{
		Type: TypeOperatorFeeAdded,
		Attributes: map[string]string{
			"node":          e.Node.String(),
			"feeBps":        u64(uint64(e.FeeBps)),
			"effectiveDate": u64(e.EffectiveDate),
		},
	}
}

type OperatorFeeReplaced struct {
	Node          shared.NodeID
	OldFeeBps     uint16
	NewFeeBps     uint16
	EffectiveDate uint64
}

func (OperatorFeeReplaced) EventType() string { return TypeOperatorFeeReplaced }

func (e OperatorFeeReplaced) Event() *Event {
	return &Event{
		Type: TypeOperatorFeeReplaced,
		Attributes: map[string]string{
			"node":          e.Node.String(),
			"oldFeeBps":     u64(uint64(e.OldFeeBps)),
			"newFeeBps":     u64(uint64(e.NewFeeBps)),
			"effectiveDate": u64(e.EffectiveDate),
		},
	}
}

type OperatorFeeActivated struct {
	Node          shared.NodeID
	FeeBps        uint16
	EffectiveDate uint64
}

func (OperatorFeeActivated) EventType() string { return TypeOperatorFeeActivated }

func (e OperatorFeeActivated) Event() *Event {
	return &Event{
		Type: TypeOperatorFeeActivated,
		Attributes: map[string]string{
			"node":          e.Node.String(),
			"feeBps":        u64(uint64(e.FeeBps)),
			"effectiveDate": u64(e.EffectiveDate),
		},
	}
}

type OperatorFeeRestaked struct {
	Node   shared.NodeID
	Admin  common.Address
	Amount *uint256.Int
}

func (OperatorFeeRestaked) EventType() string { return TypeOperatorFeeRestaked }

func (e OperatorFeeRestaked) Event() *Event {
	return &Event{
		Type: TypeOperatorFeeRestaked,
		Attributes: map[string]string{
			"node":   e.Node.String(),
			"admin":  addr(e.Admin),
			"amount": amount(e.Amount),
		},
	}
}
