package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/shared"
)

type WithdrawalRequested struct {
	Node      shared.NodeID
	Delegator common.Address
	Amount    *uint256.Int
	Pending   *uint256.Int
	ReleaseAt uint64
}

func (WithdrawalRequested) EventType() string { return TypeWithdrawalRequested }

func (e WithdrawalRequested) Event() *Event {
	return &Event{
		Type: TypeWithdrawalRequested,
		Attributes: map[string]string{
			"node":      e.Node.String(),
			"delegator": addr(e.Delegator),
			"amount":    amount(e.Amount),
			"pending":   amount(e.Pending),
			"releaseAt": u64(e.ReleaseAt),
		},
	}
}

type WithdrawalCancelled struct {
	Node      shared.NodeID
	Delegator common.Address
	Amount    *uint256.Int
}

func (WithdrawalCancelled) EventType() string { return TypeWithdrawalCancelled }

func (e WithdrawalCancelled) Event() *Event {
	return &Event{
		Type: TypeWithdrawalCancelled,
		Attributes: map[string]string{
			"node":      e.Node.String(),
			"delegator": addr(e.Delegator),
			"amount":    amount(e.Amount),
		},
	}
}

type WithdrawalFinalized struct {
	Node      shared.NodeID
	Delegator common.Address
	Amount    *uint256.Int
}

func (WithdrawalFinalized) EventType() string { return TypeWithdrawalFinalized }

func (e WithdrawalFinalized) Event() *Event {
	return &Event{
		Type: TypeWithdrawalFinalized,
		Attributes: map[string]string{
			"node":      e.Node.String(),
			"delegator": addr(e.Delegator),
			"amount":    amount(e.Amount),
		},
	}
}

type OperatorFeeWithdrawalRequested struct {
	Node      shared.NodeID
	Amount    *uint256.Int
	Pending   *uint256.Int
	ReleaseAt uint64
}

func (OperatorFeeWithdrawalRequested) EventType() string { return TypeOperatorFeeWithdrawalRequested }

func (e OperatorFeeWithdrawalRequested) Event() *Event {
	return &Event{
		Type: TypeOperatorFeeWithdrawalRequested,
		Attributes: map[string]string{
			"node":      e.Node.String(),
			"amount":    amount(e.Amount),
			"pending":   amount(e.Pending),
			"releaseAt": u64(e.ReleaseAt),
		},
	}
}

type OperatorFeeWithdrawalCancelled struct {
	Node   shared.NodeID
	Amount *uint256.Int
}

func (OperatorFeeWithdrawalCancelled) EventType() string { return TypeOperatorFeeWithdrawalCancelled }

func (e OperatorFeeWithdrawalCancelled) Event() *Event {
	return &Event{
		Type: TypeOperatorFeeWithdrawalCancelled,
		Attributes: map[string]string{
			"node":   e.Node.String(),
			"amount": amount(e.Amount),
		},
	}
}

type OperatorFeeWithdrawalFinalized struct {
	Node        shared.NodeID
	Beneficiary common.Address
	Amount      *uint256.Int
}

func (OperatorFeeWithdrawalFinalized) EventType() string { return TypeOperatorFeeWithdrawalFinalized }

func (e OperatorFeeWithdrawalFinalized) Event() *Event {
	return &Event{
		Type: TypeOperatorFeeWithdrawalFinalized,
		Attributes: map[string]string{
			"node":        e.Node.String(),
			"beneficiary": addr(e.Beneficiary),
			"amount":      amount(e.Amount),
		},
	}
}
