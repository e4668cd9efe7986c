package ledger

import (
	"fmt"

	"github.com/kcnet/incentives/types"
)

// Role is the capability an Update runs with.
type Role uint8

const (
	RoleChallenge Role = iota + 1
	RoleProof
	RoleSettlement
	RoleParameters
)

func (r Role) String() string {
	switch r {
	case RoleChallenge:
		return "challenge"
	case RoleProof:
		return "proof"
	case RoleSettlement:
		return "settlement"
	case RoleParameters:
		return "parameters"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

type record uint8

const (
	recChallenge record = iota
	recPeriodStart
	recDurations
	recNodeEpochScore
	recAllNodesEpochScore
	recProofPeriodScore
	recScorePerStake
	recValidProofs
	recDelegatorEpochScore
	recDelegatorCheckpoint
	recStake
	recDelegatorInfo
	recOperatorFees
	recOperatorFeeBalance
	recNodeEpochRewards
	recNodeRecord
	recWithdrawal
	recOperatorFeeWithdrawal
)

var recordNames = [...]string{
	recChallenge:             "challenge",
	recPeriodStart:           "period start",
	recDurations:             "period durations",
	recNodeEpochScore:        "node epoch score",
	recAllNodesEpochScore:    "all nodes epoch score",
	recProofPeriodScore:      "proof period score",
	recScorePerStake:         "score per stake",
	recValidProofs:           "valid proofs count",
	recDelegatorEpochScore:   "delegator epoch score",
	recDelegatorCheckpoint:   "delegator score per stake checkpoint",
	recStake:                 "stake",
	recDelegatorInfo:         "delegator info",
	recOperatorFees:          "operator fees",
	recOperatorFeeBalance:    "operator fee balance",
	recNodeEpochRewards:      "node epoch rewards",
	recNodeRecord:            "node record",
	recWithdrawal:            "withdrawal request",
	recOperatorFeeWithdrawal: "operator fee withdrawal request",
}

func (r record) String() string {
	return recordNames[r]
}

// writers is the complete table of which roles may mutate which records.
var writers = map[record][]Role{
	recChallenge:             {RoleChallenge, RoleProof},
	recPeriodStart:           {RoleChallenge, RoleProof, RoleParameters},
	recDurations:             {RoleParameters},
	recNodeEpochScore:        {RoleProof},
	recAllNodesEpochScore:    {RoleProof},
	recProofPeriodScore:      {RoleProof},
	recScorePerStake:         {RoleProof},
	recValidProofs:           {RoleProof},
	recDelegatorEpochScore:   {RoleSettlement},
	recDelegatorCheckpoint:   {RoleSettlement},
	recStake:                 {RoleSettlement},
	recDelegatorInfo:         {RoleSettlement},
	recOperatorFees:          {RoleSettlement},
	recOperatorFeeBalance:    {RoleSettlement},
	recNodeEpochRewards:      {RoleSettlement},
	recNodeRecord:            {RoleSettlement},
	recWithdrawal:            {RoleSettlement},
	recOperatorFeeWithdrawal: {RoleSettlement},
}

func (r Role) canWrite(rec record) bool {
	for _, allowed := range writers[rec] {
		if allowed == r {
			return true
		}
	}
	return false
}

func (tx *Tx) authorize(rec record) error {
	if !tx.role.canWrite(rec) {
		return fmt.Errorf("%w: %s cannot write %s", types.ErrRoleNotPermitted, tx.role, rec)
	}
	return nil
}
