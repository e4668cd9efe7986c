package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Kind classifies a rejected call so callers can tell a wrong proof from a
// call made at the wrong time.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSequencing
	KindProof
	KindAuthorization
	KindConfiguration
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindSequencing:
		return "sequencing"
	case KindProof:
		return "proof"
	case KindAuthorization:
		return "authorization"
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a categorised rejection with a stable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrUnsolvedChallengeExists = newError(KindSequencing,
		"An unsolved challenge already exists for this node in the current proof period")
	ErrChallengeSolvedInPeriod = newError(KindSequencing,
		"The challenge for this proof period has already been solved")
	ErrChallengeNoLongerActive  = newError(KindSequencing, "This challenge is no longer active")
	ErrChallengeAlreadySolved   = newError(KindSequencing, "This challenge has already been solved")
	ErrEpochNotFinalised        = newError(KindSequencing, "Epoch not finalised")
	ErrClaimOlderEpochsFirst    = newError(KindSequencing, "Must claim older epochs first")
	ErrEpochAlreadyClaimed      = newError(KindSequencing, "Epoch already claimed")
	ErrClaimAllPreviousEpochs   = newError(KindSequencing, "Must claim all previous epoch rewards before changing stake")
	ErrClaimPreviousEpoch       = newError(KindSequencing, "Must claim the previous epoch rewards before changing stake")
	ErrWithdrawalPending        = newError(KindSequencing, "Withdrawal period hasn't ended")
	ErrOperatorFeeNotReconciled = newError(KindSequencing,
		"Operator fees for all previous epochs must be settled before changing the fee")

	ErrNotOperationalKey   = newError(KindAuthorization, "Caller is not an operational key of the node")
	ErrNotAdminKey         = newError(KindAuthorization, "Caller is not an admin key of the node")
	ErrNotGovernor         = newError(KindAuthorization, "Caller is not allowed to change network parameters")
	ErrStakeBelowMinimum   = newError(KindAuthorization, "Node stake is below the minimum required")
	ErrRoleNotPermitted    = newError(KindAuthorization, "Caller role is not permitted to modify this record")
	ErrInsufficientBalance = newError(KindAuthorization, "Insufficient balance")

	ErrZeroDuration       = newError(KindConfiguration, "Duration in blocks must be greater than zero")
	ErrZeroBlockTime      = newError(KindConfiguration, "Block time must be greater than zero")
	ErrFeeAboveMaximum    = newError(KindConfiguration, "Operator fee cannot exceed 100%")
	ErrZeroAmount         = newError(KindConfiguration, "Amount must be greater than zero")
	ErrZeroStakeCap       = newError(KindConfiguration, "Stake cap must be greater than zero")
	ErrInvalidPeriodStart = newError(KindConfiguration, "Proof period start block is not valid")
	ErrInvalidOffset      = newError(KindConfiguration, "Offset must be greater than zero and within the period history")
	ErrAmountExceedsStake = newError(KindConfiguration, "Amount exceeds the available balance")
	ErrSameNode           = newError(KindConfiguration, "Source and destination nodes must differ")
	ErrEpochNotStarted    = newError(KindConfiguration, "Epoch clock has not started")

	ErrNoCollections        = newError(KindNotFound, "No knowledge collections exist")
	ErrNoActiveCollection   = newError(KindNotFound, "Failed to find an active knowledge collection")
	ErrNoDurationForEpoch   = newError(KindNotFound, "No proofing period duration found for the epoch")
	ErrNoChallenge          = newError(KindNotFound, "No challenge found for the node")
	ErrCollectionNotFound   = newError(KindNotFound, "Knowledge collection not found")
	ErrProfileNotFound      = newError(KindNotFound, "Profile does not exist")
	ErrDelegatorNotFound    = newError(KindNotFound, "Delegator has never staked on this node")
	ErrNoWithdrawalRequest  = newError(KindNotFound, "Withdrawal request does not exist")
	ErrDurationNotScheduled = newError(KindNotFound, "Proofing period duration is not initialised")
)

// MerkleRootMismatchError is returned when a submitted chunk and proof do
// not reproduce the root recorded for the challenged collection.
type MerkleRootMismatchError struct {
	Computed common.Hash
	Expected common.Hash
}

func (e *MerkleRootMismatchError) Error() string {
	return fmt.Sprintf("merkle root mismatch: computed %s, expected %s", e.Computed.Hex(), e.Expected.Hex())
}

// KindOf returns the category of err, looking through wrapping.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	var mismatch *MerkleRootMismatchError
	if errors.As(err, &mismatch) {
		return KindProof
	}
	return KindUnknown
}
