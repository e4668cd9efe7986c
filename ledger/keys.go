package ledger

import (
	"encoding/binary"

	"github.com/kcnet/incentives/shared"
)

var (
	prefixChallenge          = []byte("c/")
	keyPeriodStart           = []byte("p/start")
	keyDurations             = []byte("p/durations")
	prefixNodeEpochScore     = []byte("s/n/")
	prefixAllNodesEpochScore = []byte("s/a/")
	prefixProofPeriodScore   = []byte("s/p/")
	prefixScorePerStake      = []byte("s/k/")
	prefixValidProofs        = []byte("s/v/")
	prefixDelegatorScore     = []byte("d/s/")
	prefixDelegatorCkpt      = []byte("d/c/")
	prefixDelegatorInfo      = []byte("d/i/")
	prefixStakeBase          = []byte("k/b/")
	prefixNodeStake          = []byte("k/n/")
	keyTotalStake            = []byte("k/t")
	prefixOperatorFees       = []byte("o/f/")
	prefixFeeBalance         = []byte("o/b/")
	prefixFeesPaidOut        = []byte("o/p/")
	prefixNodeEpochRewards   = []byte("o/r/")
	prefixNodeRecord         = []byte("n/")
	prefixWithdrawal         = []byte("w/d/")
	prefixFeeWithdrawal      = []byte("w/o/")
	prefixDeltas             = []byte("j/")
	prefixEvents             = []byte("e/")
	keySequence              = []byte("m/seq")
)

type keyBuilder []byte

func newKey(prefix []byte) keyBuilder {
	k := make(keyBuilder, len(prefix), len(prefix)+80)
	copy(k, prefix)
	return k
}

func (k keyBuilder) u64(v uint64) keyBuilder {
	return binary.BigEndian.AppendUint64(k, v)
}

func (k keyBuilder) node(n shared.NodeID) keyBuilder {
	return k.u64(uint64(n))
}

func (k keyBuilder) delegator(d shared.DelegatorKey) keyBuilder {
	return append(k, d[:]...)
}

func challengeKey(n shared.NodeID) []byte { return newKey(prefixChallenge).node(n) }

func nodeEpochScoreKey(epoch uint64, n shared.NodeID) []byte {
	return newKey(prefixNodeEpochScore).u64(epoch).node(n)
}

func allNodesEpochScoreKey(epoch uint64) []byte { return newKey(prefixAllNodesEpochScore).u64(epoch) }

func proofPeriodScoreKey(n shared.NodeID, periodStart uint64) []byte {
	return newKey(prefixProofPeriodScore).node(n).u64(periodStart)
}

func scorePerStakeKey(epoch uint64, n shared.NodeID) []byte {
	return newKey(prefixScorePerStake).u64(epoch).node(n)
}

func validProofsKey(epoch uint64, n shared.NodeID) []byte {
	return newKey(prefixValidProofs).u64(epoch).node(n)
}

func delegatorScoreKey(epoch uint64, n shared.NodeID, d shared.DelegatorKey) []byte {
	return newKey(prefixDelegatorScore).u64(epoch).node(n).delegator(d)
}

func delegatorCheckpointKey(epoch uint64, n shared.NodeID, d shared.DelegatorKey) []byte {
	return newKey(prefixDelegatorCkpt).u64(epoch).node(n).delegator(d)
}

func delegatorInfoKey(n shared.NodeID, d shared.DelegatorKey) []byte {
	return newKey(prefixDelegatorInfo).node(n).delegator(d)
}

func stakeBaseKey(n shared.NodeID, d shared.DelegatorKey) []byte {
	return newKey(prefixStakeBase).node(n).delegator(d)
}

func nodeStakeKey(n shared.NodeID) []byte { return newKey(prefixNodeStake).node(n) }

func operatorFeesKey(n shared.NodeID) []byte { return newKey(prefixOperatorFees).node(n) }

func feeBalanceKey(n shared.NodeID) []byte { return newKey(prefixFeeBalance).node(n) }

func feesPaidOutKey(n shared.NodeID) []byte { return newKey(prefixFeesPaidOut).node(n) }

func nodeEpochRewardsKey(n shared.NodeID, epoch uint64) []byte {
	return newKey(prefixNodeEpochRewards).node(n).u64(epoch)
}

func nodeRecordKey(n shared.NodeID) []byte { return newKey(prefixNodeRecord).node(n) }

func withdrawalKey(n shared.NodeID, d shared.DelegatorKey) []byte {
	return newKey(prefixWithdrawal).node(n).delegator(d)
}

func feeWithdrawalKey(n shared.NodeID) []byte { return newKey(prefixFeeWithdrawal).node(n) }

func deltaKey(epoch, seq uint64) []byte { return newKey(prefixDeltas).u64(epoch).u64(seq) }

func deltaEpochPrefix(epoch uint64) []byte { return newKey(prefixDeltas).u64(epoch) }

func eventKey(seq uint64) []byte { return newKey(prefixEvents).u64(seq) }
