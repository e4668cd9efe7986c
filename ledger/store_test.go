package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

func openStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	s, err := Open(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s, ctx
}

func TestRolePermissions(t *testing.T) {
	s, ctx := openStore(t)

	err := s.Update(ctx, RoleChallenge, func(tx *Tx) error {
		_, err := tx.AddNodeEpochScore(1, 1, uint256.NewInt(1))
		return err
	})
	require.ErrorIs(t, err, types.ErrRoleNotPermitted)
	require.Equal(t, types.KindAuthorization, types.KindOf(err))

	err = s.Update(ctx, RoleProof, func(tx *Tx) error {
		return tx.IncreaseStake(1, 1, common.Hash{}, uint256.NewInt(1))
	})
	require.ErrorIs(t, err, types.ErrRoleNotPermitted)

	err = s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		return tx.SetDurations([]DurationEntry{{DurationInBlocks: 10}})
	})
	require.ErrorIs(t, err, types.ErrRoleNotPermitted)

	require.NoError(t, s.Update(ctx, RoleProof, func(tx *Tx) error {
		return tx.SetChallenge(1, &shared.Challenge{KnowledgeCollectionID: 1})
	}))
	require.NoError(t, s.Update(ctx, RoleParameters, func(tx *Tx) error {
		return tx.SetActivePeriodStart(100)
	}))
}

func TestEveryRecordHasAWriter(t *testing.T) {
	for rec := recChallenge; rec <= recOperatorFeeWithdrawal; rec++ {
		require.NotEmpty(t, writers[rec], rec.String())
		require.NotEmpty(t, rec.String())
	}
}

func TestFailedUpdateLeavesNoTrace(t *testing.T) {
	s, ctx := openStore(t)
	boom := errors.New("boom")

	err := s.Update(ctx, RoleProof, func(tx *Tx) error {
		if _, err := tx.AddNodeEpochScore(3, 7, uint256.NewInt(10)); err != nil {
			return err
		}
		if err := tx.Emit(events.ScoreAdded{Epoch: 3, Node: 7}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(r Reader) error {
		score, err := r.NodeEpochScore(3, 7)
		require.NoError(t, err)
		require.True(t, score.IsZero())

		deltas, err := r.Deltas(3)
		require.NoError(t, err)
		require.Empty(t, deltas)

		evs, err := r.Events(0, 0)
		require.NoError(t, err)
		require.Empty(t, evs)
		return nil
	}))
}

func TestAccumulatorsAreJournaled(t *testing.T) {
	s, ctx := openStore(t)
	committed := testutil.ToFloat64(updatesTotal.WithLabelValues("proof", "committed"))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(ctx, RoleProof, func(tx *Tx) error {
			if _, err := tx.AddNodeEpochScore(2, 5, uint256.NewInt(100)); err != nil {
				return err
			}
			if _, err := tx.AddAllNodesEpochScore(2, uint256.NewInt(100)); err != nil {
				return err
			}
			if _, err := tx.AddNodeProofPeriodScore(2, 5, 40, uint256.NewInt(100)); err != nil {
				return err
			}
			_, err := tx.IncrementValidProofs(2, 5)
			return err
		}))
	}
	require.Equal(t, committed+3, testutil.ToFloat64(updatesTotal.WithLabelValues("proof", "committed")))

	require.NoError(t, s.View(ctx, func(r Reader) error {
		score, err := r.NodeEpochScore(2, 5)
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(300), score)

		all, err := r.AllNodesEpochScore(2)
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(300), all)

		period, err := r.NodeProofPeriodScore(5, 40)
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(300), period)

		count, err := r.EpochNodeValidProofsCount(2, 5)
		require.NoError(t, err)
		require.Equal(t, uint64(3), count)

		deltas, err := r.Deltas(2)
		require.NoError(t, err)
		require.Len(t, deltas, 12)
		for i := 1; i < len(deltas); i++ {
			require.Greater(t, deltas[i].Seq, deltas[i-1].Seq)
		}
		require.Equal(t, DeltaNodeEpochScore, deltas[0].Kind)
		require.Equal(t, uint256.NewInt(100), deltas[0].Total)
		require.Equal(t, DeltaNodeEpochScore, deltas[4].Kind)
		require.Equal(t, uint256.NewInt(200), deltas[4].Total)
		return nil
	}))
}

func TestEpochRoot(t *testing.T) {
	s, ctx := openStore(t)

	root, err := s.EpochRoot(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, root)

	require.NoError(t, s.Update(ctx, RoleProof, func(tx *Tx) error {
		_, err := tx.AddNodeEpochScore(1, 1, uint256.NewInt(5))
		return err
	}))
	first, err := s.EpochRoot(ctx, 1)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, first)

	again, err := s.EpochRoot(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first, again)

	require.NoError(t, s.Update(ctx, RoleProof, func(tx *Tx) error {
		_, err := tx.AddNodeEpochScore(1, 2, uint256.NewInt(5))
		return err
	}))
	second, err := s.EpochRoot(ctx, 1)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	other, err := s.EpochRoot(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, other)
}

func TestStakeAccounting(t *testing.T) {
	s, ctx := openStore(t)
	alice := shared.NewDelegatorKey(common.HexToAddress("0xa1"))
	bob := shared.NewDelegatorKey(common.HexToAddress("0xb0"))

	require.NoError(t, s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		if err := tx.IncreaseStake(1, 1, alice, uint256.NewInt(300)); err != nil {
			return err
		}
		if err := tx.IncreaseStake(1, 1, bob, uint256.NewInt(100)); err != nil {
			return err
		}
		return tx.IncreaseStake(1, 2, bob, uint256.NewInt(50))
	}))

	err := s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		return tx.DecreaseStake(2, 1, bob, uint256.NewInt(101))
	})
	require.ErrorIs(t, err, types.ErrAmountExceedsStake)

	require.NoError(t, s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		return tx.DecreaseStake(2, 1, alice, uint256.NewInt(200))
	}))

	require.NoError(t, s.View(ctx, func(r Reader) error {
		base, err := r.DelegatorStakeBase(1, alice)
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(100), base)

		node, err := r.NodeStake(1)
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(200), node)

		total, err := r.TotalStake()
		require.NoError(t, err)
		require.Equal(t, uint256.NewInt(250), total)

		deltas, err := r.Deltas(2)
		require.NoError(t, err)
		require.Len(t, deltas, 3)
		for _, d := range deltas {
			require.True(t, d.Negative)
			require.Equal(t, uint256.NewInt(200), d.Change)
		}
		return nil
	}))
}

func TestDelegatorRecords(t *testing.T) {
	s, ctx := openStore(t)
	key := shared.NewDelegatorKey(common.HexToAddress("0xd1"))

	require.NoError(t, s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		if err := tx.SetDelegatorInfo(4, 9, key, &DelegatorInfo{LastClaimedEpoch: 3}); err != nil {
			return err
		}
		if err := tx.SetDelegatorInfo(4, 9, key, &DelegatorInfo{
			LastClaimedEpoch: 4,
			RollingRewards:   uint256.NewInt(70),
		}); err != nil {
			return err
		}
		if err := tx.SetDelegatorLastSettledScorePerStake(4, 9, key, uint256.NewInt(10)); err != nil {
			return err
		}
		return tx.SetDelegatorLastSettledScorePerStake(4, 9, key, uint256.NewInt(10))
	}))

	err := s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		return tx.SetDelegatorLastSettledScorePerStake(4, 9, key, uint256.NewInt(9))
	})
	require.Error(t, err)

	require.NoError(t, s.View(ctx, func(r Reader) error {
		info, ok, err := r.DelegatorInfo(9, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(4), info.LastClaimedEpoch)
		require.Equal(t, uint256.NewInt(70), info.RollingRewards)

		_, ok, err = r.DelegatorInfo(9, common.Hash{})
		require.NoError(t, err)
		require.False(t, ok)

		deltas, err := r.Deltas(4)
		require.NoError(t, err)
		require.Len(t, deltas, 2)
		require.Equal(t, DeltaRollingRewards, deltas[0].Kind)
		require.Equal(t, DeltaDelegatorCheckpoint, deltas[1].Kind)
		return nil
	}))
}

func TestNodeEpochRewardsAreWrittenOnce(t *testing.T) {
	s, ctx := openStore(t)
	rewards := &NodeEpochRewards{
		Gross:  uint256.NewInt(100),
		Fee:    uint256.NewInt(10),
		Net:    uint256.NewInt(90),
		FeeBps: 1000,
	}
	require.NoError(t, s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		return tx.SetNodeEpochRewards(1, 2, rewards)
	}))
	require.Error(t, s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		return tx.SetNodeEpochRewards(1, 2, rewards)
	}))

	require.NoError(t, s.View(ctx, func(r Reader) error {
		got, ok, err := r.NodeEpochRewards(1, 2)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, rewards, got)
		return nil
	}))
}

func TestEventJournal(t *testing.T) {
	s, ctx := openStore(t)

	require.NoError(t, s.Update(ctx, RoleParameters, func(tx *Tx) error {
		for i := uint64(1); i <= 5; i++ {
			if err := tx.Emit(events.ProofingPeriodDurationAdded{DurationInBlocks: i * 10, EffectiveEpoch: i}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(r Reader) error {
		all, err := r.Events(0, 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		require.Equal(t, events.TypeProofingPeriodDurationAdded, all[0].Type)
		require.Equal(t, "10", all[0].Attributes["durationInBlocks"])

		page, err := r.Events(all[2].Seq, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.Equal(t, "30", page[0].Attributes["durationInBlocks"])
		require.Equal(t, "40", page[1].Attributes["durationInBlocks"])
		return nil
	}))
}

func TestWithdrawalRecords(t *testing.T) {
	s, ctx := openStore(t)
	key := shared.NewDelegatorKey(common.HexToAddress("0x01"))
	req := &WithdrawalRequest{Amount: uint256.NewInt(5), RequestedAt: 10, ReleaseAt: 20}

	require.NoError(t, s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		if err := tx.SetWithdrawalRequest(1, key, req); err != nil {
			return err
		}
		return tx.SetOperatorFeeWithdrawalRequest(1, req)
	}))
	require.NoError(t, s.View(ctx, func(r Reader) error {
		got, ok, err := r.WithdrawalRequest(1, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, req, got)
		return nil
	}))

	require.NoError(t, s.Update(ctx, RoleSettlement, func(tx *Tx) error {
		if err := tx.DeleteWithdrawalRequest(1, key); err != nil {
			return err
		}
		return tx.DeleteOperatorFeeWithdrawalRequest(1)
	}))
	require.NoError(t, s.View(ctx, func(r Reader) error {
		_, ok, err := r.WithdrawalRequest(1, key)
		require.NoError(t, err)
		require.False(t, ok)
		_, ok, err = r.OperatorFeeWithdrawalRequest(1)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}
