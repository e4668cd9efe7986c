package proofperiod_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/proofperiod"
	"github.com/kcnet/incentives/types"
)

func newStore(t *testing.T, epoch, block, duration uint64) *ledger.Store {
	t.Helper()
	s, err := ledger.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	require.NoError(t, s.Update(context.Background(), ledger.RoleParameters, func(tx *ledger.Tx) error {
		return proofperiod.Init(tx, epoch, block, duration)
	}))
	return s
}

func advance(t *testing.T, s *ledger.Store, epoch, block uint64) uint64 {
	t.Helper()
	var start uint64
	require.NoError(t, s.Update(context.Background(), ledger.RoleChallenge, func(tx *ledger.Tx) error {
		var err error
		start, err = proofperiod.UpdateAndGetActiveStart(tx, epoch, block)
		return err
	}))
	return start
}

func status(t *testing.T, s *ledger.Store, epoch, block uint64) proofperiod.Status {
	t.Helper()
	var st proofperiod.Status
	require.NoError(t, s.View(context.Background(), func(r ledger.Reader) error {
		var err error
		st, err = proofperiod.CurrentStatus(r, epoch, block)
		return err
	}))
	return st
}

func TestInitAlignsStart(t *testing.T) {
	s := newStore(t, 1, 1234, 100)
	st := status(t, s, 1, 1234)
	require.Equal(t, uint64(1200), st.StartBlock)
	require.Equal(t, uint64(100), st.DurationInBlocks)
	require.True(t, st.IsValid)
}

func TestInitRejectsZeroDuration(t *testing.T) {
	s, err := ledger.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	err = s.Update(context.Background(), ledger.RoleParameters, func(tx *ledger.Tx) error {
		return proofperiod.Init(tx, 1, 10, 0)
	})
	require.ErrorIs(t, err, types.ErrZeroDuration)
	require.Equal(t, types.KindConfiguration, types.KindOf(err))
}

func TestStatusValidityWindow(t *testing.T) {
	s := newStore(t, 1, 100, 10)
	require.True(t, status(t, s, 1, 100).IsValid)
	require.True(t, status(t, s, 1, 109).IsValid)
	require.False(t, status(t, s, 1, 110).IsValid)
	require.False(t, status(t, s, 1, 250).IsValid)
}

func TestUpdateSkipsElapsedPeriods(t *testing.T) {
	s := newStore(t, 1, 100, 10)

	require.Equal(t, uint64(100), advance(t, s, 1, 105))
	require.Equal(t, uint64(110), advance(t, s, 1, 110))
	require.Equal(t, uint64(110), advance(t, s, 1, 119))
	// many periods at once
	require.Equal(t, uint64(370), advance(t, s, 1, 377))
	require.True(t, status(t, s, 1, 377).IsValid)
}

func TestDurationChangeIsDelayedOneEpoch(t *testing.T) {
	s := newStore(t, 1, 100, 10)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, ledger.RoleParameters, func(tx *ledger.Tx) error {
		return proofperiod.SetDuration(tx, 1, 25)
	}))

	require.NoError(t, s.View(ctx, func(r ledger.Reader) error {
		d, err := proofperiod.DurationAt(r, 1)
		require.NoError(t, err)
		require.Equal(t, uint64(10), d)
		d, err = proofperiod.DurationAt(r, 2)
		require.NoError(t, err)
		require.Equal(t, uint64(25), d)
		d, err = proofperiod.DurationAt(r, 9)
		require.NoError(t, err)
		require.Equal(t, uint64(25), d)
		return nil
	}))

	require.Equal(t, uint64(100), advance(t, s, 2, 110))
	require.Equal(t, uint64(125), advance(t, s, 2, 126))
	require.Equal(t, uint64(150), advance(t, s, 2, 160))
}

func TestStartRealignsToNewDuration(t *testing.T) {
	s := newStore(t, 1, 100, 10)
	require.NoError(t, s.Update(context.Background(), ledger.RoleParameters, func(tx *ledger.Tx) error {
		return proofperiod.SetDuration(tx, 1, 30)
	}))

	require.Equal(t, uint64(100), advance(t, s, 2, 129))
	require.Equal(t, uint64(120), advance(t, s, 2, 135))
	require.Equal(t, uint64(150), advance(t, s, 2, 151))
}

func TestPendingDurationIsReplaced(t *testing.T) {
	s := newStore(t, 3, 0, 10)
	ctx := context.Background()

	for _, d := range []uint64{20, 30} {
		require.NoError(t, s.Update(ctx, ledger.RoleParameters, func(tx *ledger.Tx) error {
			return proofperiod.SetDuration(tx, 3, d)
		}))
	}

	require.NoError(t, s.View(ctx, func(r ledger.Reader) error {
		entries, err := r.Durations()
		require.NoError(t, err)
		require.Equal(t, []ledger.DurationEntry{
			{DurationInBlocks: 10, EffectiveEpoch: 3},
			{DurationInBlocks: 30, EffectiveEpoch: 4},
		}, entries)

		evs, err := r.Events(0, 0)
		require.NoError(t, err)
		require.Len(t, evs, 3)
		require.Equal(t, events.TypeProofingPeriodDurationAdded, evs[1].Type)
		require.Equal(t, events.TypePendingProofingPeriodDurationReplaced, evs[2].Type)
		require.Equal(t, "20", evs[2].Attributes["oldDurationInBlocks"])
		require.Equal(t, "30", evs[2].Attributes["newDurationInBlocks"])
		return nil
	}))

	// once epoch 4 is current, a new change appends for epoch 5
	require.NoError(t, s.Update(ctx, ledger.RoleParameters, func(tx *ledger.Tx) error {
		return proofperiod.SetDuration(tx, 4, 40)
	}))
	require.NoError(t, s.View(ctx, func(r ledger.Reader) error {
		entries, err := r.Durations()
		require.NoError(t, err)
		require.Len(t, entries, 3)
		return nil
	}))
}

func TestSetDurationRejectsZero(t *testing.T) {
	s := newStore(t, 1, 0, 10)
	err := s.Update(context.Background(), ledger.RoleParameters, func(tx *ledger.Tx) error {
		return proofperiod.SetDuration(tx, 1, 0)
	})
	require.ErrorIs(t, err, types.ErrZeroDuration)
}

func TestDurationBeforeSchedule(t *testing.T) {
	s := newStore(t, 5, 0, 10)
	err := s.View(context.Background(), func(r ledger.Reader) error {
		_, err := proofperiod.DurationAt(r, 4)
		return err
	})
	require.ErrorIs(t, err, types.ErrNoDurationForEpoch)
	require.Equal(t, types.KindNotFound, types.KindOf(err))
}

func TestHistoricalStart(t *testing.T) {
	s := newStore(t, 1, 0, 10)
	lookup := func(start, offset uint64) (uint64, error) {
		var got uint64
		err := s.View(context.Background(), func(r ledger.Reader) error {
			var err error
			got, err = proofperiod.HistoricalStart(r, 1, start, offset)
			return err
		})
		return got, err
	}

	got, err := lookup(100, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(90), got)

	got, err = lookup(100, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(0), got)

	_, err = lookup(100, 0)
	require.ErrorIs(t, err, types.ErrInvalidOffset)
	_, err = lookup(100, 11)
	require.ErrorIs(t, err, types.ErrInvalidOffset)
	_, err = lookup(105, 1)
	require.ErrorIs(t, err, types.ErrInvalidPeriodStart)
	_, err = lookup(0, 1)
	require.ErrorIs(t, err, types.ErrInvalidPeriodStart)
}
