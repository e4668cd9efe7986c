package score_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/score"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

func e18(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(v), shared.Scale18)
}

func frac18(num, den uint64) *uint256.Int {
	return shared.MulDiv(uint256.NewInt(num), shared.Scale18, uint256.NewInt(den))
}

func TestZeroStakeScoresZero(t *testing.T) {
	b, err := score.Compute(score.Inputs{
		Stake:        uint256.NewInt(0),
		StakeCap:     e18(100),
		NodeValue:    e18(1),
		TotalValue:   e18(1),
		NodeAsk:      e18(1),
		NetworkPrice: e18(1),
	})
	require.NoError(t, err)
	require.True(t, b.Score18.IsZero())
}

func TestStakeAtCapEqualsStakeAboveCap(t *testing.T) {
	in := score.Inputs{
		Stake:        e18(100),
		StakeCap:     e18(100),
		NodeValue:    e18(3),
		TotalValue:   e18(10),
		NodeAsk:      e18(2),
		NetworkPrice: e18(3),
	}
	atCap, err := score.Compute(in)
	require.NoError(t, err)

	in.Stake = e18(200)
	aboveCap, err := score.Compute(in)
	require.NoError(t, err)
	require.Equal(t, atCap, aboveCap)
}

func TestExactScore(t *testing.T) {
	b, err := score.Compute(score.Inputs{
		Stake:        e18(100),
		StakeCap:     e18(100),
		NodeValue:    e18(1),
		TotalValue:   e18(4),
		NodeAsk:      e18(5),
		NetworkPrice: e18(5),
	})
	require.NoError(t, err)
	require.Equal(t, shared.Scale18, b.Stake18)
	require.Equal(t, frac18(1, 4), b.Publishing18)
	require.Equal(t, shared.Scale18, b.Ask18)
	// 0.04 + 0.86*0.25 + 0.6*1*0.25
	require.Equal(t, uint256.NewInt(405_000_000_000_000_000), b.Score18)
}

func TestStakeFactorIsSublinear(t *testing.T) {
	require.Equal(t, frac18(1, 2), score.StakeFactor(e18(25), e18(100)))
	require.Equal(t, frac18(1, 10), score.StakeFactor(e18(1), e18(100)))
	require.Equal(t, shared.Scale18, score.StakeFactor(e18(500), e18(100)))
}

func TestAskFactor(t *testing.T) {
	require.Equal(t, shared.Scale18, score.AskFactor(e18(7), e18(7)))
	require.Equal(t, frac18(1, 2), score.AskFactor(e18(3), e18(2)))
	require.Equal(t, frac18(1, 2), score.AskFactor(e18(1), e18(2)))
	require.True(t, score.AskFactor(e18(4), e18(2)).IsZero())
	require.True(t, score.AskFactor(e18(9), e18(2)).IsZero())
	require.True(t, score.AskFactor(e18(9), uint256.NewInt(0)).IsZero())
}

func TestZeroPriceDisablesAskTerm(t *testing.T) {
	b, err := score.Compute(score.Inputs{
		Stake:        e18(100),
		StakeCap:     e18(100),
		NodeValue:    e18(1),
		TotalValue:   e18(1),
		NodeAsk:      e18(5),
		NetworkPrice: uint256.NewInt(0),
	})
	require.NoError(t, err)
	require.True(t, b.Ask18.IsZero())
	// 0.04 + 0.86
	require.Equal(t, uint256.NewInt(900_000_000_000_000_000), b.Score18)
}

func TestPublishingFactorZeroDenominator(t *testing.T) {
	require.True(t, score.PublishingFactor(e18(1), uint256.NewInt(0)).IsZero())
}

func TestZeroStakeCapIsRejected(t *testing.T) {
	_, err := score.Compute(score.Inputs{Stake: e18(1), StakeCap: uint256.NewInt(0)})
	require.ErrorIs(t, err, types.ErrZeroStakeCap)
	require.Equal(t, types.KindConfiguration, types.KindOf(err))
}

type fakeNetwork struct {
	epoch     uint64
	stakeCap  *uint256.Int
	ask       *uint256.Int
	price     *uint256.Int
	nodeValue map[uint64]*uint256.Int
	total     map[uint64]*uint256.Int
}

func (f *fakeNetwork) CurrentEpoch(context.Context) (uint64, error)   { return f.epoch, nil }
func (f *fakeNetwork) StakeCap(context.Context) (*uint256.Int, error) { return f.stakeCap, nil }
func (f *fakeNetwork) NetworkPrice(context.Context) (*uint256.Int, error) {
	return f.price, nil
}

func (f *fakeNetwork) NodeAsk(context.Context, shared.NodeID) (*uint256.Int, error) {
	return f.ask, nil
}

func (f *fakeNetwork) NodeProducedValue(_ context.Context, epoch uint64, _ shared.NodeID) (*uint256.Int, error) {
	return f.nodeValue[epoch], nil
}

func (f *fakeNetwork) TotalProducedValue(_ context.Context, epoch uint64) (*uint256.Int, error) {
	return f.total[epoch], nil
}

func TestCalculatorSumsFourEpochWindow(t *testing.T) {
	ctx := context.Background()
	store, err := ledger.Open(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	require.NoError(t, store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		return tx.IncreaseStake(1, 1, shared.NewDelegatorKey(common.Address{1}), e18(100))
	}))

	net := &fakeNetwork{
		epoch:    6,
		stakeCap: e18(100),
		ask:      e18(1),
		price:    uint256.NewInt(0),
		nodeValue: map[uint64]*uint256.Int{
			2: e18(1000), // outside the window
			3: e18(1),
			6: e18(1),
		},
		total: map[uint64]*uint256.Int{
			2: e18(1000),
			3: e18(2),
			4: e18(1),
			5: e18(1),
			6: e18(4),
		},
	}
	calc := score.NewCalculator(net, net, net, net)

	var b score.Breakdown
	require.NoError(t, store.View(ctx, func(r ledger.Reader) error {
		b, err = calc.Breakdown(ctx, r, 1)
		return err
	}))
	// (1 + 1) / (2 + 1 + 1 + 4)
	require.Equal(t, frac18(1, 4), b.Publishing18)

	require.NoError(t, store.View(ctx, func(r ledger.Reader) error {
		s, err := calc.NodeScore(ctx, r, 2)
		require.NoError(t, err)
		require.True(t, s.IsZero(), "node without stake")
		return nil
	}))
}
