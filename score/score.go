// Package score computes the deterministic per-proof node score. All
// arithmetic is 1e18 fixed point with truncating division.
package score

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap/zapcore"

	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

// PublishingWindow is the number of epochs, current included, summed for
// the publishing factor.
const PublishingWindow = 4

var (
	stakeWeight        = uint256.NewInt(4)
	publishingWeight   = uint256.NewInt(86)
	askWeight          = uint256.NewInt(60)
	percentDenominator = uint256.NewInt(100)
)

// Inputs holds every value the score depends on.
type Inputs struct {
	Stake        *uint256.Int
	StakeCap     *uint256.Int
	NodeValue    *uint256.Int
	TotalValue   *uint256.Int
	NodeAsk      *uint256.Int
	NetworkPrice *uint256.Int
}

// Breakdown is the score with its three factors, each 1e18 scaled.
type Breakdown struct {
	Stake18      *uint256.Int `json:"stakeFactor"`
	Publishing18 *uint256.Int `json:"publishingFactor"`
	Ask18        *uint256.Int `json:"askFactor"`
	Score18      *uint256.Int `json:"score"`
}

func (b Breakdown) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("stake_factor", b.Stake18.Dec())
	enc.AddString("publishing_factor", b.Publishing18.Dec())
	enc.AddString("ask_factor", b.Ask18.Dec())
	enc.AddString("score", b.Score18.Dec())
	return nil
}

func zeroBreakdown() Breakdown {
	return Breakdown{Stake18: shared.Zero(), Publishing18: shared.Zero(), Ask18: shared.Zero(), Score18: shared.Zero()}
}

// Compute evaluates 0.04*S + 0.86*P + 0.6*A*P where
//
//	S = sqrt(min(stake, cap) / cap)
//	P = nodeValue / totalValue
//	A = max(0, 1 - |ask - price| / price)
//
// A node without stake scores zero.
func Compute(in Inputs) (Breakdown, error) {
	stake := shared.Copy(in.Stake)
	if stake.IsZero() {
		return zeroBreakdown(), nil
	}
	stakeCap := shared.Copy(in.StakeCap)
	if stakeCap.IsZero() {
		return Breakdown{}, types.ErrZeroStakeCap
	}

	b := Breakdown{
		Stake18:      StakeFactor(stake, stakeCap),
		Publishing18: PublishingFactor(shared.Copy(in.NodeValue), shared.Copy(in.TotalValue)),
		Ask18:        AskFactor(shared.Copy(in.NodeAsk), shared.Copy(in.NetworkPrice)),
	}

	s := new(uint256.Int).Mul(stakeWeight, b.Stake18)
	s.Div(s, percentDenominator)

	p := new(uint256.Int).Mul(publishingWeight, b.Publishing18)
	p.Div(p, percentDenominator)

	a := new(uint256.Int).Mul(askWeight, b.Ask18)
	a.Mul(a, b.Publishing18)
	a.Div(a, new(uint256.Int).Mul(percentDenominator, shared.Scale18))

	b.Score18 = s.Add(s, p).Add(s, a)
	return b, nil
}

// StakeFactor returns sqrt(min(stake, cap) * 1e18 / cap * 1e18).
func StakeFactor(stake, stakeCap *uint256.Int) *uint256.Int {
	capped := shared.Min(stake, stakeCap)
	ratio := shared.MulDiv(capped, shared.Scale18, stakeCap)
	ratio.Mul(ratio, shared.Scale18)
	return ratio.Sqrt(ratio)
}

// PublishingFactor returns nodeValue * 1e18 / totalValue, or zero.
func PublishingFactor(nodeValue, totalValue *uint256.Int) *uint256.Int {
	if totalValue.IsZero() {
		return shared.Zero()
	}
	return shared.MulDiv(nodeValue, shared.Scale18, totalValue)
}

// AskFactor returns max(0, 1e18 - |ask - price| * 1e18 / price). A zero
// price disables the factor.
func AskFactor(ask, price *uint256.Int) *uint256.Int {
	if price.IsZero() {
		return shared.Zero()
	}
	deviation := shared.MulDiv(shared.AbsDiff(ask, price), shared.Scale18, price)
	if !deviation.Lt(shared.Scale18) {
		return shared.Zero()
	}
	return new(uint256.Int).Sub(shared.Scale18, deviation)
}

// Epochs reports the current epoch.
type Epochs interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
}

type Params interface {
	StakeCap(ctx context.Context) (*uint256.Int, error)
}

type Asks interface {
	NodeAsk(ctx context.Context, node shared.NodeID) (*uint256.Int, error)
	NetworkPrice(ctx context.Context) (*uint256.Int, error)
}

// Publishing exposes per-epoch produced-value aggregates.
type Publishing interface {
	NodeProducedValue(ctx context.Context, epoch uint64, node shared.NodeID) (*uint256.Int, error)
	TotalProducedValue(ctx context.Context, epoch uint64) (*uint256.Int, error)
}

// Calculator gathers Inputs from the ledger and collaborators.
type Calculator struct {
	epochs     Epochs
	params     Params
	asks       Asks
	publishing Publishing
}

func NewCalculator(epochs Epochs, params Params, asks Asks, publishing Publishing) *Calculator {
	return &Calculator{epochs: epochs, params: params, asks: asks, publishing: publishing}
}

// NodeScore returns the score node would earn for a proof right now.
func (c *Calculator) NodeScore(ctx context.Context, r ledger.Reader, node shared.NodeID) (*uint256.Int, error) {
	b, err := c.Breakdown(ctx, r, node)
	if err != nil {
		return nil, err
	}
	return b.Score18, nil
}

func (c *Calculator) Breakdown(ctx context.Context, r ledger.Reader, node shared.NodeID) (Breakdown, error) {
	in, err := c.inputs(ctx, r, node)
	if err != nil {
		return Breakdown{}, err
	}
	return Compute(in)
}

func (c *Calculator) inputs(ctx context.Context, r ledger.Reader, node shared.NodeID) (Inputs, error) {
	stake, err := r.NodeStake(node)
	if err != nil {
		return Inputs{}, fmt.Errorf("reading node stake: %w", err)
	}
	stakeCap, err := c.params.StakeCap(ctx)
	if err != nil {
		return Inputs{}, fmt.Errorf("reading stake cap: %w", err)
	}
	ask, err := c.asks.NodeAsk(ctx, node)
	if err != nil {
		return Inputs{}, fmt.Errorf("reading node ask: %w", err)
	}
	price, err := c.asks.NetworkPrice(ctx)
	if err != nil {
		return Inputs{}, fmt.Errorf("reading network price: %w", err)
	}
	epoch, err := c.epochs.CurrentEpoch(ctx)
	if err != nil {
		return Inputs{}, fmt.Errorf("reading current epoch: %w", err)
	}

	nodeValue, totalValue := shared.Zero(), shared.Zero()
	for i := uint64(0); i < PublishingWindow && i <= epoch; i++ {
		nv, err := c.publishing.NodeProducedValue(ctx, epoch-i, node)
		if err != nil {
			return Inputs{}, fmt.Errorf("reading produced value of epoch %d: %w", epoch-i, err)
		}
		tv, err := c.publishing.TotalProducedValue(ctx, epoch-i)
		if err != nil {
			return Inputs{}, fmt.Errorf("reading total produced value of epoch %d: %w", epoch-i, err)
		}
		nodeValue.Add(nodeValue, shared.Copy(nv))
		totalValue.Add(totalValue, shared.Copy(tv))
	}

	return Inputs{
		Stake:        stake,
		StakeCap:     stakeCap,
		NodeValue:    nodeValue,
		TotalValue:   totalValue,
		NodeAsk:      ask,
		NetworkPrice: price,
	}, nil
}
