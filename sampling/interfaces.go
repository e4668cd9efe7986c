package sampling

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/shared"
)

//go:generate mockgen -package mocks -destination mocks/collaborators.go . Chain,Collections,Identity,Params,Scorer

// Chain is the block and epoch source.
type Chain interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CurrentEpoch(ctx context.Context) (uint64, error)
	// Entropy returns randomness bound to a block that cannot be known
	// before the block exists.
	Entropy(ctx context.Context, block uint64) (common.Hash, error)
}

// Collections is the knowledge collection directory.
type Collections interface {
	// LatestID is the highest collection id ever created. Ids start at 1.
	LatestID(ctx context.Context) (uint64, error)
	Collection(ctx context.Context, id uint64) (shared.Collection, error)
	// Address is the reference recorded in challenges.
	Address() common.Address
}

type Identity interface {
	IsOperationalKey(ctx context.Context, node shared.NodeID, key common.Address) (bool, error)
}

type Params interface {
	MinimumStake(ctx context.Context) (*uint256.Int, error)
	IsGovernor(ctx context.Context, addr common.Address) (bool, error)
}

// Scorer prices a successful proof.
type Scorer interface {
	NodeScore(ctx context.Context, r ledger.Reader, node shared.NodeID) (*uint256.Int, error)
}
