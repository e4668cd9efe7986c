package staking

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/shared"
)

//go:generate mockgen -package mocks -destination mocks/collaborators.go . Chain,Identity,Custody,RewardPool

// Chain is the epoch clock. Times are unix seconds of chain blocks.
type Chain interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
	LastFinalizedEpoch(ctx context.Context) (uint64, error)
	Now(ctx context.Context) (uint64, error)
	EpochStartTime(ctx context.Context, epoch uint64) (uint64, error)
}

type Identity interface {
	ProfileExists(ctx context.Context, node shared.NodeID) (bool, error)
	IsAdminKey(ctx context.Context, node shared.NodeID, key common.Address) (bool, error)
}

// Custody moves tokens between accounts and the staking escrow.
//
// Debit and Credit run inside the ledger transaction, after every check
// has passed and before the commit. A failed call rolls the transaction
// back. A failed commit after a successful call leaves the transfer done
// while the ledger is unchanged, so implementations must be able to
// reverse or reconcile a transfer the ledger never recorded.
type Custody interface {
	Debit(ctx context.Context, from common.Address, amount *uint256.Int) error
	Credit(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// RewardPool reports the tokens distributed for an epoch.
type RewardPool interface {
	EpochPool(ctx context.Context, epoch uint64) (*uint256.Int, error)
}
