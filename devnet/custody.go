package devnet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

// Debit moves amount from an account into escrow.
func (n *Network) Debit(_ context.Context, from common.Address, amount *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.debitLocked(from, amount)
}

func (n *Network) debitLocked(from common.Address, amount *uint256.Int) error {
	balance := shared.Copy(n.balances[from])
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", types.ErrInsufficientBalance, from.Hex(), balance.Dec(), amount.Dec())
	}
	n.balances[from] = balance.Sub(balance, amount)
	n.escrow.Add(n.escrow, amount)
	return nil
}

// Credit pays amount out of escrow.
func (n *Network) Credit(_ context.Context, to common.Address, amount *uint256.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.escrow.Lt(amount) {
		return fmt.Errorf("%w: escrow holds %s, needs %s", types.ErrInsufficientBalance, n.escrow.Dec(), amount.Dec())
	}
	n.escrow.Sub(n.escrow, amount)
	balance := shared.Copy(n.balances[to])
	n.balances[to] = balance.Add(balance, amount)
	return nil
}

// Balance returns the account balance outside escrow.
func (n *Network) Balance(addr common.Address) *uint256.Int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return shared.Copy(n.balances[addr])
}

// Escrow returns the tokens held for stake and undistributed rewards.
func (n *Network) Escrow() *uint256.Int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return shared.Copy(n.escrow)
}

// Fund mints amount into an account.
func (n *Network) Fund(addr common.Address, amount *uint256.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	balance := shared.Copy(n.balances[addr])
	n.balances[addr] = balance.Add(balance, amount)
}
