package staking

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

// activateDue clears the pending flag of an entry whose effective date has
// passed. It reports whether fees changed.
func activateDue(tx *ledger.Tx, node shared.NodeID, fees []ledger.OperatorFee, now uint64) (bool, error) {
	if len(fees) == 0 {
		return false, nil
	}
	last := &fees[len(fees)-1]
	if !last.Pending || last.EffectiveDate > now {
		return false, nil
	}
	last.Pending = false
	return true, tx.Emit(events.OperatorFeeActivated{
		Node:          node,
		FeeBps:        last.FeeBps,
		EffectiveDate: last.EffectiveDate,
	})
}

// activeFee is the newest entry in force at time t.
func activeFee(fees []ledger.OperatorFee, t uint64) uint16 {
	for i := len(fees) - 1; i >= 0; i-- {
		if fees[i].EffectiveDate <= t {
			return fees[i].FeeBps
		}
	}
	return 0
}

// feeForEpoch is the fee in force when epoch ended.
func (e *Engine) feeForEpoch(ctx context.Context, r ledger.Reader, node shared.NodeID, epoch uint64) (uint16, error) {
	fees, err := r.OperatorFees(node)
	if err != nil || len(fees) == 0 {
		return 0, err
	}
	end, err := e.chain.EpochStartTime(ctx, epoch+1)
	if err != nil {
		return 0, fmt.Errorf("reading start of epoch %d: %w", epoch+1, err)
	}
	if end == 0 {
		return 0, nil
	}
	return activeFee(fees, end-1), nil
}

// UpdateOperatorFee schedules feeBps to take effect after the configured
// delay. A change still pending is replaced.
func (e *Engine) UpdateOperatorFee(ctx context.Context, node shared.NodeID, caller common.Address, feeBps uint16) error {
	err := e.updateOperatorFee(ctx, node, caller, feeBps)
	observe("update_fee", err)
	return err
}

func (e *Engine) updateOperatorFee(ctx context.Context, node shared.NodeID, caller common.Address, feeBps uint16) error {
	if feeBps > shared.MaxFeeBps {
		return fmt.Errorf("%w: %d bps", types.ErrFeeAboveMaximum, feeBps)
	}
	if err := e.requireProfile(ctx, node); err != nil {
		return err
	}
	if err := e.requireAdmin(ctx, node, caller); err != nil {
		return err
	}
	ep, err := e.epochs(ctx)
	if err != nil {
		return err
	}
	now, err := e.chain.Now(ctx)
	if err != nil {
		return fmt.Errorf("reading chain time: %w", err)
	}
	effective := now + seconds(e.cfg.OperatorFeeDelay)

	return e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		rec, exists, err := tx.NodeRecord(node)
		if err != nil {
			return err
		}
		if last := ep.lastClaimable(); exists && rec.FeeSettledThrough < last {
			return fmt.Errorf("%w: settled through epoch %d, claimable through %d",
				types.ErrOperatorFeeNotReconciled, rec.FeeSettledThrough, last)
		}

		fees, err := tx.OperatorFees(node)
		if err != nil {
			return err
		}
		if _, err := activateDue(tx, node, fees, now); err != nil {
			return err
		}
		pending := effective > now
		if n := len(fees); n > 0 && fees[n-1].Pending {
			old := fees[n-1].FeeBps
			fees[n-1] = ledger.OperatorFee{FeeBps: feeBps, EffectiveDate: effective, Pending: pending}
			if err := tx.SetOperatorFees(node, fees); err != nil {
				return err
			}
			return tx.Emit(events.OperatorFeeReplaced{
				Node:          node,
				OldFeeBps:     old,
				NewFeeBps:     feeBps,
				EffectiveDate: effective,
			})
		}
		fees = append(fees, ledger.OperatorFee{FeeBps: feeBps, EffectiveDate: effective, Pending: pending})
		if err := tx.SetOperatorFees(node, fees); err != nil {
			return err
		}
		logging.FromContext(ctx).Info("operator fee scheduled",
			zap.Stringer("node", node),
			zap.Uint16("fee_bps", feeBps),
			zap.Uint64("effective_date", effective),
		)
		return tx.Emit(events.OperatorFeeAdded{Node: node, FeeBps: feeBps, EffectiveDate: effective})
	})
}

// ActiveOperatorFee returns the fee in force now, activating a pending
// entry whose time has come.
func (e *Engine) ActiveOperatorFee(ctx context.Context, node shared.NodeID) (uint16, error) {
	now, err := e.chain.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading chain time: %w", err)
	}
	var fee uint16
	err = e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		fees, err := tx.OperatorFees(node)
		if err != nil {
			return err
		}
		changed, err := activateDue(tx, node, fees, now)
		if err != nil {
			return err
		}
		if changed {
			if err := tx.SetOperatorFees(node, fees); err != nil {
				return err
			}
		}
		fee = activeFee(fees, now)
		return nil
	})
	return fee, err
}

// OperatorFeeState is a node's fee history and balances.
type OperatorFeeState struct {
	Fees       []ledger.OperatorFee      `json:"fees"`
	Balance    *uint256.Int              `json:"balance"`
	PaidOut    *uint256.Int              `json:"paidOut"`
	Withdrawal *ledger.WithdrawalRequest `json:"withdrawal,omitempty"`
	Record     *ledger.NodeRecord        `json:"record,omitempty"`
}

func (e *Engine) OperatorFee(ctx context.Context, node shared.NodeID) (*OperatorFeeState, error) {
	var state OperatorFeeState
	err := e.store.View(ctx, func(r ledger.Reader) error {
		var err error
		if state.Fees, err = r.OperatorFees(node); err != nil {
			return err
		}
		if state.Balance, err = r.OperatorFeeBalance(node); err != nil {
			return err
		}
		if state.PaidOut, err = r.OperatorFeesPaidOut(node); err != nil {
			return err
		}
		if state.Withdrawal, _, err = r.OperatorFeeWithdrawalRequest(node); err != nil {
			return err
		}
		state.Record, _, err = r.NodeRecord(node)
		return err
	})
	return &state, err
}

// RestakeOperatorFee moves amount from the fee balance into the admin's
// stake on node.
func (e *Engine) RestakeOperatorFee(ctx context.Context, node shared.NodeID, caller common.Address, amount *uint256.Int) error {
	err := e.restakeOperatorFee(ctx, node, caller, amount)
	observe("restake_fee", err)
	return err
}

func (e *Engine) restakeOperatorFee(ctx context.Context, node shared.NodeID, caller common.Address, amount *uint256.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := e.requireAdmin(ctx, node, caller); err != nil {
		return err
	}
	ep, err := e.epochs(ctx)
	if err != nil {
		return err
	}
	return e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		if err := debitFeeBalance(tx, ep.current, node, amount); err != nil {
			return err
		}
		if err := addStake(tx, ep, node, shared.NewDelegatorKey(caller), amount); err != nil {
			return err
		}
		return tx.Emit(events.OperatorFeeRestaked{Node: node, Admin: caller, Amount: amount})
	})
}

func debitFeeBalance(tx *ledger.Tx, current uint64, node shared.NodeID, amount *uint256.Int) error {
	balance, err := tx.OperatorFeeBalance(node)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: fee balance %s < %s", types.ErrInsufficientBalance, balance.Dec(), amount.Dec())
	}
	_, err = tx.SubOperatorFeeBalance(current, node, amount)
	return err
}
