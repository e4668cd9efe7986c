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

// accumulate adds amount to an existing request and restarts its delay.
func accumulate(req *ledger.WithdrawalRequest, exists bool, amount *uint256.Int, now, delay uint64) *ledger.WithdrawalRequest {
	pending := new(uint256.Int).Set(amount)
	if exists {
		pending.Add(pending, req.Amount)
	}
	return &ledger.WithdrawalRequest{Amount: pending, RequestedAt: now, ReleaseAt: now + delay}
}

func (e *Engine) now(ctx context.Context) (uint64, error) {
	now, err := e.chain.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading chain time: %w", err)
	}
	return now, nil
}

// RequestWithdrawal moves amount out of the delegator's stake into a
// pending withdrawal.
func (e *Engine) RequestWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	delegator common.Address,
	amount *uint256.Int,
) (*ledger.WithdrawalRequest, error) {
	req, err := e.requestWithdrawal(ctx, node, delegator, amount)
	observe("request_withdrawal", err)
	return req, err
}

func (e *Engine) requestWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	delegator common.Address,
	amount *uint256.Int,
) (*ledger.WithdrawalRequest, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	ep, err := e.epochs(ctx)
	if err != nil {
		return nil, err
	}
	now, err := e.now(ctx)
	if err != nil {
		return nil, err
	}
	d := shared.NewDelegatorKey(delegator)
	var req *ledger.WithdrawalRequest
	err = e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		if err := removeStake(tx, ep, node, d, amount); err != nil {
			return err
		}
		existing, exists, err := tx.WithdrawalRequest(node, d)
		if err != nil {
			return err
		}
		req = accumulate(existing, exists, amount, now, seconds(e.cfg.WithdrawalDelay))
		if err := tx.SetWithdrawalRequest(node, d, req); err != nil {
			return err
		}
		return tx.Emit(events.WithdrawalRequested{
			Node:      node,
			Delegator: delegator,
			Amount:    amount,
			Pending:   req.Amount,
			ReleaseAt: req.ReleaseAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CancelWithdrawal returns the whole pending amount to stake.
func (e *Engine) CancelWithdrawal(ctx context.Context, node shared.NodeID, delegator common.Address) error {
	err := e.cancelWithdrawal(ctx, node, delegator)
	observe("cancel_withdrawal", err)
	return err
}

func (e *Engine) cancelWithdrawal(ctx context.Context, node shared.NodeID, delegator common.Address) error {
	ep, err := e.epochs(ctx)
	if err != nil {
		return err
	}
	d := shared.NewDelegatorKey(delegator)
	return e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		req, exists, err := tx.WithdrawalRequest(node, d)
		if err != nil {
			return err
		}
		if !exists {
			return types.ErrNoWithdrawalRequest
		}
		if err := addStake(tx, ep, node, d, req.Amount); err != nil {
			return err
		}
		if err := tx.DeleteWithdrawalRequest(node, d); err != nil {
			return err
		}
		return tx.Emit(events.WithdrawalCancelled{Node: node, Delegator: delegator, Amount: req.Amount})
	})
}

// FinalizeWithdrawal pays out a request whose delay has elapsed.
func (e *Engine) FinalizeWithdrawal(ctx context.Context, node shared.NodeID, delegator common.Address) (*uint256.Int, error) {
	amount, err := e.finalizeWithdrawal(ctx, node, delegator)
	observe("finalize_withdrawal", err)
	return amount, err
}

func (e *Engine) finalizeWithdrawal(ctx context.Context, node shared.NodeID, delegator common.Address) (*uint256.Int, error) {
	ep, err := e.epochs(ctx)
	if err != nil {
		return nil, err
	}
	now, err := e.now(ctx)
	if err != nil {
		return nil, err
	}
	d := shared.NewDelegatorKey(delegator)
	var amount *uint256.Int
	err = e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		req, exists, err := tx.WithdrawalRequest(node, d)
		if err != nil {
			return err
		}
		if !exists {
			return types.ErrNoWithdrawalRequest
		}
		if now < req.ReleaseAt {
			return fmt.Errorf("%w: releases at %d, now %d", types.ErrWithdrawalPending, req.ReleaseAt, now)
		}
		if _, err := claimedThroughPrevious(tx, ep, node, d); err != nil {
			return err
		}
		if err := tx.DeleteWithdrawalRequest(node, d); err != nil {
			return err
		}
		amount = req.Amount
		if err := tx.Emit(events.WithdrawalFinalized{Node: node, Delegator: delegator, Amount: amount}); err != nil {
			return err
		}
		if err := e.custody.Credit(ctx, delegator, amount); err != nil {
			return fmt.Errorf("crediting %s: %w", delegator.Hex(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("withdrawal finalized",
		zap.Stringer("node", node),
		zap.Stringer("delegator", delegator),
		zap.Stringer("amount", amount),
	)
	return amount, nil
}

// RequestOperatorFeeWithdrawal moves amount from the fee balance into a
// pending withdrawal.
func (e *Engine) RequestOperatorFeeWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
	amount *uint256.Int,
) (*ledger.WithdrawalRequest, error) {
	req, err := e.requestOperatorFeeWithdrawal(ctx, node, caller, amount)
	observe("request_fee_withdrawal", err)
	return req, err
}

func (e *Engine) requestOperatorFeeWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
	amount *uint256.Int,
) (*ledger.WithdrawalRequest, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	if err := e.requireAdmin(ctx, node, caller); err != nil {
		return nil, err
	}
	ep, err := e.epochs(ctx)
	if err != nil {
		return nil, err
	}
	now, err := e.now(ctx)
	if err != nil {
		return nil, err
	}
	var req *ledger.WithdrawalRequest
	err = e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		if err := debitFeeBalance(tx, ep.current, node, amount); err != nil {
			return err
		}
		existing, exists, err := tx.OperatorFeeWithdrawalRequest(node)
		if err != nil {
			return err
		}
		req = accumulate(existing, exists, amount, now, seconds(e.cfg.WithdrawalDelay))
		if err := tx.SetOperatorFeeWithdrawalRequest(node, req); err != nil {
			return err
		}
		return tx.Emit(events.OperatorFeeWithdrawalRequested{
			Node:      node,
			Amount:    amount,
			Pending:   req.Amount,
			ReleaseAt: req.ReleaseAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (e *Engine) CancelOperatorFeeWithdrawal(ctx context.Context, node shared.NodeID, caller common.Address) error {
	err := e.cancelOperatorFeeWithdrawal(ctx, node, caller)
	observe("cancel_fee_withdrawal", err)
	return err
}

func (e *Engine) cancelOperatorFeeWithdrawal(ctx context.Context, node shared.NodeID, caller common.Address) error {
	if err := e.requireAdmin(ctx, node, caller); err != nil {
		return err
	}
	ep, err := e.epochs(ctx)
	if err != nil {
		return err
	}
	return e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		req, exists, err := tx.OperatorFeeWithdrawalRequest(node)
		if err != nil {
			return err
		}
		if !exists {
			return types.ErrNoWithdrawalRequest
		}
		if _, err := tx.AddOperatorFeeBalance(ep.current, node, req.Amount); err != nil {
			return err
		}
		if err := tx.DeleteOperatorFeeWithdrawalRequest(node); err != nil {
			return err
		}
		return tx.Emit(events.OperatorFeeWithdrawalCancelled{Node: node, Amount: req.Amount})
	})
}

// FinalizeOperatorFeeWithdrawal pays a due fee withdrawal to the calling
// admin key.
func (e *Engine) FinalizeOperatorFeeWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
) (*uint256.Int, error) {
	amount, err := e.finalizeOperatorFeeWithdrawal(ctx, node, caller)
	observe("finalize_fee_withdrawal", err)
	return amount, err
}

func (e *Engine) finalizeOperatorFeeWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
) (*uint256.Int, error) {
	if err := e.requireAdmin(ctx, node, caller); err != nil {
		return nil, err
	}
	now, err := e.now(ctx)
	if err != nil {
		return nil, err
	}
	var amount *uint256.Int
	err = e.store.Update(ctx, ledger.RoleSettlement, func(tx *ledger.Tx) error {
		req, exists, err := tx.OperatorFeeWithdrawalRequest(node)
		if err != nil {
			return err
		}
		if !exists {
			return types.ErrNoWithdrawalRequest
		}
		if now < req.ReleaseAt {
			return fmt.Errorf("%w: releases at %d, now %d", types.ErrWithdrawalPending, req.ReleaseAt, now)
		}
		if err := tx.DeleteOperatorFeeWithdrawalRequest(node); err != nil {
			return err
		}
		if err := tx.AddOperatorFeesPaidOut(node, req.Amount); err != nil {
			return err
		}
		amount = req.Amount
		if err := tx.Emit(events.OperatorFeeWithdrawalFinalized{
			Node:        node,
			Beneficiary: caller,
			Amount:      amount,
		}); err != nil {
			return err
		}
		if err := e.custody.Credit(ctx, caller, amount); err != nil {
			return fmt.Errorf("crediting %s: %w", caller.Hex(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}
