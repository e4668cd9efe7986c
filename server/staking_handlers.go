package server

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/staking"
)

func (a *api) mountStaking(r *mux.Router) {
	sub := r.PathPrefix("/nodes/{node}").Subrouter()

	sub.Path("/stake").
		Methods(http.MethodPost).
		Name("stake").
		HandlerFunc(wrapHandlerFunc(a.handleStake))
	sub.Path("/redelegate").
		Methods(http.MethodPost).
		Name("redelegate").
		HandlerFunc(wrapHandlerFunc(a.handleRedelegate))
	sub.Path("/claims").
		Methods(http.MethodPost).
		Name("claim_rewards").
		HandlerFunc(wrapHandlerFunc(a.handleClaim))
	sub.Path("/withdrawal").
		Methods(http.MethodPost).
		Name("request_withdrawal").
		HandlerFunc(wrapHandlerFunc(a.handleRequestWithdrawal))
	sub.Path("/withdrawal").
		Methods(http.MethodDelete).
		Name("cancel_withdrawal").
		HandlerFunc(wrapHandlerFunc(a.handleCancelWithdrawal))
	sub.Path("/withdrawal/finalize").
		Methods(http.MethodPost).
		Name("finalize_withdrawal").
		HandlerFunc(wrapHandlerFunc(a.handleFinalizeWithdrawal))
	sub.Path("/delegators/{address}").
		Methods(http.MethodGet).
		Name("get_delegator").
		HandlerFunc(wrapHandlerFunc(a.handleGetDelegator))

	sub.Path("/operator-fee").
		Methods(http.MethodGet).
		Name("get_operator_fee").
		HandlerFunc(wrapHandlerFunc(a.handleGetOperatorFee))
	sub.Path("/operator-fee").
		Methods(http.MethodPut).
		Name("update_operator_fee").
		HandlerFunc(wrapHandlerFunc(a.handleUpdateOperatorFee))
	sub.Path("/operator-fee/settle").
		Methods(http.MethodPost).
		Name("settle_operator_fee").
		HandlerFunc(wrapHandlerFunc(a.handleSettleOperatorFee))
	sub.Path("/operator-fee/withdrawal").
		Methods(http.MethodPost).
		Name("request_operator_fee_withdrawal").
		HandlerFunc(wrapHandlerFunc(a.handleRequestFeeWithdrawal))
	sub.Path("/operator-fee/withdrawal").
		Methods(http.MethodDelete).
		Name("cancel_operator_fee_withdrawal").
		HandlerFunc(wrapHandlerFunc(a.handleCancelFeeWithdrawal))
	sub.Path("/operator-fee/withdrawal/finalize").
		Methods(http.MethodPost).
		Name("finalize_operator_fee_withdrawal").
		HandlerFunc(wrapHandlerFunc(a.handleFinalizeFeeWithdrawal))
	sub.Path("/operator-fee/restake").
		Methods(http.MethodPost).
		Name("restake_operator_fee").
		HandlerFunc(wrapHandlerFunc(a.handleRestakeFee))
}

type delegatorRequest struct {
	Delegator string `json:"delegator"`
}

type amountRequest struct {
	Delegator string `json:"delegator,omitempty"`
	Caller    string `json:"caller,omitempty"`
	Amount    string `json:"amount"`
}

type redelegateRequest struct {
	Delegator string        `json:"delegator"`
	To        shared.NodeID `json:"to"`
	Amount    string        `json:"amount"`
}

type claimRequest struct {
	Delegator string   `json:"delegator"`
	Epochs    []uint64 `json:"epochs"`
}

type updateFeeRequest struct {
	Caller string `json:"caller"`
	FeeBps uint16 `json:"feeBps"`
}

type settleFeeRequest struct {
	Epoch uint64 `json:"epoch"`
}

type amountResponse struct {
	Amount *uint256.Int `json:"amount"`
}

type operatorFeeResponse struct {
	*staking.OperatorFeeState
	ActiveFeeBps uint16 `json:"activeFeeBps"`
}

// nodeAndAmount reads the path node and an amount body whose account field
// is either delegator or caller.
func nodeAndAmount(r *http.Request, account string) (shared.NodeID, common.Address, *uint256.Int, error) {
	node, err := nodeVar(r, "node")
	if err != nil {
		return 0, common.Address{}, nil, err
	}
	var req amountRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return 0, common.Address{}, nil, err
	}
	raw := req.Delegator
	if account == "caller" {
		raw = req.Caller
	}
	addr, err := parseAddress(account, raw)
	if err != nil {
		return 0, common.Address{}, nil, err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return 0, common.Address{}, nil, err
	}
	return node, addr, amount, nil
}

// nodeAndAccount reads the path node and a body holding a single account.
func nodeAndAccount(r *http.Request, account string) (shared.NodeID, common.Address, error) {
	node, err := nodeVar(r, "node")
	if err != nil {
		return 0, common.Address{}, err
	}
	var raw string
	if account == "caller" {
		var req callerRequest
		if err := parseJSON(r.Body, &req); err != nil {
			return 0, common.Address{}, err
		}
		raw = req.Caller
	} else {
		var req delegatorRequest
		if err := parseJSON(r.Body, &req); err != nil {
			return 0, common.Address{}, err
		}
		raw = req.Delegator
	}
	addr, err := parseAddress(account, raw)
	if err != nil {
		return 0, common.Address{}, err
	}
	return node, addr, nil
}

func (a *api) handleStake(w http.ResponseWriter, r *http.Request) error {
	node, delegator, amount, err := nodeAndAmount(r, "delegator")
	if err != nil {
		return err
	}
	if err := a.staker.Stake(r.Context(), node, delegator, amount); err != nil {
		return err
	}
	return a.writeDelegator(w, r, node, delegator)
}

func (a *api) handleRedelegate(w http.ResponseWriter, r *http.Request) error {
	from, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	var req redelegateRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	delegator, err := parseAddress("delegator", req.Delegator)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		return err
	}
	if err := a.staker.Redelegate(r.Context(), from, req.To, delegator, amount); err != nil {
		return err
	}
	return a.writeDelegator(w, r, req.To, delegator)
}

func (a *api) handleClaim(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	var req claimRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	delegator, err := parseAddress("delegator", req.Delegator)
	if err != nil {
		return err
	}
	if len(req.Epochs) == 0 {
		return badRequest(errors.New("epochs: at least one epoch is required"))
	}
	claimed, err := a.staker.BatchClaimDelegatorRewards(r.Context(), node, req.Epochs, delegator)
	if err != nil {
		return err
	}
	out := make([]*events.Event, 0, len(claimed))
	for _, c := range claimed {
		out = append(out, c.Event())
	}
	return writeJSON(w, out)
}

func (a *api) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) error {
	node, delegator, amount, err := nodeAndAmount(r, "delegator")
	if err != nil {
		return err
	}
	req, err := a.staker.RequestWithdrawal(r.Context(), node, delegator, amount)
	if err != nil {
		return err
	}
	return writeJSON(w, req)
}

func (a *api) handleCancelWithdrawal(w http.ResponseWriter, r *http.Request) error {
	node, delegator, err := nodeAndAccount(r, "delegator")
	if err != nil {
		return err
	}
	if err := a.staker.CancelWithdrawal(r.Context(), node, delegator); err != nil {
		return err
	}
	return a.writeDelegator(w, r, node, delegator)
}

func (a *api) handleFinalizeWithdrawal(w http.ResponseWriter, r *http.Request) error {
	node, delegator, err := nodeAndAccount(r, "delegator")
	if err != nil {
		return err
	}
	amount, err := a.staker.FinalizeWithdrawal(r.Context(), node, delegator)
	if err != nil {
		return err
	}
	return writeJSON(w, amountResponse{Amount: amount})
}

func (a *api) handleGetDelegator(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	delegator, err := addressVar(r, "address")
	if err != nil {
		return err
	}
	return a.writeDelegator(w, r, node, delegator)
}

func (a *api) writeDelegator(w http.ResponseWriter, r *http.Request, node shared.NodeID, delegator common.Address) error {
	state, err := a.staker.Delegator(r.Context(), node, delegator)
	if err != nil {
		return err
	}
	return writeJSON(w, state)
}

func (a *api) handleGetOperatorFee(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	return a.writeOperatorFee(w, r, node)
}

func (a *api) writeOperatorFee(w http.ResponseWriter, r *http.Request, node shared.NodeID) error {
	active, err := a.staker.ActiveOperatorFee(r.Context(), node)
	if err != nil {
		return err
	}
	state, err := a.staker.OperatorFee(r.Context(), node)
	if err != nil {
		return err
	}
	return writeJSON(w, operatorFeeResponse{OperatorFeeState: state, ActiveFeeBps: active})
}

func (a *api) handleUpdateOperatorFee(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	var req updateFeeRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	if err := a.staker.UpdateOperatorFee(r.Context(), node, caller, req.FeeBps); err != nil {
		return err
	}
	return a.writeOperatorFee(w, r, node)
}

func (a *api) handleSettleOperatorFee(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	var req settleFeeRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	rewards, err := a.staker.SettleOperatorFee(r.Context(), node, req.Epoch)
	if err != nil {
		return err
	}
	return writeJSON(w, rewards)
}

func (a *api) handleRequestFeeWithdrawal(w http.ResponseWriter, r *http.Request) error {
	node, caller, amount, err := nodeAndAmount(r, "caller")
	if err != nil {
		return err
	}
	req, err := a.staker.RequestOperatorFeeWithdrawal(r.Context(), node, caller, amount)
	if err != nil {
		return err
	}
	return writeJSON(w, req)
}

func (a *api) handleCancelFeeWithdrawal(w http.ResponseWriter, r *http.Request) error {
	node, caller, err := nodeAndAccount(r, "caller")
	if err != nil {
		return err
	}
	if err := a.staker.CancelOperatorFeeWithdrawal(r.Context(), node, caller); err != nil {
		return err
	}
	return a.writeOperatorFee(w, r, node)
}

func (a *api) handleFinalizeFeeWithdrawal(w http.ResponseWriter, r *http.Request) error {
	node, caller, err := nodeAndAccount(r, "caller")
	if err != nil {
		return err
	}
	amount, err := a.staker.FinalizeOperatorFeeWithdrawal(r.Context(), node, caller)
	if err != nil {
		return err
	}
	return writeJSON(w, amountResponse{Amount: amount})
}

func (a *api) handleRestakeFee(w http.ResponseWriter, r *http.Request) error {
	node, caller, amount, err := nodeAndAmount(r, "caller")
	if err != nil {
		return err
	}
	if err := a.staker.RestakeOperatorFee(r.Context(), node, caller, amount); err != nil {
		return err
	}
	return a.writeOperatorFee(w, r, node)
}
