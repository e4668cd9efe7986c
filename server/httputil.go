package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

const jsonContentType = "application/json; charset=utf-8"

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

func (e *httpError) Unwrap() error {
	return e.cause
}

func badRequest(cause error) error {
	return &httpError{cause: cause, status: http.StatusBadRequest}
}

// statusOf maps an error to the response status. Categorised rejections
// keep their kind; anything else is an internal error.
func statusOf(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.status
	}
	switch types.KindOf(err) {
	case types.KindSequencing:
		return http.StatusConflict
	case types.KindProof:
		return http.StatusUnprocessableEntity
	case types.KindAuthorization:
		return http.StatusForbidden
	case types.KindConfiguration:
		return http.StatusBadRequest
	case types.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// handlerFunc is like http.HandlerFunc but returns an error that is turned
// into a JSON error response.
type handlerFunc func(http.ResponseWriter, *http.Request) error

func wrapHandlerFunc(f handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		status := statusOf(err)
		logger := logging.FromContext(r.Context())
		if status == http.StatusInternalServerError {
			logger.Error("request failed", zap.Error(err))
		} else {
			logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
		}
		_ = writeJSONStatus(w, status, errorResponse{Error: err.Error(), Kind: types.KindOf(err).String()})
	}
}

// parseJSON decodes a JSON object in strict mode.
func parseJSON(r io.Reader, v any) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return badRequest(fmt.Errorf("body: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, obj any) error {
	return writeJSONStatus(w, http.StatusOK, obj)
}

func writeJSONStatus(w http.ResponseWriter, status int, obj any) error {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(obj)
}

func nodeVar(r *http.Request, name string) (shared.NodeID, error) {
	id, err := shared.ParseNodeID(mux.Vars(r)[name])
	if err != nil {
		return 0, badRequest(fmt.Errorf("%s: %w", name, err))
	}
	return id, nil
}

func uintVar(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, badRequest(fmt.Errorf("%s: %w", name, err))
	}
	return v, nil
}

func addressVar(r *http.Request, name string) (common.Address, error) {
	return parseAddress(name, mux.Vars(r)[name])
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, badRequest(fmt.Errorf("%s: invalid address %q", name, s))
	}
	return common.HexToAddress(s), nil
}

// parseAmount reads a decimal token amount.
func parseAmount(name, s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, badRequest(fmt.Errorf("%s: %w", name, err))
	}
	return v, nil
}
