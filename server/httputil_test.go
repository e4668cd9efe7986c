package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kcnet/incentives/types"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("epoch 3: %w", types.ErrEpochAlreadyClaimed), http.StatusConflict},
		{&types.MerkleRootMismatchError{}, http.StatusUnprocessableEntity},
		{types.ErrNotOperationalKey, http.StatusForbidden},
		{types.ErrFeeAboveMaximum, http.StatusBadRequest},
		{types.ErrNoChallenge, http.StatusNotFound},
		{badRequest(errors.New("body")), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			require.Equal(t, tc.status, statusOf(tc.err))
		})
	}
}

func TestWrapHandlerFuncWritesErrorBody(t *testing.T) {
	h := wrapHandlerFunc(func(http.ResponseWriter, *http.Request) error {
		return fmt.Errorf("claiming: %w", types.ErrClaimOlderEpochsFirst)
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, jsonContentType, rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error":"claiming: Must claim older epochs first","kind":"sequencing"}`, rec.Body.String())
}
