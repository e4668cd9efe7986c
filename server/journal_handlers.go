package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/shared"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

func (a *api) mountJournal(r *mux.Router) {
	r.Path("/epochs/{epoch}/deltas").
		Methods(http.MethodGet).
		Name("get_epoch_deltas").
		HandlerFunc(wrapHandlerFunc(a.handleGetDeltas))
	r.Path("/epochs/{epoch}/root").
		Methods(http.MethodGet).
		Name("get_epoch_root").
		HandlerFunc(wrapHandlerFunc(a.handleGetEpochRoot))
	r.Path("/events").
		Methods(http.MethodGet).
		Name("get_events").
		HandlerFunc(wrapHandlerFunc(a.handleGetEvents))
}

type deltaView struct {
	Seq       uint64              `json:"seq"`
	Epoch     uint64              `json:"epoch"`
	Kind      string              `json:"kind"`
	Node      shared.NodeID       `json:"node"`
	Delegator shared.DelegatorKey `json:"delegator"`
	Change    *uint256.Int        `json:"change"`
	Negative  bool                `json:"negative"`
	Total     *uint256.Int        `json:"total"`
}

type epochRootResponse struct {
	Epoch uint64      `json:"epoch"`
	Root  common.Hash `json:"root"`
}

func (a *api) handleGetDeltas(w http.ResponseWriter, r *http.Request) error {
	epoch, err := uintVar(r, "epoch")
	if err != nil {
		return err
	}
	var deltas []ledger.Delta
	err = a.store.View(r.Context(), func(reader ledger.Reader) error {
		deltas, err = reader.Deltas(epoch)
		return err
	})
	if err != nil {
		return err
	}
	out := make([]deltaView, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, deltaView{
			Seq:       d.Seq,
			Epoch:     d.Epoch,
			Kind:      d.Kind.String(),
			Node:      d.Node,
			Delegator: d.Delegator,
			Change:    d.Change,
			Negative:  d.Negative,
			Total:     d.Total,
		})
	}
	return writeJSON(w, out)
}

func (a *api) handleGetEpochRoot(w http.ResponseWriter, r *http.Request) error {
	epoch, err := uintVar(r, "epoch")
	if err != nil {
		return err
	}
	root, err := a.store.EpochRoot(r.Context(), epoch)
	if err != nil {
		return err
	}
	return writeJSON(w, epochRootResponse{Epoch: epoch, Root: root})
}

// handleGetEvents pages through the event journal with from (first
// sequence number, inclusive) and limit query parameters.
func (a *api) handleGetEvents(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	var from uint64
	if v := query.Get("from"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(fmt.Errorf("from: %w", err))
		}
		from = parsed
	}
	limit := defaultEventsLimit
	if v := query.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return badRequest(fmt.Errorf("limit: invalid value %q", v))
		}
		limit = min(parsed, maxEventsLimit)
	}
	var records []events.Record
	err := a.store.View(r.Context(), func(reader ledger.Reader) error {
		var err error
		records, err = reader.Events(from, limit)
		return err
	})
	if err != nil {
		return err
	}
	if records == nil {
		records = []events.Record{}
	}
	return writeJSON(w, records)
}
