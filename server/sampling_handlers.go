package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/score"
	"github.com/kcnet/incentives/shared"
)

func (a *api) mountSampling(r *mux.Router) {
	r.Path("/proof-period").
		Methods(http.MethodGet).
		Name("get_proof_period").
		HandlerFunc(wrapHandlerFunc(a.handleGetProofPeriod))
	r.Path("/proof-period/duration").
		Methods(http.MethodPut).
		Name("set_proof_period_duration").
		HandlerFunc(wrapHandlerFunc(a.handleSetProofPeriodDuration))
	r.Path("/proof-period/history").
		Methods(http.MethodGet).
		Name("get_historical_proof_period").
		HandlerFunc(wrapHandlerFunc(a.handleHistoricalProofPeriod))
	r.Path("/nodes/{node}/challenge").
		Methods(http.MethodPost).
		Name("create_challenge").
		HandlerFunc(wrapHandlerFunc(a.handleCreateChallenge))
	r.Path("/nodes/{node}/challenge").
		Methods(http.MethodGet).
		Name("get_challenge").
		HandlerFunc(wrapHandlerFunc(a.handleGetChallenge))
	r.Path("/nodes/{node}/proof").
		Methods(http.MethodPost).
		Name("submit_proof").
		HandlerFunc(wrapHandlerFunc(a.handleSubmitProof))
	r.Path("/nodes/{node}/score").
		Methods(http.MethodGet).
		Name("get_node_score").
		HandlerFunc(wrapHandlerFunc(a.handleGetNodeScore))
	r.Path("/nodes/{node}/epochs/{epoch}").
		Methods(http.MethodGet).
		Name("get_node_epoch").
		HandlerFunc(wrapHandlerFunc(a.handleGetNodeEpoch))
}

type challengeView struct {
	KnowledgeCollectionID  uint64         `json:"knowledgeCollectionId"`
	ChunkID                uint64         `json:"chunkId"`
	CollectionRef          common.Address `json:"collectionRef"`
	Epoch                  uint64         `json:"epoch"`
	PeriodStartBlock       uint64         `json:"periodStartBlock"`
	PeriodDurationInBlocks uint64         `json:"periodDurationInBlocks"`
	Solved                 bool           `json:"solved"`
}

func newChallengeView(c *shared.Challenge) challengeView {
	return challengeView{
		KnowledgeCollectionID:  c.KnowledgeCollectionID,
		ChunkID:                c.ChunkID,
		CollectionRef:          c.CollectionRef,
		Epoch:                  c.Epoch,
		PeriodStartBlock:       c.PeriodStartBlock,
		PeriodDurationInBlocks: c.PeriodDurationInBlocks,
		Solved:                 c.Solved,
	}
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type setDurationRequest struct {
	Caller           string `json:"caller"`
	DurationInBlocks uint64 `json:"durationInBlocks"`
}

type proofRequest struct {
	Caller string        `json:"caller"`
	Chunk  hexutil.Bytes `json:"chunk"`
	Proof  []common.Hash `json:"proof"`
}

type historicalStartResponse struct {
	Start uint64 `json:"start"`
}

type nodeScoreResponse struct {
	score.Breakdown
	NodeStake *uint256.Int `json:"nodeStake"`
}

type nodeEpochResponse struct {
	Node               shared.NodeID            `json:"node"`
	Epoch              uint64                   `json:"epoch"`
	Score              *uint256.Int             `json:"score"`
	AllNodesEpochScore *uint256.Int             `json:"allNodesEpochScore"`
	ScorePerStake      *uint256.Int             `json:"scorePerStake"`
	ValidProofs        uint64                   `json:"validProofs"`
	Rewards            *ledger.NodeEpochRewards `json:"rewards,omitempty"`
}

func (a *api) handleGetProofPeriod(w http.ResponseWriter, r *http.Request) error {
	status, err := a.sampler.ProofPeriodStatus(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, status)
}

func (a *api) handleSetProofPeriodDuration(w http.ResponseWriter, r *http.Request) error {
	var req setDurationRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	if err := a.sampler.SetProofingPeriodDuration(r.Context(), caller, req.DurationInBlocks); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *api) handleHistoricalProofPeriod(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	start, err := strconv.ParseUint(query.Get("start"), 10, 64)
	if err != nil {
		return badRequest(fmt.Errorf("start: %w", err))
	}
	offset, err := strconv.ParseUint(query.Get("offset"), 10, 64)
	if err != nil {
		return badRequest(fmt.Errorf("offset: %w", err))
	}
	historical, err := a.sampler.HistoricalProofPeriodStart(r.Context(), start, offset)
	if err != nil {
		return err
	}
	return writeJSON(w, historicalStartResponse{Start: historical})
}

func (a *api) handleCreateChallenge(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	var req callerRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	c, err := a.sampler.CreateChallenge(r.Context(), node, caller)
	if err != nil {
		return err
	}
	return writeJSON(w, newChallengeView(c))
}

func (a *api) handleGetChallenge(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	c, err := a.sampler.NodeChallenge(r.Context(), node)
	if err != nil {
		return err
	}
	switch encoding := r.URL.Query().Get("encoding"); encoding {
	case "", "json":
		return writeJSON(w, newChallengeView(c))
	case "scale":
		data, err := shared.EncodeChallenge(c)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, err = w.Write(data)
		return err
	default:
		return badRequest(fmt.Errorf("unsupported encoding %q", encoding))
	}
}

func (a *api) handleSubmitProof(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	var req proofRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return err
	}
	added, err := a.sampler.SubmitProof(r.Context(), node, caller, req.Chunk, req.Proof)
	if err != nil {
		return err
	}
	return writeJSON(w, added.Event())
}

func (a *api) handleGetNodeScore(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	var resp nodeScoreResponse
	err = a.store.View(r.Context(), func(reader ledger.Reader) error {
		var err error
		if resp.Breakdown, err = a.scorer.Breakdown(r.Context(), reader, node); err != nil {
			return err
		}
		resp.NodeStake, err = reader.NodeStake(node)
		return err
	})
	if err != nil {
		return err
	}
	return writeJSON(w, resp)
}

func (a *api) handleGetNodeEpoch(w http.ResponseWriter, r *http.Request) error {
	node, err := nodeVar(r, "node")
	if err != nil {
		return err
	}
	epoch, err := uintVar(r, "epoch")
	if err != nil {
		return err
	}
	resp := nodeEpochResponse{Node: node, Epoch: epoch}
	err = a.store.View(r.Context(), func(reader ledger.Reader) error {
		var err error
		if resp.Score, err = reader.NodeEpochScore(epoch, node); err != nil {
			return err
		}
		if resp.AllNodesEpochScore, err = reader.AllNodesEpochScore(epoch); err != nil {
			return err
		}
		if resp.ScorePerStake, err = reader.NodeEpochScorePerStake(epoch, node); err != nil {
			return err
		}
		if resp.ValidProofs, err = reader.EpochNodeValidProofsCount(epoch, node); err != nil {
			return err
		}
		resp.Rewards, _, err = reader.NodeEpochRewards(node, epoch)
		return err
	})
	if err != nil {
		return err
	}
	return writeJSON(w, resp)
}
