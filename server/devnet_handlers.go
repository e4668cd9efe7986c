package server

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/kcnet/incentives/devnet"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

const maxBlocksPerRequest = 100_000

func (a *api) mountDevnet(r *mux.Router) {
	r.Path("/blocks").
		Methods(http.MethodPost).
		Name("devnet_produce_blocks").
		HandlerFunc(wrapHandlerFunc(a.handleProduceBlocks))
	r.Path("/collections").
		Methods(http.MethodPost).
		Name("devnet_publish_collection").
		HandlerFunc(wrapHandlerFunc(a.handlePublish))
	r.Path("/collections/{id}/chunks/{chunk}").
		Methods(http.MethodGet).
		Name("devnet_get_chunk").
		HandlerFunc(wrapHandlerFunc(a.handleGetChunk))
	r.Path("/accounts/{address}").
		Methods(http.MethodGet).
		Name("devnet_get_account").
		HandlerFunc(wrapHandlerFunc(a.handleGetAccount))
}

type produceRequest struct {
	Count uint64 `json:"count"`
}

type chainResponse struct {
	Height             uint64 `json:"height"`
	Epoch              uint64 `json:"epoch"`
	LastFinalizedEpoch uint64 `json:"lastFinalizedEpoch"`
	Timestamp          uint64 `json:"timestamp"`
}

type publishRequest struct {
	Publisher   shared.NodeID `json:"publisher"`
	Payer       string        `json:"payer"`
	Data        hexutil.Bytes `json:"data"`
	Epochs      uint64        `json:"epochs"`
	TokenAmount string        `json:"tokenAmount"`
}

type collectionView struct {
	ID          uint64       `json:"id"`
	MerkleRoot  common.Hash  `json:"merkleRoot"`
	ByteSize    uint64       `json:"byteSize"`
	EndEpoch    uint64       `json:"endEpoch"`
	TokenAmount *uint256.Int `json:"tokenAmount"`
}

type chunkResponse struct {
	Chunk hexutil.Bytes `json:"chunk"`
	Proof []common.Hash `json:"proof"`
}

type accountResponse struct {
	Address common.Address `json:"address"`
	Balance *uint256.Int   `json:"balance"`
}

func (a *api) handleProduceBlocks(w http.ResponseWriter, r *http.Request) error {
	var req produceRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	if req.Count == 0 || req.Count > maxBlocksPerRequest {
		return badRequest(errors.New("count: must be between 1 and 100000"))
	}
	a.network.Produce(req.Count)
	return a.writeChain(w, r)
}

func (a *api) writeChain(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	var (
		resp chainResponse
		err  error
	)
	if resp.Height, err = a.network.BlockNumber(ctx); err != nil {
		return err
	}
	if resp.Epoch, err = a.network.CurrentEpoch(ctx); err != nil {
		return err
	}
	if resp.LastFinalizedEpoch, err = a.network.LastFinalizedEpoch(ctx); err != nil {
		return err
	}
	if resp.Timestamp, err = a.network.Now(ctx); err != nil {
		return err
	}
	return writeJSON(w, resp)
}

func (a *api) handlePublish(w http.ResponseWriter, r *http.Request) error {
	var req publishRequest
	if err := parseJSON(r.Body, &req); err != nil {
		return err
	}
	payer, err := parseAddress("payer", req.Payer)
	if err != nil {
		return err
	}
	amount, err := parseAmount("tokenAmount", req.TokenAmount)
	if err != nil {
		return err
	}
	c, err := a.network.Publish(r.Context(), devnet.Publication{
		Publisher:   req.Publisher,
		Payer:       payer,
		Data:        req.Data,
		Epochs:      req.Epochs,
		TokenAmount: amount,
	})
	if err != nil {
		return err
	}
	return writeJSONStatus(w, http.StatusCreated, collectionView{
		ID:          c.ID,
		MerkleRoot:  c.MerkleRoot,
		ByteSize:    c.ByteSize,
		EndEpoch:    c.EndEpoch,
		TokenAmount: c.TokenAmount,
	})
}

func (a *api) handleGetChunk(w http.ResponseWriter, r *http.Request) error {
	id, err := uintVar(r, "id")
	if err != nil {
		return err
	}
	chunk, err := uintVar(r, "chunk")
	if err != nil {
		return err
	}
	data, proof, err := a.network.ChunkProof(id, chunk)
	switch {
	case err != nil && types.KindOf(err) == types.KindUnknown:
		return badRequest(err)
	case err != nil:
		return err
	}
	return writeJSON(w, chunkResponse{Chunk: data, Proof: proof})
}

func (a *api) handleGetAccount(w http.ResponseWriter, r *http.Request) error {
	addr, err := addressVar(r, "address")
	if err != nil {
		return err
	}
	return writeJSON(w, accountResponse{Address: addr, Balance: a.network.Balance(addr)})
}
