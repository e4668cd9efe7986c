package server_test

// End to end tests running an incentives server on a devnet and interacting
// with it over its REST API.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/server"
	"github.com/kcnet/incentives/shared"
)

const randomHost = "localhost:0"

var (
	alice = "0x00000000000000000000000000000000000a11ce"
	op1   = "0x00000000000000000000000000000000000000a1"
	admin = "0x000000000000000000000000000000000000ad31"
)

type client struct {
	t    *testing.T
	base string
}

// do sends body as JSON and returns the status code and raw response.
func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

// call expects status and decodes the response into out.
func (c *client) call(method, path string, body any, status int, out any) {
	c.t.Helper()
	code, data := c.do(method, path, body)
	require.Equal(c.t, status, code, "%s %s: %s", method, path, data)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(data, out))
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func spawnServer(t *testing.T) (*server.Server, *client) {
	t.Helper()
	req := require.New(t)

	metricsPort := uint16(0)
	cfg := server.DefaultConfig()
	cfg.HomeDir = t.TempDir()
	cfg.RawRESTListener = randomHost
	cfg.MetricsPort = &metricsPort
	cfg.NetworkParams = "testdata/network.yaml"
	cfg.DisableProducer = true
	cfg.Sampling.ProofPeriodInBlocks = 20
	cfg.Staking.WithdrawalDelay = 0
	cfg.Staking.OperatorFeeDelay = 0

	cfg, err := server.SetupConfig(cfg)
	req.NoError(err)

	ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), zaptest.NewLogger(t)))
	srv, err := server.New(ctx, *cfg)
	req.NoError(err)

	var eg errgroup.Group
	eg.Go(func() error {
		return srv.Start(ctx)
	})
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, eg.Wait())
		assert.NoError(t, srv.Close())
	})

	return srv, &client{t: t, base: "http://" + srv.RestAddr().String()}
}

func publish(t *testing.T, c *client) {
	t.Helper()
	var collection struct {
		ID       uint64 `json:"id"`
		EndEpoch uint64 `json:"endEpoch"`
	}
	c.call(http.MethodPost, "/v1/devnet/collections", map[string]any{
		"publisher":   1,
		"payer":       alice,
		"data":        hexutil.Encode(bytes.Repeat([]byte{0x5a}, 1000)),
		"epochs":      5,
		"tokenAmount": "10000",
	}, http.StatusCreated, &collection)
	require.Equal(t, uint64(1), collection.ID)
	require.Equal(t, uint64(5), collection.EndEpoch)
}

type challengeBody struct {
	KnowledgeCollectionID  uint64         `json:"knowledgeCollectionId"`
	ChunkID                uint64         `json:"chunkId"`
	CollectionRef          common.Address `json:"collectionRef"`
	Epoch                  uint64         `json:"epoch"`
	PeriodStartBlock       uint64         `json:"periodStartBlock"`
	PeriodDurationInBlocks uint64         `json:"periodDurationInBlocks"`
	Solved                 bool           `json:"solved"`
}

// prove opens a challenge for node 1 and answers it with the devnet's copy
// of the challenged chunk.
func prove(t *testing.T, c *client) events.Event {
	t.Helper()
	var challenge challengeBody
	c.call(http.MethodPost, "/v1/nodes/1/challenge", map[string]string{"caller": op1}, http.StatusOK, &challenge)
	require.Equal(t, uint64(1), challenge.KnowledgeCollectionID)

	var chunk struct {
		Chunk hexutil.Bytes `json:"chunk"`
		Proof []common.Hash `json:"proof"`
	}
	c.call(http.MethodGet, fmt.Sprintf("/v1/devnet/collections/1/chunks/%d", challenge.ChunkID), nil, http.StatusOK, &chunk)

	var added events.Event
	c.call(http.MethodPost, "/v1/nodes/1/proof", map[string]any{
		"caller": op1,
		"chunk":  chunk.Chunk,
		"proof":  chunk.Proof,
	}, http.StatusOK, &added)
	return added
}

func TestServerStart(t *testing.T) {
	t.Parallel()
	srv, c := spawnServer(t)

	var status struct {
		StartBlock       uint64 `json:"activeProofPeriodStartBlock"`
		DurationInBlocks uint64 `json:"durationInBlocks"`
		IsValid          bool   `json:"isValid"`
	}
	c.call(http.MethodGet, "/v1/proof-period", nil, http.StatusOK, &status)
	require.Equal(t, uint64(0), status.StartBlock)
	require.Equal(t, uint64(20), status.DurationInBlocks)
	require.True(t, status.IsValid)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.MetricsAddr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "incentives_devnet_block_height")
}

func TestStakeProveAndClaim(t *testing.T) {
	t.Parallel()
	_, c := spawnServer(t)
	publish(t, c)

	var delegator struct {
		StakeBase        *uint256.Int `json:"stakeBase"`
		LastClaimedEpoch uint64       `json:"lastClaimedEpoch"`
	}
	c.call(http.MethodPost, "/v1/nodes/1/stake", map[string]string{
		"delegator": alice,
		"amount":    "5000",
	}, http.StatusOK, &delegator)
	require.Equal(t, uint256.NewInt(5000), delegator.StakeBase)

	added := prove(t, c)
	require.Equal(t, events.TypeScoreAdded, added.Type)
	require.Equal(t, "1", added.Attributes["epoch"])
	require.NotEqual(t, "0", added.Attributes["scoreAdded"])

	var nodeEpoch struct {
		Score       *uint256.Int `json:"score"`
		ValidProofs uint64       `json:"validProofs"`
	}
	c.call(http.MethodGet, "/v1/nodes/1/epochs/1", nil, http.StatusOK, &nodeEpoch)
	require.Equal(t, uint64(1), nodeEpoch.ValidProofs)
	require.Equal(t, added.Attributes["nodeEpochScore"], nodeEpoch.Score.Dec())

	// a second challenge in the same period is refused
	var rejected errorBody
	c.call(http.MethodPost, "/v1/nodes/1/challenge", map[string]string{"caller": op1}, http.StatusConflict, &rejected)
	require.Equal(t, "sequencing", rejected.Kind)

	// epoch 1 is not claimable until it is over
	c.call(http.MethodPost, "/v1/nodes/1/claims", map[string]any{
		"delegator": alice,
		"epochs":    []uint64{1},
	}, http.StatusConflict, &rejected)
	require.Contains(t, rejected.Error, "Epoch not finalised")

	var chain struct {
		Height             uint64 `json:"height"`
		Epoch              uint64 `json:"epoch"`
		LastFinalizedEpoch uint64 `json:"lastFinalizedEpoch"`
	}
	c.call(http.MethodPost, "/v1/devnet/blocks", map[string]uint64{"count": 100}, http.StatusOK, &chain)
	require.Equal(t, uint64(100), chain.Height)
	require.Equal(t, uint64(2), chain.Epoch)
	require.Equal(t, uint64(1), chain.LastFinalizedEpoch)

	// the only staker on the only scoring node takes the whole epoch pool
	var claimed []events.Event
	c.call(http.MethodPost, "/v1/nodes/1/claims", map[string]any{
		"delegator": alice,
		"epochs":    []uint64{1},
	}, http.StatusOK, &claimed)
	require.Len(t, claimed, 1)
	require.Equal(t, "2000", claimed[0].Attributes["reward"])
	require.Equal(t, "true", claimed[0].Attributes["restaked"])

	c.call(http.MethodGet, "/v1/nodes/1/delegators/"+alice, nil, http.StatusOK, &delegator)
	require.Equal(t, uint256.NewInt(7000), delegator.StakeBase)
	require.Equal(t, uint64(1), delegator.LastClaimedEpoch)

	c.call(http.MethodPost, "/v1/nodes/1/claims", map[string]any{
		"delegator": alice,
		"epochs":    []uint64{1},
	}, http.StatusConflict, &rejected)
	require.Contains(t, rejected.Error, "Epoch already claimed")

	var rewards struct {
		Gross *uint256.Int `json:"gross"`
		Net   *uint256.Int `json:"net"`
	}
	c.call(http.MethodPost, "/v1/nodes/1/operator-fee/settle", map[string]uint64{"epoch": 1}, http.StatusOK, &rewards)
	require.Equal(t, uint256.NewInt(2000), rewards.Gross)
	require.Equal(t, uint256.NewInt(2000), rewards.Net)
}

func TestJournalExport(t *testing.T) {
	t.Parallel()
	_, c := spawnServer(t)
	publish(t, c)
	c.call(http.MethodPost, "/v1/nodes/1/stake", map[string]string{
		"delegator": alice,
		"amount":    "5000",
	}, http.StatusOK, nil)
	prove(t, c)

	var deltas []struct {
		Seq   uint64       `json:"seq"`
		Epoch uint64       `json:"epoch"`
		Kind  string       `json:"kind"`
		Total *uint256.Int `json:"total"`
	}
	c.call(http.MethodGet, "/v1/epochs/1/deltas", nil, http.StatusOK, &deltas)
	require.NotEmpty(t, deltas)
	kinds := make(map[string]bool)
	for i, d := range deltas {
		require.Equal(t, uint64(1), d.Epoch)
		if i > 0 {
			require.Greater(t, d.Seq, deltas[i-1].Seq)
		}
		kinds[d.Kind] = true
	}
	require.True(t, kinds["node_stake"])
	require.True(t, kinds["node_epoch_score"])

	var root struct {
		Epoch uint64      `json:"epoch"`
		Root  common.Hash `json:"root"`
	}
	c.call(http.MethodGet, "/v1/epochs/1/root", nil, http.StatusOK, &root)
	require.NotEqual(t, common.Hash{}, root.Root)

	var again struct {
		Root common.Hash `json:"root"`
	}
	c.call(http.MethodGet, "/v1/epochs/1/root", nil, http.StatusOK, &again)
	require.Equal(t, root.Root, again.Root)

	var records []events.Record
	c.call(http.MethodGet, "/v1/events?limit=2", nil, http.StatusOK, &records)
	require.Len(t, records, 2)
	var rest []events.Record
	c.call(http.MethodGet, fmt.Sprintf("/v1/events?from=%d", records[1].Seq+1), nil, http.StatusOK, &rest)
	require.NotEmpty(t, rest)
	require.Greater(t, rest[0].Seq, records[1].Seq)

	types := make(map[string]bool)
	for _, r := range append(records, rest...) {
		types[r.Type] = true
	}
	require.True(t, types[events.TypeStakeIncreased])
	require.True(t, types[events.TypeChallengeSet])
	require.True(t, types[events.TypeScoreAdded])
}

func TestChallengeScaleEncoding(t *testing.T) {
	t.Parallel()
	_, c := spawnServer(t)
	publish(t, c)
	c.call(http.MethodPost, "/v1/nodes/1/stake", map[string]string{
		"delegator": alice,
		"amount":    "5000",
	}, http.StatusOK, nil)

	var created challengeBody
	c.call(http.MethodPost, "/v1/nodes/1/challenge", map[string]string{"caller": op1}, http.StatusOK, &created)

	code, data := c.do(http.MethodGet, "/v1/nodes/1/challenge?encoding=scale", nil)
	require.Equal(t, http.StatusOK, code)
	decoded, err := shared.DecodeChallenge(data)
	require.NoError(t, err)
	require.Equal(t, created.KnowledgeCollectionID, decoded.KnowledgeCollectionID)
	require.Equal(t, created.ChunkID, decoded.ChunkID)
	require.Equal(t, created.CollectionRef, decoded.CollectionRef)
	require.Equal(t, created.PeriodStartBlock, decoded.PeriodStartBlock)
	require.False(t, decoded.Solved)

	code, _ = c.do(http.MethodGet, "/v1/nodes/1/challenge?encoding=xml", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestErrorStatuses(t *testing.T) {
	t.Parallel()
	_, c := spawnServer(t)

	var rejected errorBody
	// node 2 has no operational keys besides its admin key
	c.call(http.MethodPost, "/v1/nodes/2/challenge", map[string]string{"caller": op1}, http.StatusForbidden, &rejected)
	require.Equal(t, "authorization", rejected.Kind)

	c.call(http.MethodGet, "/v1/nodes/2/challenge", nil, http.StatusNotFound, &rejected)
	require.Equal(t, "not_found", rejected.Kind)

	c.call(http.MethodGet, "/v1/nodes/abc/score", nil, http.StatusBadRequest, nil)
	c.call(http.MethodPost, "/v1/nodes/1/stake", map[string]string{
		"delegator": "not-an-address",
		"amount":    "1",
	}, http.StatusBadRequest, nil)
	c.call(http.MethodPost, "/v1/nodes/1/stake", map[string]string{"unexpected": "field"}, http.StatusBadRequest, nil)

	c.call(http.MethodPut, "/v1/nodes/1/operator-fee", map[string]any{
		"caller": admin,
		"feeBps": 10001,
	}, http.StatusBadRequest, &rejected)
	require.Equal(t, "configuration", rejected.Kind)

	c.call(http.MethodPut, "/v1/proof-period/duration", map[string]any{
		"caller":           alice,
		"durationInBlocks": 10,
	}, http.StatusForbidden, nil)

	c.call(http.MethodGet, "/v1/devnet/collections/9/chunks/0", nil, http.StatusNotFound, nil)
}

func TestOperatorFeeLifecycle(t *testing.T) {
	t.Parallel()
	_, c := spawnServer(t)

	var fee struct {
		ActiveFeeBps uint16 `json:"activeFeeBps"`
		Fees         []struct {
			FeeBps  uint16 `json:"feeBps"`
			Pending bool   `json:"pending"`
		} `json:"fees"`
		Balance *uint256.Int `json:"balance"`
	}
	c.call(http.MethodPut, "/v1/nodes/1/operator-fee", map[string]any{
		"caller": admin,
		"feeBps": 1000,
	}, http.StatusOK, &fee)
	// a zero delay makes the new fee effective at once
	require.Equal(t, uint16(1000), fee.ActiveFeeBps)
	require.Len(t, fee.Fees, 1)
	require.False(t, fee.Fees[0].Pending)
	require.True(t, fee.Balance.IsZero())

	var rejected errorBody
	c.call(http.MethodPut, "/v1/nodes/1/operator-fee", map[string]any{
		"caller": alice,
		"feeBps": 500,
	}, http.StatusForbidden, &rejected)
	require.Equal(t, "authorization", rejected.Kind)

	c.call(http.MethodPost, "/v1/nodes/1/operator-fee/withdrawal", map[string]string{
		"caller": admin,
		"amount": "1",
	}, http.StatusForbidden, &rejected)
	require.Contains(t, rejected.Error, "Insufficient balance")
}

func TestDevnetRoutesCanBeDisabled(t *testing.T) {
	t.Parallel()
	metricsPort := uint16(0)
	cfg := server.DefaultConfig()
	cfg.HomeDir = t.TempDir()
	cfg.RawRESTListener = randomHost
	cfg.MetricsPort = &metricsPort
	cfg.NetworkParams = "testdata/network.yaml"
	cfg.DisableProducer = true
	cfg.DisableDevnetAPI = true
	cfg, err := server.SetupConfig(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := server.New(ctx, *cfg)
	require.NoError(t, err)
	var eg errgroup.Group
	eg.Go(func() error { return srv.Start(ctx) })
	defer func() {
		cancel()
		require.NoError(t, eg.Wait())
		require.NoError(t, srv.Close())
	}()

	c := &client{t: t, base: "http://" + srv.RestAddr().String()}
	code, _ := c.do(http.MethodPost, "/v1/devnet/blocks", map[string]uint64{"count": 1})
	require.Equal(t, http.StatusNotFound, code)
	code, _ = c.do(http.MethodGet, "/v1/proof-period", nil)
	require.Equal(t, http.StatusOK, code)
}
