package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/proofperiod"
	"github.com/kcnet/incentives/score"
	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/staking"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnavailable    = errors.New("unavailable")
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrRejected       = errors.New("rejected")
)

// APIError is a non-2xx answer of the incentives API.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Kind)
}

func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusServiceUnavailable:
		return target == ErrUnavailable
	case http.StatusBadRequest:
		return target == ErrInvalidRequest
	case http.StatusConflict:
		return target == ErrConflict
	case http.StatusForbidden:
		return target == ErrForbidden
	case http.StatusUnprocessableEntity:
		return target == ErrRejected
	}
	return false
}

type config struct {
	logger     *zap.Logger
	retries    int
	waitMin    time.Duration
	waitMax    time.Duration
	httpClient *http.Client
}

type Option func(*config)

func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func WithRetries(retries int) Option {
	return func(c *config) {
		c.retries = retries
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(c *config) {
		c.waitMin = waitMin
		c.waitMax = waitMax
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// HTTPClient talks to the REST API of an incentives server.
type HTTPClient struct {
	baseURL *url.URL
	client  *retryablehttp.Client
}

// New returns a client connecting to the server at baseURL.
func New(baseURL string, opts ...Option) (*HTTPClient, error) {
	cfg := config{
		logger:  zap.NewNop(),
		retries: 4,
		waitMin: time.Second,
		waitMax: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing address: %w", err)
	}
	if parsed.Scheme == "" {
		parsed, err = url.Parse("http://" + baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing address: %w", err)
		}
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.retries
	client.RetryWaitMin = cfg.waitMin
	client.RetryWaitMax = cfg.waitMax
	client.Logger = &leveledLogger{cfg.logger.Sugar()}
	client.CheckRetry = checkRetry
	if cfg.httpClient != nil {
		client.HTTPClient = cfg.httpClient
	}
	return &HTTPClient{baseURL: parsed, client: client}, nil
}

// checkRetry retries connection failures and gateway errors only. A 500
// from the server is a failed ledger transaction and is not repeated.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil && resp.StatusCode == http.StatusInternalServerError {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Challenge is a node's open challenge as served by the API.
type Challenge struct {
	KnowledgeCollectionID  uint64         `json:"knowledgeCollectionId"`
	ChunkID                uint64         `json:"chunkId"`
	CollectionRef          common.Address `json:"collectionRef"`
	Epoch                  uint64         `json:"epoch"`
	PeriodStartBlock       uint64         `json:"periodStartBlock"`
	PeriodDurationInBlocks uint64         `json:"periodDurationInBlocks"`
	Solved                 bool           `json:"solved"`
}

func (c *Challenge) toShared() *shared.Challenge {
	return &shared.Challenge{
		KnowledgeCollectionID:  c.KnowledgeCollectionID,
		ChunkID:                c.ChunkID,
		CollectionRef:          c.CollectionRef,
		Epoch:                  c.Epoch,
		PeriodStartBlock:       c.PeriodStartBlock,
		PeriodDurationInBlocks: c.PeriodDurationInBlocks,
		Solved:                 c.Solved,
	}
}

type NodeScore struct {
	score.Breakdown
	NodeStake *uint256.Int `json:"nodeStake"`
}

type NodeEpoch struct {
	Node               shared.NodeID            `json:"node"`
	Epoch              uint64                   `json:"epoch"`
	Score              *uint256.Int             `json:"score"`
	AllNodesEpochScore *uint256.Int             `json:"allNodesEpochScore"`
	ScorePerStake      *uint256.Int             `json:"scorePerStake"`
	ValidProofs        uint64                   `json:"validProofs"`
	Rewards            *ledger.NodeEpochRewards `json:"rewards,omitempty"`
}

type OperatorFee struct {
	staking.OperatorFeeState
	ActiveFeeBps uint16 `json:"activeFeeBps"`
}

type Delta struct {
	Seq       uint64              `json:"seq"`
	Epoch     uint64              `json:"epoch"`
	Kind      string              `json:"kind"`
	Node      shared.NodeID       `json:"node"`
	Delegator shared.DelegatorKey `json:"delegator"`
	Change    *uint256.Int        `json:"change"`
	Negative  bool                `json:"negative"`
	Total     *uint256.Int        `json:"total"`
}

type Chain struct {
	Height             uint64 `json:"height"`
	Epoch              uint64 `json:"epoch"`
	LastFinalizedEpoch uint64 `json:"lastFinalizedEpoch"`
	Timestamp          uint64 `json:"timestamp"`
}

type Publication struct {
	Publisher   shared.NodeID
	Payer       common.Address
	Data        []byte
	Epochs      uint64
	TokenAmount *uint256.Int
}

type Collection struct {
	ID          uint64       `json:"id"`
	MerkleRoot  common.Hash  `json:"merkleRoot"`
	ByteSize    uint64       `json:"byteSize"`
	EndEpoch    uint64       `json:"endEpoch"`
	TokenAmount *uint256.Int `json:"tokenAmount"`
}

type ChunkProof struct {
	Chunk hexutil.Bytes `json:"chunk"`
	Proof []common.Hash `json:"proof"`
}

// ProofPeriod returns the active proof period.
func (c *HTTPClient) ProofPeriod(ctx context.Context) (*proofperiod.Status, error) {
	var status proofperiod.Status
	if err := c.req(ctx, http.MethodGet, "/v1/proof-period", nil, &status); err != nil {
		return nil, fmt.Errorf("getting proof period: %w", err)
	}
	return &status, nil
}

// SetProofPeriodDuration schedules a new proof period duration for the next epoch.
func (c *HTTPClient) SetProofPeriodDuration(ctx context.Context, caller common.Address, blocks uint64) error {
	body := map[string]any{"caller": caller.Hex(), "durationInBlocks": blocks}
	if err := c.req(ctx, http.MethodPut, "/v1/proof-period/duration", body, nil); err != nil {
		return fmt.Errorf("setting proof period duration: %w", err)
	}
	return nil
}

func (c *HTTPClient) HistoricalProofPeriodStart(ctx context.Context, start, offset uint64) (uint64, error) {
	path := fmt.Sprintf("/v1/proof-period/history?start=%d&offset=%d", start, offset)
	var res struct {
		Start uint64 `json:"start"`
	}
	if err := c.req(ctx, http.MethodGet, path, nil, &res); err != nil {
		return 0, fmt.Errorf("getting historical proof period: %w", err)
	}
	return res.Start, nil
}

// CreateChallenge opens a challenge for node, or returns the one already
// open in the current proof period.
func (c *HTTPClient) CreateChallenge(ctx context.Context, node shared.NodeID, caller common.Address) (*shared.Challenge, error) {
	var res Challenge
	path := fmt.Sprintf("/v1/nodes/%s/challenge", node)
	if err := c.req(ctx, http.MethodPost, path, map[string]string{"caller": caller.Hex()}, &res); err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	return res.toShared(), nil
}

// Challenge fetches the node's last challenge in its compact binary form.
func (c *HTTPClient) Challenge(ctx context.Context, node shared.NodeID) (*shared.Challenge, error) {
	data, err := c.raw(ctx, fmt.Sprintf("/v1/nodes/%s/challenge?encoding=scale", node))
	if err != nil {
		return nil, fmt.Errorf("getting challenge: %w", err)
	}
	return shared.DecodeChallenge(data)
}

// SubmitProof answers the node's open challenge.
func (c *HTTPClient) SubmitProof(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
	chunk []byte,
	proof []common.Hash,
) (*events.Event, error) {
	body := map[string]any{"caller": caller.Hex(), "chunk": hexutil.Bytes(chunk), "proof": proof}
	var res events.Event
	if err := c.req(ctx, http.MethodPost, fmt.Sprintf("/v1/nodes/%s/proof", node), body, &res); err != nil {
		return nil, fmt.Errorf("submitting proof: %w", err)
	}
	return &res, nil
}

func (c *HTTPClient) NodeScore(ctx context.Context, node shared.NodeID) (*NodeScore, error) {
	var res NodeScore
	if err := c.req(ctx, http.MethodGet, fmt.Sprintf("/v1/nodes/%s/score", node), nil, &res); err != nil {
		return nil, fmt.Errorf("getting node score: %w", err)
	}
	return &res, nil
}

func (c *HTTPClient) NodeEpoch(ctx context.Context, node shared.NodeID, epoch uint64) (*NodeEpoch, error) {
	var res NodeEpoch
	if err := c.req(ctx, http.MethodGet, fmt.Sprintf("/v1/nodes/%s/epochs/%d", node, epoch), nil, &res); err != nil {
		return nil, fmt.Errorf("getting node epoch: %w", err)
	}
	return &res, nil
}

func (c *HTTPClient) Stake(
	ctx context.Context,
	node shared.NodeID,
	delegator common.Address,
	amount *uint256.Int,
) (*staking.DelegatorState, error) {
	return c.delegatorCall(ctx, http.MethodPost, fmt.Sprintf("/v1/nodes/%s/stake", node), map[string]string{
		"delegator": delegator.Hex(),
		"amount":    amount.Dec(),
	})
}

// Redelegate moves stake from one node to another and returns the position
// on the destination node.
func (c *HTTPClient) Redelegate(
	ctx context.Context,
	from, to shared.NodeID,
	delegator common.Address,
	amount *uint256.Int,
) (*staking.DelegatorState, error) {
	return c.delegatorCall(ctx, http.MethodPost, fmt.Sprintf("/v1/nodes/%s/redelegate", from), map[string]any{
		"delegator": delegator.Hex(),
		"to":        to,
		"amount":    amount.Dec(),
	})
}

// ClaimRewards claims the given epochs in order and returns one event per
// claimed epoch.
func (c *HTTPClient) ClaimRewards(
	ctx context.Context,
	node shared.NodeID,
	delegator common.Address,
	epochs ...uint64,
) ([]events.Event, error) {
	body := map[string]any{"delegator": delegator.Hex(), "epochs": epochs}
	var res []events.Event
	if err := c.req(ctx, http.MethodPost, fmt.Sprintf("/v1/nodes/%s/claims", node), body, &res); err != nil {
		return nil, fmt.Errorf("claiming rewards: %w", err)
	}
	return res, nil
}

func (c *HTTPClient) RequestWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	delegator common.Address,
	amount *uint256.Int,
) (*ledger.WithdrawalRequest, error) {
	body := map[string]string{"delegator": delegator.Hex(), "amount": amount.Dec()}
	var res ledger.WithdrawalRequest
	if err := c.req(ctx, http.MethodPost, fmt.Sprintf("/v1/nodes/%s/withdrawal", node), body, &res); err != nil {
		return nil, fmt.Errorf("requesting withdrawal: %w", err)
	}
	return &res, nil
}

func (c *HTTPClient) CancelWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	delegator common.Address,
) (*staking.DelegatorState, error) {
	return c.delegatorCall(ctx, http.MethodDelete, fmt.Sprintf("/v1/nodes/%s/withdrawal", node), map[string]string{
		"delegator": delegator.Hex(),
	})
}

func (c *HTTPClient) FinalizeWithdrawal(ctx context.Context, node shared.NodeID, delegator common.Address) (*uint256.Int, error) {
	path := fmt.Sprintf("/v1/nodes/%s/withdrawal/finalize", node)
	amount, err := c.amountCall(ctx, path, map[string]string{"delegator": delegator.Hex()})
	if err != nil {
		return nil, fmt.Errorf("finalizing withdrawal: %w", err)
	}
	return amount, nil
}

func (c *HTTPClient) Delegator(
	ctx context.Context,
	node shared.NodeID,
	delegator common.Address,
) (*staking.DelegatorState, error) {
	path := fmt.Sprintf("/v1/nodes/%s/delegators/%s", node, delegator.Hex())
	return c.delegatorCall(ctx, http.MethodGet, path, nil)
}

func (c *HTTPClient) delegatorCall(ctx context.Context, method, path string, body any) (*staking.DelegatorState, error) {
	var res staking.DelegatorState
	if err := c.req(ctx, method, path, body, &res); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return &res, nil
}

func (c *HTTPClient) amountCall(ctx context.Context, path string, body any) (*uint256.Int, error) {
	var res struct {
		Amount *uint256.Int `json:"amount"`
	}
	if err := c.req(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	return res.Amount, nil
}

func (c *HTTPClient) OperatorFee(ctx context.Context, node shared.NodeID) (*OperatorFee, error) {
	return c.feeCall(ctx, http.MethodGet, fmt.Sprintf("/v1/nodes/%s/operator-fee", node), nil)
}

// UpdateOperatorFee schedules a new fee. The node's admin key must be the caller.
func (c *HTTPClient) UpdateOperatorFee(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
	feeBps uint16,
) (*OperatorFee, error) {
	return c.feeCall(ctx, http.MethodPut, fmt.Sprintf("/v1/nodes/%s/operator-fee", node), map[string]any{
		"caller": caller.Hex(),
		"feeBps": feeBps,
	})
}

// SettleOperatorFee splits the node's reward for a finalized epoch.
func (c *HTTPClient) SettleOperatorFee(ctx context.Context, node shared.NodeID, epoch uint64) (*ledger.NodeEpochRewards, error) {
	var res ledger.NodeEpochRewards
	path := fmt.Sprintf("/v1/nodes/%s/operator-fee/settle", node)
	if err := c.req(ctx, http.MethodPost, path, map[string]uint64{"epoch": epoch}, &res); err != nil {
		return nil, fmt.Errorf("settling operator fee: %w", err)
	}
	return &res, nil
}

func (c *HTTPClient) RequestOperatorFeeWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
	amount *uint256.Int,
) (*ledger.WithdrawalRequest, error) {
	body := map[string]string{"caller": caller.Hex(), "amount": amount.Dec()}
	var res ledger.WithdrawalRequest
	path := fmt.Sprintf("/v1/nodes/%s/operator-fee/withdrawal", node)
	if err := c.req(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, fmt.Errorf("requesting operator fee withdrawal: %w", err)
	}
	return &res, nil
}

func (c *HTTPClient) CancelOperatorFeeWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
) (*OperatorFee, error) {
	path := fmt.Sprintf("/v1/nodes/%s/operator-fee/withdrawal", node)
	return c.feeCall(ctx, http.MethodDelete, path, map[string]string{"caller": caller.Hex()})
}

func (c *HTTPClient) FinalizeOperatorFeeWithdrawal(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
) (*uint256.Int, error) {
	path := fmt.Sprintf("/v1/nodes/%s/operator-fee/withdrawal/finalize", node)
	amount, err := c.amountCall(ctx, path, map[string]string{"caller": caller.Hex()})
	if err != nil {
		return nil, fmt.Errorf("finalizing operator fee withdrawal: %w", err)
	}
	return amount, nil
}

// RestakeOperatorFee moves accrued fees into the node's stake.
func (c *HTTPClient) RestakeOperatorFee(
	ctx context.Context,
	node shared.NodeID,
	caller common.Address,
	amount *uint256.Int,
) (*OperatorFee, error) {
	path := fmt.Sprintf("/v1/nodes/%s/operator-fee/restake", node)
	return c.feeCall(ctx, http.MethodPost, path, map[string]string{"caller": caller.Hex(), "amount": amount.Dec()})
}

func (c *HTTPClient) feeCall(ctx context.Context, method, path string, body any) (*OperatorFee, error) {
	var res OperatorFee
	if err := c.req(ctx, method, path, body, &res); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return &res, nil
}

// Deltas returns the journaled accumulator changes of an epoch.
func (c *HTTPClient) Deltas(ctx context.Context, epoch uint64) ([]Delta, error) {
	var res []Delta
	if err := c.req(ctx, http.MethodGet, fmt.Sprintf("/v1/epochs/%d/deltas", epoch), nil, &res); err != nil {
		return nil, fmt.Errorf("getting deltas: %w", err)
	}
	return res, nil
}

// EpochRoot returns the digest of an epoch's delta journal.
func (c *HTTPClient) EpochRoot(ctx context.Context, epoch uint64) (common.Hash, error) {
	var res struct {
		Root common.Hash `json:"root"`
	}
	if err := c.req(ctx, http.MethodGet, fmt.Sprintf("/v1/epochs/%d/root", epoch), nil, &res); err != nil {
		return common.Hash{}, fmt.Errorf("getting epoch root: %w", err)
	}
	return res.Root, nil
}

// Events pages through the event journal starting at sequence from.
func (c *HTTPClient) Events(ctx context.Context, from uint64, limit int) ([]events.Record, error) {
	query := url.Values{}
	query.Set("from", strconv.FormatUint(from, 10))
	query.Set("limit", strconv.Itoa(limit))
	var res []events.Record
	if err := c.req(ctx, http.MethodGet, "/v1/events?"+query.Encode(), nil, &res); err != nil {
		return nil, fmt.Errorf("getting events: %w", err)
	}
	return res, nil
}

// ProduceBlocks advances the devnet chain.
func (c *HTTPClient) ProduceBlocks(ctx context.Context, count uint64) (*Chain, error) {
	var res Chain
	if err := c.req(ctx, http.MethodPost, "/v1/devnet/blocks", map[string]uint64{"count": count}, &res); err != nil {
		return nil, fmt.Errorf("producing blocks: %w", err)
	}
	return &res, nil
}

func (c *HTTPClient) Publish(ctx context.Context, p Publication) (*Collection, error) {
	body := map[string]any{
		"publisher":   p.Publisher,
		"payer":       p.Payer.Hex(),
		"data":        hexutil.Bytes(p.Data),
		"epochs":      p.Epochs,
		"tokenAmount": p.TokenAmount.Dec(),
	}
	var res Collection
	if err := c.req(ctx, http.MethodPost, "/v1/devnet/collections", body, &res); err != nil {
		return nil, fmt.Errorf("publishing collection: %w", err)
	}
	return &res, nil
}

func (c *HTTPClient) ChunkProof(ctx context.Context, collection, chunk uint64) (*ChunkProof, error) {
	var res ChunkProof
	path := fmt.Sprintf("/v1/devnet/collections/%d/chunks/%d", collection, chunk)
	if err := c.req(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, fmt.Errorf("getting chunk proof: %w", err)
	}
	return &res, nil
}

// endpoint resolves path, which may carry a query, against the base URL.
func (c *HTTPClient) endpoint(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parsing path: %w", err)
	}
	u := c.baseURL.JoinPath(ref.Path)
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *HTTPClient) req(ctx context.Context, method, path string, reqBody, resBody any) error {
	var body io.Reader
	if reqBody != nil {
		jsonReqBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(jsonReqBody)
	}
	endpoint, err := c.endpoint(path)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, err := c.do(req)
	if err != nil {
		return err
	}
	if resBody != nil && len(data) > 0 {
		if err := json.Unmarshal(data, resBody); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) raw(ctx context.Context, path string) ([]byte, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	return c.do(req)
}

func (c *HTTPClient) do(req *retryablehttp.Request) ([]byte, error) {
	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doing request: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return data, nil
	}

	apiErr := &APIError{Status: res.StatusCode, Message: string(data)}
	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Kind = body.Kind
		apiErr.Message = body.Error
	}
	return nil, apiErr
}

// leveledLogger adapts zap to the retryablehttp logging interface.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...any) { l.s.Errorw(msg, keysAndValues...) }
func (l *leveledLogger) Warn(msg string, keysAndValues ...any)  { l.s.Warnw(msg, keysAndValues...) }
func (l *leveledLogger) Info(msg string, keysAndValues ...any)  { l.s.Debugw(msg, keysAndValues...) }
func (l *leveledLogger) Debug(msg string, keysAndValues ...any) { l.s.Debugw(msg, keysAndValues...) }

// Balance returns the devnet custody balance of an account.
func (c *HTTPClient) Balance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	var res struct {
		Balance *uint256.Int `json:"balance"`
	}
	if err := c.req(ctx, http.MethodGet, "/v1/devnet/accounts/"+account.Hex(), nil, &res); err != nil {
		return nil, fmt.Errorf("getting balance: %w", err)
	}
	return res.Balance, nil
}
