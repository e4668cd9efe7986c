package devnet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

// Publication is a request to publish a knowledge collection.
type Publication struct {
	Publisher   shared.NodeID
	Payer       common.Address
	Data        []byte
	Epochs      uint64
	TokenAmount *uint256.Int
}

// Publish stores a collection active for the current epoch and the
// following Epochs-1. The token amount is debited from the payer and
// counted as value produced by the publisher, spread evenly over the
// active epochs with the remainder in the first. Publishing finalizes
// every epoch before the current one.
func (n *Network) Publish(ctx context.Context, p Publication) (shared.Collection, error) {
	if len(p.Data) == 0 {
		return shared.Collection{}, fmt.Errorf("%w: collection data", types.ErrZeroAmount)
	}
	if p.Epochs == 0 {
		return shared.Collection{}, fmt.Errorf("%w: collection epochs", types.ErrZeroAmount)
	}
	if _, ok := n.node(p.Publisher); !ok {
		return shared.Collection{}, fmt.Errorf("%w: node %s", types.ErrProfileNotFound, p.Publisher)
	}
	tree, err := shared.NewChunkTree(shared.SplitChunks(p.Data, n.chunkSize))
	if err != nil {
		return shared.Collection{}, fmt.Errorf("building chunk tree: %w", err)
	}
	amount := shared.Copy(p.TokenAmount)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.debitLocked(p.Payer, amount); err != nil {
		return shared.Collection{}, err
	}

	start := n.epochAt(n.height)
	c := shared.Collection{
		ID:          uint64(len(n.collections)) + 1,
		MerkleRoot:  tree.Root(),
		ByteSize:    uint64(len(p.Data)),
		EndEpoch:    start + p.Epochs - 1,
		TokenAmount: amount,
	}
	n.collections = append(n.collections, published{Collection: c, tree: tree})

	epochs := uint256.NewInt(p.Epochs)
	share := new(uint256.Int).Div(amount, epochs)
	first := new(uint256.Int).Add(share, new(uint256.Int).Mod(amount, epochs))
	for e := start; e <= c.EndEpoch; e++ {
		v := share
		if e == start {
			v = first
		}
		n.addProducedLocked(e, p.Publisher, v)
	}
	if start > 1 {
		n.finalizeLocked(start - 1)
	}
	collectionsTotal.Inc()
	n.logger.Info("collection published",
		zap.Uint64("id", c.ID),
		zap.Stringer("publisher", p.Publisher),
		zap.Uint64("bytes", c.ByteSize),
		zap.Uint64("end_epoch", c.EndEpoch),
		zap.Stringer("root", c.MerkleRoot),
	)
	return c, nil
}

func (n *Network) addProducedLocked(epoch uint64, publisher shared.NodeID, v *uint256.Int) {
	byNode, ok := n.produced[epoch]
	if !ok {
		byNode = make(map[shared.NodeID]*uint256.Int)
		n.produced[epoch] = byNode
	}
	nodeTotal := shared.Copy(byNode[publisher])
	byNode[publisher] = nodeTotal.Add(nodeTotal, v)
	total := shared.Copy(n.total[epoch])
	n.total[epoch] = total.Add(total, v)
}

func (n *Network) LatestID(context.Context) (uint64, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return uint64(len(n.collections)), nil
}

func (n *Network) published(id uint64) (published, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if id == 0 || id > uint64(len(n.collections)) {
		return published{}, fmt.Errorf("%w: %d", types.ErrCollectionNotFound, id)
	}
	return n.collections[id-1], nil
}

func (n *Network) Collection(_ context.Context, id uint64) (shared.Collection, error) {
	p, err := n.published(id)
	if err != nil {
		return shared.Collection{}, err
	}
	c := p.Collection
	c.TokenAmount = shared.Copy(c.TokenAmount)
	return c, nil
}

// ChunkProof returns a chunk of a collection with its merkle proof, the
// way a node holding the data would build a proof submission.
func (n *Network) ChunkProof(id, chunk uint64) ([]byte, []common.Hash, error) {
	p, err := n.published(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := p.tree.Chunk(chunk)
	if err != nil {
		return nil, nil, err
	}
	proof, err := p.tree.Proof(chunk)
	if err != nil {
		return nil, nil, err
	}
	return data, proof, nil
}

func (n *Network) NodeProducedValue(_ context.Context, epoch uint64, id shared.NodeID) (*uint256.Int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return shared.Copy(n.produced[epoch][id]), nil
}

func (n *Network) TotalProducedValue(_ context.Context, epoch uint64) (*uint256.Int, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return shared.Copy(n.total[epoch]), nil
}

// EpochPool pays out the value produced in epoch.
func (n *Network) EpochPool(ctx context.Context, epoch uint64) (*uint256.Int, error) {
	return n.TotalProducedValue(ctx, epoch)
}
