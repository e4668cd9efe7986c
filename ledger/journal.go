package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/spacemeshos/merkle-tree"
	"github.com/spacemeshos/sha256-simd"
	"github.com/zeebo/blake3"

	"github.com/kcnet/incentives/events"
)

type storedEvent struct {
	Seq        uint64
	Type       string
	Attributes []events.Attribute
}

func (s *storedEvent) record() events.Record {
	attrs := make(map[string]string, len(s.Attributes))
	for _, a := range s.Attributes {
		attrs[a.Key] = a.Value
	}
	return events.Record{Seq: s.Seq, Event: events.Event{Type: s.Type, Attributes: attrs}}
}

// hashJournalNode calculates an internal node of the epoch audit tree.
func hashJournalNode(buf, lChild, rChild []byte) []byte {
	hasher := blake3.New()
	_, _ = hasher.Write([]byte{0x01})
	_, _ = hasher.Write(lChild)
	_, _ = hasher.Write(rChild)
	return hasher.Sum(buf)
}

// EpochRoot returns the merkle root over the journal rows of an epoch, in
// sequence order. Leaves are sha256 of the rlp encoded rows. An epoch with
// no rows has the zero root.
func EpochRoot(r Reader, epoch uint64) (common.Hash, error) {
	deltas, err := r.Deltas(epoch)
	if err != nil {
		return common.Hash{}, err
	}
	if len(deltas) == 0 {
		return common.Hash{}, nil
	}
	tree, err := merkle.NewTreeBuilder().
		WithHashFunc(hashJournalNode).
		Build()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to initialize merkle tree: %w", err)
	}
	for i := range deltas {
		data, err := rlp.EncodeToBytes(&deltas[i])
		if err != nil {
			return common.Hash{}, fmt.Errorf("encoding delta %d: %w", deltas[i].Seq, err)
		}
		leaf := sha256.Sum256(data)
		if err := tree.AddLeaf(leaf[:]); err != nil {
			return common.Hash{}, err
		}
	}
	return common.BytesToHash(tree.Root()), nil
}

// EpochRoot computes the audit root of an epoch on a snapshot.
func (s *Store) EpochRoot(ctx context.Context, epoch uint64) (root common.Hash, err error) {
	err = s.View(ctx, func(r Reader) error {
		root, err = EpochRoot(r, epoch)
		return err
	})
	return root, err
}
