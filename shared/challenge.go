package shared

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"
)

// Challenge is the open proof-of-storage challenge of a node. There is at
// most one per node; a new one overwrites the previous.
type Challenge struct {
	KnowledgeCollectionID  uint64
	ChunkID                uint64
	CollectionRef          common.Address
	Epoch                  uint64
	PeriodStartBlock       uint64
	PeriodDurationInBlocks uint64
	Solved                 bool
}

// ActiveAt reports whether the challenge's proof period still covers block.
func (c *Challenge) ActiveAt(block uint64) bool {
	return block >= c.PeriodStartBlock && block < c.PeriodStartBlock+c.PeriodDurationInBlocks
}

func (c *Challenge) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("collection", c.KnowledgeCollectionID)
	enc.AddUint64("chunk", c.ChunkID)
	enc.AddString("collection_ref", c.CollectionRef.Hex())
	enc.AddUint64("epoch", c.Epoch)
	enc.AddUint64("period_start", c.PeriodStartBlock)
	enc.AddUint64("period_duration", c.PeriodDurationInBlocks)
	enc.AddBool("solved", c.Solved)
	return nil
}

func (c *Challenge) EncodeScale(enc *scale.Encoder) (total int, err error) {
	for _, v := range []uint64{c.KnowledgeCollectionID, c.ChunkID} {
		n, err := scale.EncodeCompact64(enc, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, c.CollectionRef[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, v := range []uint64{c.Epoch, c.PeriodStartBlock, c.PeriodDurationInBlocks} {
		n, err := scale.EncodeCompact64(enc, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeBool(enc, c.Solved)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *Challenge) DecodeScale(dec *scale.Decoder) (total int, err error) {
	for _, field := range []*uint64{&c.KnowledgeCollectionID, &c.ChunkID} {
		v, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		*field = v
	}
	{
		n, err := scale.DecodeByteArray(dec, c.CollectionRef[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, field := range []*uint64{&c.Epoch, &c.PeriodStartBlock, &c.PeriodDurationInBlocks} {
		v, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		*field = v
	}
	{
		v, n, err := scale.DecodeBool(dec)
		if err != nil {
			return total, err
		}
		total += n
		c.Solved = v
	}
	return total, nil
}

// EncodeChallenge serializes c with the scale codec.
func EncodeChallenge(c *Challenge) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.EncodeScale(scale.NewEncoder(&buf)); err != nil {
		return nil, fmt.Errorf("encoding challenge: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeChallenge is the inverse of EncodeChallenge.
func DecodeChallenge(data []byte) (*Challenge, error) {
	c := &Challenge{}
	if _, err := c.DecodeScale(scale.NewDecoder(bytes.NewReader(data))); err != nil {
		return nil, fmt.Errorf("decoding challenge: %w", err)
	}
	return c, nil
}
