package sampling

import (
	"go.uber.org/zap/zapcore"

	"github.com/kcnet/incentives/shared"
)

func DefaultConfig() Config {
	return Config{
		MaxSearchTries:      50,
		ScanLimit:           1000,
		ChunkByteSize:       shared.DefaultChunkByteSize,
		ProofPeriodInBlocks: 100,
	}
}

//nolint:lll
type Config struct {
	MaxSearchTries      int    `long:"max-search-tries"    description:"Random probes for an active knowledge collection before scanning"`
	ScanLimit           int    `long:"scan-limit"          description:"Collections scanned sequentially after random probing fails"`
	ChunkByteSize       uint64 `long:"chunk-byte-size"     description:"Size of a knowledge collection chunk in bytes"`
	ProofPeriodInBlocks uint64 `long:"proof-period-blocks" description:"Initial proof period duration in blocks"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("max-search-tries", c.MaxSearchTries)
	enc.AddInt("scan-limit", c.ScanLimit)
	enc.AddUint64("chunk-byte-size", c.ChunkByteSize)
	enc.AddUint64("proof-period-blocks", c.ProofPeriodInBlocks)
	return nil
}
