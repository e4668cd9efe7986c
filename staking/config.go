package staking

import (
	"time"

	"go.uber.org/zap/zapcore"
)

func DefaultConfig() Config {
	return Config{
		WithdrawalDelay:  28 * 24 * time.Hour,
		OperatorFeeDelay: 28 * 24 * time.Hour,
	}
}

//nolint:lll
type Config struct {
	WithdrawalDelay  time.Duration `long:"withdrawal-delay"   description:"Time between a withdrawal request and its finalization"`
	OperatorFeeDelay time.Duration `long:"operator-fee-delay" description:"Time before a changed operator fee takes effect"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddDuration("withdrawal-delay", c.WithdrawalDelay)
	enc.AddDuration("operator-fee-delay", c.OperatorFeeDelay)
	return nil
}

func seconds(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Second)
}
