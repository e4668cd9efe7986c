// Package proofperiod tracks the block-counted proof windows challenges are
// bound to. Epochs and blocks are always passed in explicitly so the clock
// never consults a wall clock.
package proofperiod

import (
	"fmt"

	"github.com/kcnet/incentives/events"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/types"
)

// Status describes the stored proof period relative to a block.
type Status struct {
	StartBlock       uint64 `json:"activeProofPeriodStartBlock"`
	DurationInBlocks uint64 `json:"durationInBlocks"`
	IsValid          bool   `json:"isValid"`
}

// Init seeds the duration schedule and aligns the first period start to
// the duration grid.
func Init(tx *ledger.Tx, epoch, block, duration uint64) error {
	if duration == 0 {
		return types.ErrZeroDuration
	}
	if err := tx.SetDurations([]ledger.DurationEntry{{DurationInBlocks: duration, EffectiveEpoch: epoch}}); err != nil {
		return err
	}
	if err := tx.Emit(events.ProofingPeriodDurationAdded{DurationInBlocks: duration, EffectiveEpoch: epoch}); err != nil {
		return err
	}
	return tx.SetActivePeriodStart(block - block%duration)
}

// Initialized reports whether a schedule exists.
func Initialized(r ledger.Reader) (bool, error) {
	entries, err := r.Durations()
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// DurationAt resolves the duration in force during epoch.
func DurationAt(r ledger.Reader, epoch uint64) (uint64, error) {
	entries, err := r.Durations()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, types.ErrDurationNotScheduled
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].EffectiveEpoch <= epoch {
			return entries[i].DurationInBlocks, nil
		}
	}
	return 0, fmt.Errorf("%w: epoch %d", types.ErrNoDurationForEpoch, epoch)
}

// SetDuration schedules duration to take effect at epoch+1. A pending
// entry for that epoch is replaced rather than stacked.
func SetDuration(tx *ledger.Tx, epoch, duration uint64) error {
	if duration == 0 {
		return types.ErrZeroDuration
	}
	entries, err := tx.Durations()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return types.ErrDurationNotScheduled
	}
	effective := epoch + 1
	last := &entries[len(entries)-1]
	if last.EffectiveEpoch > epoch {
		old := last.DurationInBlocks
		last.DurationInBlocks = duration
		last.EffectiveEpoch = effective
		if err := tx.SetDurations(entries); err != nil {
			return err
		}
		return tx.Emit(events.PendingProofingPeriodDurationReplaced{
			OldDurationInBlocks: old,
			NewDurationInBlocks: duration,
			EffectiveEpoch:      effective,
		})
	}
	entries = append(entries, ledger.DurationEntry{DurationInBlocks: duration, EffectiveEpoch: effective})
	if err := tx.SetDurations(entries); err != nil {
		return err
	}
	return tx.Emit(events.ProofingPeriodDurationAdded{DurationInBlocks: duration, EffectiveEpoch: effective})
}

// UpdateAndGetActiveStart moves the stored period start forward to the
// period containing block, skipping any number of elapsed periods, and
// returns it. A start left off the grid by a duration change is realigned.
func UpdateAndGetActiveStart(tx *ledger.Tx, epoch, block uint64) (uint64, error) {
	duration, err := DurationAt(tx, epoch)
	if err != nil {
		return 0, err
	}
	start, err := tx.ActivePeriodStart()
	if err != nil {
		return 0, err
	}
	if block < start+duration {
		return start, nil
	}
	next := start + (block-start)/duration*duration
	if start%duration != 0 {
		next = block - block%duration
	}
	if err := tx.SetActivePeriodStart(next); err != nil {
		return 0, err
	}
	return next, nil
}

// CurrentStatus reports the stored period start and whether block is still
// inside [start, start+duration).
func CurrentStatus(r ledger.Reader, epoch, block uint64) (Status, error) {
	duration, err := DurationAt(r, epoch)
	if err != nil {
		return Status{}, err
	}
	start, err := r.ActivePeriodStart()
	if err != nil {
		return Status{}, err
	}
	return Status{
		StartBlock:       start,
		DurationInBlocks: duration,
		IsValid:          block >= start && block < start+duration,
	}, nil
}

// HistoricalStart returns the start of the period offset periods before
// start. start must be a period boundary.
func HistoricalStart(r ledger.Reader, epoch, start, offset uint64) (uint64, error) {
	duration, err := DurationAt(r, epoch)
	if err != nil {
		return 0, err
	}
	if start == 0 || start%duration != 0 {
		return 0, fmt.Errorf("%w: %d", types.ErrInvalidPeriodStart, start)
	}
	if offset == 0 || offset > start/duration {
		return 0, fmt.Errorf("%w: %d", types.ErrInvalidOffset, offset)
	}
	return start - offset*duration, nil
}
